package graph

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	sess := NewSession()
	sess.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	sess.SetResolver(TableResolver{})
	return sess
}

func newTestContainer(t *testing.T, sess *Session, name string) *Container {
	t.Helper()
	c, err := sess.NewContainer(name)
	require.NoError(t, err)
	return c
}

func newTestEntity(t *testing.T, c *Container, name string) *Entity {
	t.Helper()
	e, err := c.NewEntity(name)
	require.NoError(t, err)
	return e
}

func backlinkNames(e *Entity) []string {
	owners := e.Backlinks()
	out := make([]string, len(owners))
	for i, o := range owners {
		out[i] = o.Name()
	}
	return out
}

// pendingLoad records one host load request issued for a not-yet-open
// external container.
type pendingLoad struct {
	Path         string
	TargetName   string
	AllowPartial bool
}

type fakeLoader struct {
	requests []pendingLoad
}

func (f *fakeLoader) RequestPendingLoad(path, targetName string, allowPartial bool) {
	f.requests = append(f.requests, pendingLoad{Path: path, TargetName: targetName, AllowPartial: allowPartial})
}
