// Tests for the SQLite edge index.
package index

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/tetherworks/tether/pkg/graph"
)

func testSession(t *testing.T) (*graph.Session, *graph.Container) {
	t.Helper()
	sess := graph.NewSession()
	sess.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	sess.SetResolver(graph.TableResolver{})

	main, err := sess.NewContainer("Main")
	if err != nil {
		t.Fatalf("NewContainer failed: %v", err)
	}
	owner, err := main.NewEntity("Owner")
	if err != nil {
		t.Fatalf("NewEntity failed: %v", err)
	}
	box, err := main.NewEntity("Box")
	if err != nil {
		t.Fatalf("NewEntity failed: %v", err)
	}

	if err := graph.NewRef(owner, "Dep", graph.ScopeNormal).SetValue(box); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	if err := graph.NewSubRef(owner, "Pick", graph.ScopeNormal).SetValue(box, "Face1", "Face2"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}

	x := graph.NewXRef(owner, "Drive", graph.ScopeNormal)
	if err := x.SetExternal("/lib/parts.tether", "Gear", "Tooth3"); err != nil {
		t.Fatalf("SetExternal failed: %v", err)
	}
	return sess, main
}

func TestIndex_Rebuild(t *testing.T) {
	sess, _ := testSession(t)

	dbPath := filepath.Join(t.TempDir(), "edges.db")
	ix, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ix.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("edges.db not created")
	}

	if err := ix.Rebuild(sess); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	edges, err := ix.Outgoing("Main", "Owner")
	if err != nil {
		t.Fatalf("Outgoing failed: %v", err)
	}
	if len(edges) != 4 {
		t.Fatalf("expected 4 edges, got %d: %+v", len(edges), edges)
	}
	if edges[0].Property != "Dep" || edges[0].Target != "Box" || !edges[0].Resolved {
		t.Errorf("unexpected first edge: %+v", edges[0])
	}

	// Rebuild replaces, never accumulates.
	if err := ix.Rebuild(sess); err != nil {
		t.Fatalf("second Rebuild failed: %v", err)
	}
	edges, err = ix.Outgoing("Main", "")
	if err != nil {
		t.Fatalf("Outgoing failed: %v", err)
	}
	if len(edges) != 4 {
		t.Errorf("expected 4 edges after rebuild, got %d", len(edges))
	}
}

func TestIndex_Incoming(t *testing.T) {
	sess, _ := testSession(t)

	ix, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ix.Close()
	if err := ix.Rebuild(sess); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	edges, err := ix.Incoming("Main", "Box")
	if err != nil {
		t.Fatalf("Incoming failed: %v", err)
	}
	if len(edges) != 3 {
		t.Fatalf("expected 3 incoming edges, got %d: %+v", len(edges), edges)
	}
	for _, e := range edges {
		if e.Owner != "Owner" {
			t.Errorf("unexpected owner %q", e.Owner)
		}
	}
}

func TestIndex_ExternalAndUnresolved(t *testing.T) {
	sess, _ := testSession(t)

	ix, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ix.Close()
	if err := ix.Rebuild(sess); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	edges, err := ix.External("/lib/parts.tether")
	if err != nil {
		t.Fatalf("External failed: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 external edge, got %d", len(edges))
	}
	e := edges[0]
	if e.Target != "Gear" || e.Sub != "Tooth3" || e.Resolved || e.TargetContainer != "" {
		t.Errorf("unexpected external edge: %+v", e)
	}

	pending, err := ix.Unresolved()
	if err != nil {
		t.Fatalf("Unresolved failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Property != "Drive" {
		t.Errorf("unexpected unresolved set: %+v", pending)
	}
}

func TestIndex_Closed(t *testing.T) {
	ix, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := ix.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Idempotent.
	if err := ix.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if err := ix.Rebuild(nil); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := ix.Outgoing("Main", ""); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
