// Shared helpers for tether CLI commands.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tetherworks/tether/pkg/graph"
)

// newSession returns a session wired for CLI use: warnings go to stderr,
// element resolution runs against the element tables stored in the
// container files.
func newSession() *graph.Session {
	sess := graph.NewSession()
	sess.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))
	sess.SetResolver(graph.TableResolver{})
	return sess
}

// loadFiles loads every container file into sess and returns the loaded
// containers with the collected diagnostics. Files load in argument
// order so cross-file references between them resolve.
func loadFiles(sess *graph.Session, files []string) ([]*graph.Container, []graph.Diag, error) {
	containers := make([]*graph.Container, 0, len(files))
	var diags []graph.Diag
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve %s: %w", file, err)
		}
		c, rep, err := graph.LoadContainerFile(sess, abs)
		if err != nil {
			return nil, nil, fmt.Errorf("load %s: %w", file, err)
		}
		containers = append(containers, c)
		diags = append(diags, rep.Diags...)
	}
	return containers, diags, nil
}

// printDiags writes the diagnostics to stdout, as text or JSON.
func printDiags(diags []graph.Diag) error {
	if flagJSON {
		return printJSON(diags)
	}
	for _, d := range diags {
		if d.Property != "" {
			fmt.Printf("%s: %s: %s\n", d.Severity, d.Property, d.Message)
		} else {
			fmt.Printf("%s: %s\n", d.Severity, d.Message)
		}
	}
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
