// Deps command prints the reference edges around one entity.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tetherworks/tether/internal/index"
)

var depsCmd = &cobra.Command{
	Use:   "deps <file> <entity>",
	Short: "Show what an entity references and what references it",
	Long: `Deps loads the container file, indexes its reference edges, and
prints the edges owned by the named entity followed by the edges
pointing at it.

Example:
  tether deps main.tether Pad
  tether deps --json main.tether Pad`,
	Args: cobra.ExactArgs(2),
	RunE: runDeps,
}

func runDeps(cmd *cobra.Command, args []string) error {
	file, entity := args[0], args[1]

	sess := newSession()
	containers, _, err := loadFiles(sess, []string{file})
	if err != nil {
		return err
	}
	c := containers[0]
	if c.Entity(entity) == nil {
		return fmt.Errorf("entity %q not found in %s", entity, c.Name())
	}

	ix, err := index.Open(":memory:")
	if err != nil {
		return err
	}
	defer ix.Close()
	if err := ix.Rebuild(sess); err != nil {
		return err
	}

	outgoing, err := ix.Outgoing(c.Name(), entity)
	if err != nil {
		return err
	}
	incoming, err := ix.Incoming(c.Name(), entity)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(struct {
			Outgoing []index.Edge `json:"outgoing"`
			Incoming []index.Edge `json:"incoming"`
		}{outgoing, incoming})
	}

	fmt.Printf("outgoing (%d):\n", len(outgoing))
	for _, e := range outgoing {
		fmt.Printf("  %s\n", formatEdge(e))
	}
	fmt.Printf("incoming (%d):\n", len(incoming))
	for _, e := range incoming {
		fmt.Printf("  %s.%s -> %s\n", e.Owner, e.Property, formatTarget(e))
	}
	return nil
}

func formatEdge(e index.Edge) string {
	return fmt.Sprintf("%s -> %s", e.Property, formatTarget(e))
}

func formatTarget(e index.Edge) string {
	target := e.Target
	if e.TargetContainer != "" && e.TargetContainer != e.Container {
		target = e.TargetContainer + "#" + e.Target
	}
	if e.ExternalPath != "" {
		target = e.ExternalPath + "#" + e.Target
		if !e.Resolved {
			target += " (not loaded)"
		}
	}
	if e.Sub != "" {
		target += "." + e.Sub
	}
	return target
}
