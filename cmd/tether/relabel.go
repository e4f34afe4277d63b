// Relabel command renames an entity's label and rewrites the references
// that use it.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tetherworks/tether/pkg/graph"
)

var relabelCmd = &cobra.Command{
	Use:   "relabel <file> <entity> <new-label>",
	Short: "Rename an entity's label, updating label references in place",
	Long: `Relabel loads the container file, renames the label of the named
entity, and saves the file back. Every "$label." occurrence that
structurally resolves to the entity is rewritten; textual matches
referring to other entities are left alone.

Example:
  tether relabel main.tether Part001 Housing`,
	Args: cobra.ExactArgs(3),
	RunE: runRelabel,
}

func runRelabel(cmd *cobra.Command, args []string) error {
	file, name, newLabel := args[0], args[1], args[2]

	sess := newSession()
	containers, diags, err := loadFiles(sess, []string{file})
	if err != nil {
		return err
	}
	if err := printDiags(diags); err != nil {
		return err
	}
	c := containers[0]
	e := c.Entity(name)
	if e == nil {
		return fmt.Errorf("entity %q not found in %s", name, c.Name())
	}
	if e.Label() == newLabel {
		return fmt.Errorf("entity %q already labeled %q", name, newLabel)
	}

	updated := len(sess.UpdateLabelReferences(e, newLabel))
	e.SetLabel(newLabel)

	if err := graph.SaveContainerFile(c, c.FilePath()); err != nil {
		return fmt.Errorf("save %s: %w", file, err)
	}
	if !flagJSON {
		fmt.Printf("relabeled %s to %q, %d reference propert(ies) updated\n", name, newLabel, updated)
		return nil
	}
	return printJSON(struct {
		Entity     string `json:"entity"`
		Label      string `json:"label"`
		Properties int    `json:"properties_updated"`
	}{name, newLabel, updated})
}
