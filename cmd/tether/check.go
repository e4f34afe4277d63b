// Check command validates the references stored in container files.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tetherworks/tether/pkg/graph"
)

var checkCmd = &cobra.Command{
	Use:   "check <file>...",
	Short: "Load container files and report broken or stale references",
	Long: `Check loads the given container files into one session and reports
every recoverable problem found while restoring them: dangling references,
missing elements, detached external links, and stale external files.

Files load in argument order, so list a file before the files that
reference it when they should resolve against each other.

Example:
  tether check main.tether
  tether check parts/lib.tether main.tether`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	sess := newSession()
	containers, diags, err := loadFiles(sess, args)
	if err != nil {
		return err
	}

	diags = append(diags, staleExternals(containers)...)
	if err := printDiags(diags); err != nil {
		return err
	}
	if len(diags) > 0 {
		return fmt.Errorf("%d problem(s) found", len(diags))
	}
	if !flagJSON {
		fmt.Printf("%d container(s) ok\n", len(containers))
	}
	return nil
}

// staleExternals reports external references whose target file is
// missing or was saved since the reference recorded its stamp.
func staleExternals(containers []*graph.Container) []graph.Diag {
	var diags []graph.Diag
	for _, c := range containers {
		for _, e := range c.Entities() {
			for _, p := range e.Properties() {
				for _, ref := range externalRefs(p) {
					var msg string
					switch ref.CheckRestore() {
					case graph.RestoreMissing:
						msg = fmt.Sprintf("external container %q not loaded", ref.Path())
					case graph.RestoreStampChanged:
						msg = fmt.Sprintf("external container %q changed since last save", ref.Path())
					default:
						continue
					}
					diags = append(diags, graph.Diag{
						Severity: graph.SeverityWarning,
						Property: e.FullName() + "." + p.Name(),
						Message:  msg,
					})
				}
			}
		}
	}
	return diags
}

// externalRefs returns the cross-file references held by p, flattening
// list properties.
func externalRefs(p graph.Property) []*graph.XRef {
	switch r := p.(type) {
	case *graph.XRef:
		if r.Path() != "" {
			return []*graph.XRef{r}
		}
	case *graph.XRefList:
		var out []*graph.XRef
		for _, child := range r.Refs() {
			if child.Path() != "" {
				out = append(out, child)
			}
		}
		return out
	}
	return nil
}
