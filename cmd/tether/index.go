// Index command rebuilds the persistent edge index from container files.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tetherworks/tether/internal/index"
)

var indexCmd = &cobra.Command{
	Use:   "index <file>...",
	Short: "Rebuild the edge index from container files",
	Long: `Index loads the given container files and rebuilds the SQLite edge
index in the data directory. Other commands and external tooling can
then answer dependency queries without reloading the files.

Example:
  tether index main.tether parts/lib.tether
  tether index --data-dir /tmp/scratch main.tether`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	sess := newSession()
	if _, _, err := loadFiles(sess, args); err != nil {
		return err
	}

	dataDir, err := resolveDataDir()
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "edges.db")
	ix, err := index.Open(dbPath)
	if err != nil {
		return err
	}
	defer ix.Close()

	if err := ix.Rebuild(sess); err != nil {
		return err
	}
	n, err := ix.Count()
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(struct {
			Path  string `json:"path"`
			Edges int    `json:"edges"`
		}{dbPath, n})
	}
	fmt.Printf("indexed %d edge(s) into %s\n", n, dbPath)
	return nil
}
