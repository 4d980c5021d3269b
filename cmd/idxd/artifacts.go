package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var artifactsKeep int

var artifactsCmd = &cobra.Command{
	Use:   "artifacts <repo>",
	Short: "List commit artifacts for a repository",
	Long: `List archived index snapshots, newest first.

A snapshot is created after each successful sync so an index can be
restored for a past commit without re-indexing.

Examples:
  idxd artifacts widgets

  # Prune old snapshots, keeping the newest three
  idxd artifacts --keep 3 widgets`,
	Args: cobra.ExactArgs(1),
	RunE: runArtifacts,
}

func init() {
	artifactsCmd.Flags().IntVar(&artifactsKeep, "keep", -1, "prune snapshots beyond this count")
}

func runArtifacts(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	id, err := e.resolveRepo(args[0])
	if err != nil {
		return err
	}

	if artifactsKeep >= 0 {
		removed, err := e.artifacts.Cleanup(cmd.Context(), id, artifactsKeep)
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		fmt.Printf("Removed %d artifact(s)\n", removed)
	}

	list, err := e.artifacts.List(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to list artifacts: %w", err)
	}
	if len(list) == 0 {
		fmt.Println("No artifacts.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COMMIT\tSIZE\tCREATED\tFILE")
	for _, a := range list {
		fmt.Fprintf(w, "%s\t%.2f MB\t%s\t%s\n",
			a.Commit, a.SizeMB, a.CreatedAt.Format("2006-01-02 15:04:05"), a.Filename)
	}
	return w.Flush()
}
