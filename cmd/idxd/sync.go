package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/indexd/internal/indexer"
)

var syncForce bool

var syncCmd = &cobra.Command{
	Use:   "sync [repo]",
	Short: "Sync repository indexes with their commit history",
	Long: `Bring search indexes up to date with git HEAD.

Without arguments every active repository is synced. Changed files
since the last indexed commit are re-indexed incrementally; --force
rebuilds from scratch.

Examples:
  # Sync everything
  idxd sync

  # Sync one repository by path
  idxd sync ~/src/widgets

  # Full rebuild
  idxd sync --force widgets`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "force a full rebuild")
}

func runSync(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		results := e.manager.SyncAll(cmd.Context(), syncForce)
		failed := 0
		for _, r := range results {
			printSyncResult(r)
			if len(r.Errors) > 0 {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d repositories reported errors", failed, len(results))
		}
		return nil
	}

	id, err := e.resolveRepo(args[0])
	if err != nil {
		return err
	}
	result, err := e.manager.Sync(cmd.Context(), id, syncForce)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	printSyncResult(result)
	if len(result.Errors) > 0 {
		return fmt.Errorf("sync completed with %d errors", len(result.Errors))
	}
	return nil
}

func printSyncResult(r *indexer.SyncResult) {
	commit := r.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	fmt.Printf("%s: %s at %s (%d indexed, %d removed, %d skipped, %.2fs)\n",
		r.RepositoryID, r.Action, commit,
		r.FilesProcessed, r.FilesRemoved, r.FilesSkipped, r.DurationSeconds)
	for _, msg := range r.Errors {
		fmt.Fprintf(os.Stderr, "  error: %s\n", msg)
	}
}
