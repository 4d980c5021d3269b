package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check index health for every repository",
	RunE:  runHealth,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate index statistics",
	RunE:  runStats,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove registry entries whose index directory no longer exists",
	RunE:  runCleanup,
}

func runHealth(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	report := e.dispatcher.HealthCheck(cmd.Context())
	if len(report.Repositories) == 0 {
		fmt.Println("No repositories registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS")
	for _, r := range report.Repositories {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.RepositoryID, r.Name, r.Status)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !report.Healthy {
		return fmt.Errorf("one or more repositories are unhealthy")
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	stats := e.dispatcher.Statistics(cmd.Context())
	fmt.Printf("Repositories: %d (%d active, %d indexed)\n",
		stats.TotalRepositories, stats.ActiveRepositories, stats.IndexedRepositories)
	fmt.Printf("Files:        %d\n", stats.TotalFiles)
	fmt.Printf("Symbols:      %d\n", stats.TotalSymbols)
	if len(stats.Languages) > 0 {
		fmt.Println("Languages:")
		for lang, n := range stats.Languages {
			fmt.Printf("  %s: %d\n", lang, n)
		}
	}
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	removed, err := e.registry.Cleanup()
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	fmt.Printf("Removed %d stale registry entr%s\n", removed, plural(removed, "y", "ies"))
	return nil
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}
