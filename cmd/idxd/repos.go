package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/indexd/internal/registry"
)

var registerAutoSync bool

var registerCmd = &cobra.Command{
	Use:   "register <path>",
	Short: "Register a git repository for indexing",
	Long: `Register a local git repository with indexd.

Examples:
  # Register the current directory
  idxd register .

  # Register without auto-sync
  idxd register --auto-sync=false ~/src/widgets`,
	Args: cobra.ExactArgs(1),
	RunE: runRegister,
}

var unregisterCmd = &cobra.Command{
	Use:   "unregister <repo>",
	Short: "Remove a repository and its index",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnregister,
}

var discoverRegister bool

var discoverCmd = &cobra.Command{
	Use:   "discover <root>...",
	Short: "Find git repositories under the given directories",
	Long: `Scan directories for git repositories.

Examples:
  # List repositories under ~/src
  idxd discover ~/src

  # Register everything found
  idxd discover --register ~/src`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDiscover,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered repositories",
	RunE:  runList,
}

var statusCmd = &cobra.Command{
	Use:   "status <repo>",
	Short: "Show repository and index status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var (
	updatePriority int
	updateActive   string
)

var updateCmd = &cobra.Command{
	Use:   "update <repo>",
	Short: "Update repository priority or active flag",
	Long: `Update registry settings for a repository.

Examples:
  # Prefer this repository in tie-broken search results
  idxd update --priority 10 widgets

  # Exclude a repository from searches without unregistering it
  idxd update --active=false widgets`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	registerCmd.Flags().BoolVar(&registerAutoSync, "auto-sync", true, "sync automatically on new commits")
	discoverCmd.Flags().BoolVar(&discoverRegister, "register", false, "register discovered repositories")
	updateCmd.Flags().IntVar(&updatePriority, "priority", 0, "search ranking priority")
	updateCmd.Flags().StringVar(&updateActive, "active", "", "set active flag (true or false)")
	rootCmd.AddCommand(updateCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	id, err := e.registry.Register(args[0], registerAutoSync)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", args[0], err)
	}

	fmt.Printf("Registered %s\n", id)
	fmt.Println("Run 'idxd sync' to build the index.")
	return nil
}

func runUnregister(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	id, err := e.resolveRepo(args[0])
	if err != nil {
		return err
	}
	if err := e.registry.Unregister(id); err != nil {
		return fmt.Errorf("failed to unregister %s: %w", id, err)
	}

	fmt.Printf("Unregistered %s\n", id)
	return nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	paths, err := registry.Discover(args)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	if len(paths) == 0 {
		fmt.Println("No repositories found.")
		return nil
	}

	for _, path := range paths {
		if !discoverRegister {
			fmt.Println(path)
			continue
		}
		if existing := e.registry.GetByPath(path); existing != nil {
			fmt.Printf("%s (already registered as %s)\n", path, existing.RepositoryID)
			continue
		}
		id, err := e.registry.Register(path, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not register %s: %v\n", path, err)
			continue
		}
		fmt.Printf("%s registered as %s\n", path, id)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	repos := e.registry.ListAll()
	if len(repos) == 0 {
		fmt.Println("No repositories registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tACTIVE\tAUTO-SYNC\tFILES\tSYMBOLS\tCOMMIT")
	for _, r := range repos {
		commit := r.CurrentCommit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		if commit == "" {
			commit = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%d\t%d\t%s\n",
			r.RepositoryID, r.Name, r.Active, r.AutoSync, r.TotalFiles, r.TotalSymbols, commit)
	}
	return w.Flush()
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	id, err := e.resolveRepo(args[0])
	if err != nil {
		return err
	}
	status, err := e.manager.Status(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}

	fmt.Printf("Repository: %s (%s)\n", status.Info.Name, status.Info.RepositoryID)
	fmt.Printf("Path:       %s\n", status.Info.Path)
	fmt.Printf("Branch:     %s\n", status.Branch)
	fmt.Printf("HEAD:       %s\n", status.HeadCommit)
	fmt.Printf("Indexed:    %s\n", status.Info.CurrentCommit)
	fmt.Printf("Dirty:      %t\n", status.Dirty)
	fmt.Printf("Pending:    %t\n", status.SyncPending)
	if status.IndexStats != nil {
		fmt.Printf("Files:      %d\n", status.IndexStats.TotalFiles)
		fmt.Printf("Symbols:    %d\n", status.IndexStats.TotalSymbols)
		for lang, count := range status.IndexStats.Languages {
			fmt.Printf("  %s: %d\n", lang, count)
		}
	}
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	id, err := e.resolveRepo(args[0])
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("priority") {
		if err := e.registry.UpdatePriority(id, updatePriority); err != nil {
			return fmt.Errorf("failed to update priority: %w", err)
		}
		fmt.Printf("Priority set to %d\n", updatePriority)
	}
	if updateActive != "" {
		active := updateActive == "true"
		if updateActive != "true" && updateActive != "false" {
			return fmt.Errorf("--active must be true or false")
		}
		if err := e.registry.UpdateStatus(id, active); err != nil {
			return fmt.Errorf("failed to update active flag: %w", err)
		}
		fmt.Printf("Active set to %t\n", active)
	}
	return nil
}
