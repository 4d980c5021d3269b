package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	searchRepos []string
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search code across registered repositories",
	Long: `Run a federated content search over all indexed repositories.

Examples:
  # Search everywhere
  idxd search "connection retry"

  # Scope to specific repositories
  idxd search --repo widgets --repo ~/src/gadgets "parse config"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var symbolCmd = &cobra.Command{
	Use:   "symbol <name>",
	Short: "Look up a symbol by name",
	Long: `Find functions, types, and other symbols by exact or prefix match.

Examples:
  idxd symbol ParseConfig
  idxd symbol --repo widgets Handler`,
	Args: cobra.ExactArgs(1),
	RunE: runSymbol,
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, symbolCmd} {
		c.Flags().StringArrayVar(&searchRepos, "repo", nil, "limit to a repository (id, path, or remote URL; repeatable)")
		c.Flags().IntVar(&searchLimit, "limit", 0, "maximum results (default from config)")
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	resp, err := e.dispatcher.SearchCode(cmd.Context(), args[0], searchRepos, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	for _, hit := range resp.Results {
		fmt.Printf("%s %s:%d  [%.2f]\n", hit.RepositoryID, hit.File, hit.Line, hit.Score)
		fmt.Printf("    %s\n", hit.Snippet)
	}
	printSearchFooter(len(resp.Results), resp.Repositories, resp.Failures)
	return nil
}

func runSymbol(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	resp, err := e.dispatcher.SearchSymbol(cmd.Context(), args[0], searchRepos, searchLimit)
	if err != nil {
		return fmt.Errorf("symbol lookup failed: %w", err)
	}

	for _, hit := range resp.Results {
		fmt.Printf("%s %s:%d  %s %s\n", hit.RepositoryID, hit.File, hit.Line, hit.Kind, hit.Name)
		if hit.Signature != "" {
			fmt.Printf("    %s\n", hit.Signature)
		}
	}
	printSearchFooter(len(resp.Results), resp.Repositories, resp.Failures)
	return nil
}

func printSearchFooter(results, repos int, failures map[string]string) {
	fmt.Printf("\n%d result(s) from %d repositories\n", results, repos)
	for id, msg := range failures {
		fmt.Fprintf(os.Stderr, "Warning: %s failed: %s\n", id, msg)
	}
}
