package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/orchestd/internal/catalog"
	"github.com/fyrsmithlabs/orchestd/internal/dag"
)

var catalogJSON bool

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the built-in agent catalog",
	Long: `Print the built-in agent catalog: every agent's phase, priority,
dependencies, reward, and memory contract.

Examples:
  orchestd catalog
  orchestd catalog --json`,
	RunE: runCatalog,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the agent dependency graph",
	Long:  `Build the dependency graph over the built-in catalog and report cycles, unknown dependencies, and duplicate keys.`,
	RunE:  runValidate,
}

func init() {
	catalogCmd.Flags().BoolVar(&catalogJSON, "json", false, "emit the catalog as JSON")
}

func runCatalog(cmd *cobra.Command, args []string) error {
	mappings := catalog.Default()

	if catalogJSON {
		out, err := json.MarshalIndent(mappings, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal catalog: %w", err)
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Printf("%-25s %-15s %-4s %-6s %-9s %s\n", "AGENT", "PHASE", "PRI", "REWARD", "CRITICAL", "DEPENDS ON")
	for _, m := range mappings {
		critical := ""
		if m.Critical {
			critical = "yes"
		}
		cmd.Printf("%-25s %-15s %-4d %-6d %-9s %s\n",
			m.Key, m.Phase, m.Priority, m.Reward, critical, strings.Join(m.DependsOn, ", "))
	}
	cmd.Printf("\n%d agents, total reward %d\n", len(mappings), catalog.TotalReward(mappings))
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	mappings := catalog.Default()

	if problems := dag.ValidateDependencies(mappings); len(problems) > 0 {
		for _, p := range problems {
			cmd.PrintErrln(p)
		}
		return fmt.Errorf("catalog has %d dependency problem(s)", len(problems))
	}

	graph, err := dag.Build(mappings, nil)
	if err != nil {
		return err
	}

	cmd.Printf("catalog ok: %d agents, %d phases, topological order resolved\n",
		len(graph.Nodes), len(graph.Phases))
	return nil
}
