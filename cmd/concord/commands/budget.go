package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/concordhq/concord/internal/printer"
	"github.com/concordhq/concord/internal/registry"
	"github.com/concordhq/concord/pkg/contract"
)

var budgetJSON bool

var budgetCmd = &cobra.Command{
	Use:   "budget [agent]",
	Short: "Estimate per-agent context size against token budgets",
	Long: `Budget restores the session state from the store, assembles each agent's
context exactly as it would be handed off, and reports the estimated token
cost against the agent's configured budget. Remaining can be negative when an
agent is over budget.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBudget,
}

func init() {
	budgetCmd.Flags().BoolVar(&budgetJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(budgetCmd)
}

func runBudget(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	router, err := buildRouter(cfg)
	if err != nil {
		return err
	}

	client, err := openClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	state, err := registry.Load(ctx, client, cfg.AgentTypes())
	if err != nil {
		return err
	}
	reg := registry.New(cfg, router, nil)
	reg.Restore(state)

	agents := cfg.AgentTypes()
	if len(args) == 1 {
		agents = []string{args[0]}
	}

	usages := make(map[string]contract.TokenUsage, len(agents))
	for _, agent := range agents {
		usages[agent] = reg.TokenUsage(agent)
	}

	if budgetJSON {
		return printJSON(usages)
	}

	fmt.Printf("%-14s %-10s %-10s %-10s %s\n", "AGENT", "ESTIMATED", "BUDGET", "REMAINING", "USED")
	for _, agent := range agents {
		u := usages[agent]
		fmt.Printf("%-14s %-10d %-10d %-10d %.1f%%\n", agent, u.EstimatedTokens, u.Budget, u.Remaining, u.Percentage)
		if u.Remaining < 0 {
			printer.Warning("agent '%s' is %d tokens over budget\n", agent, -u.Remaining)
		}
	}
	return nil
}
