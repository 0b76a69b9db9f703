package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/concordhq/concord/internal/printer"
)

var (
	routingContracts string
	routingJSON      bool
)

var routingCmd = &cobra.Command{
	Use:   "routing",
	Short: "Inspect and audit contract routing",
}

var routingReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show which agent receives which contract, and why",
	Long: `Report resolves every known contract against the full agent roster and
prints one row per routed pair: contract, agent, confidence, and the
resolution tier that decided (explicit, learned, pattern, content, or
inherited_from_<agent>).

Contracts come from the session store, or from a JSON file via --contracts.`,
	RunE: runRoutingReport,
}

var routingAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Warn about unmapped and low-confidence contracts",
	RunE:  runRoutingAudit,
}

func init() {
	routingCmd.PersistentFlags().StringVar(&routingContracts, "contracts", "", "JSON file with contract name → definition (default: session store)")
	routingCmd.PersistentFlags().BoolVar(&routingJSON, "json", false, "Output in JSON format")
	routingCmd.AddCommand(routingReportCmd)
	routingCmd.AddCommand(routingAuditCmd)
	rootCmd.AddCommand(routingCmd)
}

func runRoutingReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	router, err := buildRouter(cfg)
	if err != nil {
		return err
	}
	contracts, err := loadContractsArg(ctx, cfg, routingContracts)
	if err != nil {
		return err
	}

	rows := router.Report(contracts)
	if routingJSON {
		return printJSON(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No contracts routed.")
		return nil
	}

	fmt.Printf("%-30s %-14s %-10s %s\n", "CONTRACT", "AGENT", "CONFIDENCE", "SOURCE")
	for _, row := range rows {
		fmt.Printf("%-30s %-14s %-10.2f %s\n", row.Contract, row.Agent, row.Confidence, row.Source)
	}
	return nil
}

func runRoutingAudit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	router, err := buildRouter(cfg)
	if err != nil {
		return err
	}
	contracts, err := loadContractsArg(ctx, cfg, routingContracts)
	if err != nil {
		return err
	}

	warnings := router.ValidateRouting(contracts)
	if routingJSON {
		return printJSON(warnings)
	}

	if len(warnings) == 0 {
		printer.Success("all %d contract(s) routed with adequate confidence\n", len(contracts))
		return nil
	}
	for _, w := range warnings {
		printer.RoutingWarning(w)
	}
	return nil
}
