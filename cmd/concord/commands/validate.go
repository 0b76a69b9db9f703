package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/concordhq/concord/internal/printer"
	"github.com/concordhq/concord/internal/validator"
	"github.com/concordhq/concord/pkg/contract"
)

var (
	validateRoot string
	validateJSON bool
	validateSave bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <outputs.json>",
	Short: "Cross-check produced artifacts against declared contracts",
	Long: `Validate runs every cross-artifact check over a batch of agent outputs:

  • conflicting interface definitions between agents
  • unresolved relative and alias imports
  • circular imports among the changed files
  • store property accesses not present in the store contract
  • component usage with undeclared props
  • concurrent store mutation and non-functional update hazards
  • missing test files for changed code

The outputs file maps agent name to its structured output (filesModified,
filesCreated, contracts, exports, tests, ...). The command fails when any
CRITICAL conflict is found; warnings never block.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateRoot, "root", ".", "Project root the artifact paths are relative to")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output in JSON format")
	validateCmd.Flags().BoolVar(&validateSave, "save", false, "Save conflicts to the session store and publish a conflict event")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read outputs file: %w", err)
	}

	outputs := make(map[string]*contract.AgentOutput)
	if err := json.Unmarshal(data, &outputs); err != nil {
		return fmt.Errorf("failed to parse outputs file: %w", err)
	}
	for agent, output := range outputs {
		if output.AgentType == "" {
			output.AgentType = agent
		}
		if err := output.Validate(); err != nil {
			return fmt.Errorf("output for agent '%s': %w", agent, err)
		}
	}

	v := validator.New(validateRoot, cfg.Validator)
	result, err := v.RunAll(ctx, outputs)
	if err != nil {
		return err
	}

	if validateSave {
		client, err := openClient(cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		all := append(append([]contract.Conflict{}, result.Conflicts...), result.Warnings...)
		if err := client.SaveConflicts(ctx, all); err != nil {
			return err
		}
	}

	if validateJSON {
		return printJSON(map[string]any{
			"success":   result.Success,
			"conflicts": result.Conflicts,
			"warnings":  result.Warnings,
		})
	}

	for _, c := range result.Conflicts {
		printer.Conflict(c)
	}
	for _, w := range result.Warnings {
		printer.Conflict(w)
	}

	if !result.Success {
		return printer.Error(
			"validation failed",
			fmt.Sprintf("%d conflict(s) found, at least one CRITICAL", len(result.Conflicts)),
			[]string{"Resolve the CRITICAL conflicts above and run validate again"},
		)
	}

	printer.Success("validation passed (%d warning(s))\n", len(result.Warnings))
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
