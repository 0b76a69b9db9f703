package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/concordhq/concord/internal/printer"
)

var exportJSON bool

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Freeze learned routing into explicit mappings",
	Long: `Export reads the session's learned usage statistics and prints the
high-signal mappings as a routing.explicit block ready to paste into the
configuration file. Only agents whose usage share clears the export threshold
are included.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().BoolVar(&exportJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
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

	learned, err := client.LoadLearned(ctx)
	if err != nil {
		return err
	}
	router.RestoreLearned(learned)

	exported := router.ExportLearned()
	if len(exported) == 0 {
		printer.Info("No learned mappings clear the export threshold yet.\n")
		return nil
	}

	if exportJSON {
		return printJSON(exported)
	}

	names := make([]string, 0, len(exported))
	for name := range exported {
		names = append(names, name)
	}
	sort.Strings(names)

	block := map[string]any{
		"routing": map[string]any{"explicit": exported},
	}
	data, err := yaml.Marshal(block)
	if err != nil {
		return fmt.Errorf("failed to marshal mappings: %w", err)
	}

	printer.Info("# %d learned mapping(s) ready to pin:\n", len(names))
	fmt.Print(string(data))
	return nil
}
