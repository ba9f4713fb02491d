package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/examintel/internal/adapters/http/api"
	app "github.com/okian/examintel/internal/app"
	"github.com/okian/examintel/internal/config"
	"github.com/okian/examintel/pkg/logger"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate a plan from an assessment file and print it as JSON",
		Long: "Reads an assessment (or raw survey answers) as JSON from --file, or stdin when the\n" +
			"file is \"-\", and prints the plan. Without a retrieval URL every subject uses\n" +
			"fallback topics.",
		RunE: runPlan,
	}
	cmd.Flags().StringP("file", "f", "-", "Assessment JSON file, \"-\" for stdin")
	cmd.Flags().String("retrieval-url", "", "RAG proxy base URL (overrides retrieval_url from config)")
	return cmd
}

func runPlan(cmd *cobra.Command, _ []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	if u, _ := cmd.Flags().GetString("retrieval-url"); u != "" {
		cfg.RetrievalURL = u
	}
	// One-shot runs keep plans in memory regardless of the configured store.
	cfg.StoreDriver = config.StoreMemory
	cfg.WorkerCount = 1

	path, _ := cmd.Flags().GetString("file")
	data, err := readInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	a, err := api.ParseAssessment(data)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc := app.New(app.WithConfig(cfg), app.WithLogger(logger.Get().Named("plan")))
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start planner: %w", err)
	}
	defer func() { _ = svc.Stop(ctx) }()

	plan, err := svc.GeneratePlan(ctx, a)
	if err != nil {
		return fmt.Errorf("generate plan: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
