package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent"
	"github.com/mohammad-safakhou/deepresearch/internal/budget"
	"github.com/mohammad-safakhou/deepresearch/internal/server"
	"github.com/mohammad-safakhou/deepresearch/internal/session/inmemory"
	"github.com/mohammad-safakhou/deepresearch/internal/tools"
	"github.com/mohammad-safakhou/deepresearch/models"
	"github.com/mohammad-safakhou/deepresearch/provider"
	"github.com/mohammad-safakhou/deepresearch/tools/reader"
	"github.com/mohammad-safakhou/deepresearch/tools/web_search"
)

func main() {
	var configPath string

	root := &cobra.Command{Use: "deepresearch"}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the research HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(configPath)
			return server.Run(cfg)
		},
	}

	var migDir string
	var direction string
	var steps int
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Migrate(migDir, "", direction, steps)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source (file://migrations)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	var budgetTokens int
	var maxBadAttempts int
	ask := &cobra.Command{
		Use:   "ask [question]",
		Short: "Research one question from the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(configPath)
			if budgetTokens > 0 {
				cfg.Agent.TokenBudget = budgetTokens
			}
			if maxBadAttempts > 0 {
				cfg.Agent.MaxBadAttempts = maxBadAttempts
			}
			question := args[0]
			for _, a := range args[1:] {
				question += " " + a
			}
			return runOnce(cfg, question)
		},
	}
	ask.Flags().IntVar(&budgetTokens, "budget", 0, "token budget (0 = config default)")
	ask.Flags().IntVar(&maxBadAttempts, "max-bad-attempts", 0, "rejected answers before giving up (0 = config default)")

	root.AddCommand(serve, migrate, ask)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runOnce drives a single research task without the HTTP layer and prints
// the answer and the token spend.
func runOnce(cfg *config.Config, question string) error {
	ctx := context.Background()

	prov, err := provider.NewProvider(provider.Client(cfg.LLM.Provider), cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Timeout)
	if err != nil {
		return err
	}
	searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Search.Provider), cfg.Search.APIKey)
	if err != nil {
		return err
	}
	rd, err := reader.NewReader(reader.FetcherType(cfg.Reader.Fetcher), cfg.Reader.APIKey, cfg.Reader.Timeout, cfg.Reader.MaxChars)
	if err != nil {
		return err
	}

	tk := budget.NewTokenTracker(cfg.Agent.TokenBudget)
	at := budget.NewActionTracker()
	tl := tools.New(prov, tk, tools.Routing{
		Evaluator:     toParams(cfg.LLM.Routing.Evaluator),
		QueryRewriter: toParams(cfg.LLM.Routing.QueryRewriter),
		Dedup:         toParams(cfg.LLM.Routing.Dedup),
		ErrorAnalyzer: toParams(cfg.LLM.Routing.ErrorAnalyzer),
	})
	registry := inmemory.NewInMemoryRegistry()

	ag := agent.New(cfg, prov, tl, searcher, rd, registry, nil, tk, at)
	requestID := uuid.NewString()
	ag.ProcessQuery(ctx, requestID, question)

	task, err := registry.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if task.Status == models.StatusError {
		return fmt.Errorf("research failed: %s", task.FinalAnswer)
	}

	for _, action := range task.Actions {
		if line, err := json.Marshal(action); err == nil {
			fmt.Println(string(line))
		}
	}
	fmt.Println()
	fmt.Println(task.FinalAnswer)
	fmt.Printf("\n-- %d steps, %d tokens\n", len(task.Actions), tk.TotalUsage())
	for tool, tokens := range tk.UsageBreakdown() {
		fmt.Printf("   %-16s %d\n", tool, tokens)
	}
	return nil
}

func toParams(r config.ModelRoute) models.ModelParams {
	return models.ModelParams{Model: r.Model, Temperature: r.Temperature, MaxTokens: r.MaxTokens}
}
