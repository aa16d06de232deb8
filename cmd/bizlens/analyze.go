package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bizlens/internal/config"
	"bizlens/internal/executor"
	"bizlens/internal/orchestrator"
	"bizlens/internal/perception"
	"bizlens/internal/providers"
	"bizlens/internal/report"
	"bizlens/internal/session"
	"bizlens/internal/skills"
	"bizlens/internal/truth"
	"bizlens/internal/types"
)

var (
	analyzeCompany     string
	analyzeWebsite     string
	analyzeIndustry    string
	analyzeMode        string
	analyzeFrameworks  []string
	analyzeCompetitors []string
	analyzeGoal        string
	analyzeConfigPath  string
	analyzeMaxSteps    int
	analyzeResume      bool
	analyzeNoBrowser   bool
)

// frameworkAliases maps CLI shorthand to framework names.
var frameworkAliases = map[string]types.Framework{
	"swot":        types.FrameworkSWOT,
	"porters":     types.FrameworkPortersFiveForces,
	"pestel":      types.FrameworkPESTEL,
	"bcg":         types.FrameworkBCGMatrix,
	"blue-ocean":  types.FrameworkBlueOcean,
	"competitive": types.FrameworkCompetitiveStrategy,
	"sales":       types.FrameworkSalesIntelligence,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a business context analysis",
	Example: `  bizlens analyze --company "Stripe" --website stripe.com --industry "Fintech" \
      --mode full --frameworks swot,porters,pestel --competitors "Adyen,Square"

  # Phase 2 only, resuming the latest saved session for the company
  bizlens analyze --company "Stripe" --mode frameworks --frameworks bcg --resume`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeCompany, "company", "", "Company name (required)")
	analyzeCmd.Flags().StringVar(&analyzeWebsite, "website", "", "Company website URL")
	analyzeCmd.Flags().StringVar(&analyzeIndustry, "industry", "", "Industry label")
	analyzeCmd.Flags().StringVar(&analyzeMode, "mode", "full", "Run mode: business_overview, frameworks, full")
	analyzeCmd.Flags().StringSliceVar(&analyzeFrameworks, "frameworks", nil,
		"Frameworks: swot, porters, pestel, bcg, blue-ocean, competitive, sales")
	analyzeCmd.Flags().StringSliceVar(&analyzeCompetitors, "competitors", nil, "Known competitor names (max 5)")
	analyzeCmd.Flags().StringVar(&analyzeGoal, "goal", "", "What you want the analysis to answer")
	analyzeCmd.Flags().StringVar(&analyzeConfigPath, "config", "", "Config file (YAML or JSON)")
	analyzeCmd.Flags().IntVar(&analyzeMaxSteps, "max-steps", 0, "Global step budget override")
	analyzeCmd.Flags().BoolVar(&analyzeResume, "resume", false, "Load the company's latest saved session first")
	analyzeCmd.Flags().BoolVar(&analyzeNoBrowser, "no-browser", false, "Scrape over plain HTTP instead of headless Chrome")
	_ = analyzeCmd.MarkFlagRequired("company")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	sessions, err := session.Open(baseDir)
	if err != nil {
		return err
	}
	defer sessions.Close()

	run, err := sessions.Create(cfg.Company.Name, cfg.Mode)
	if err != nil {
		return err
	}
	logger.Info("session created",
		zap.String("id", run.ID),
		zap.String("dir", run.Dir),
		zap.String("mode", string(cfg.Mode)))

	orch, err := orchestrator.New(&cfg, orchestrator.Options{
		Registry: buildRegistry(&cfg),
		LLM:      buildLLM(cmd.Context(), &cfg),
		Observer: newConsoleObserver(os.Stdout),
	})
	if err != nil {
		return err
	}

	if analyzeResume {
		prior, ok, err := sessions.LatestFor(cfg.Company.Name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no saved session found for %q", cfg.Company.Name)
		}
		if err := orch.LoadState(prior.StatePath); err != nil {
			return err
		}
		logger.Info("resumed prior session", zap.String("state", prior.StatePath))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := orch.Run(ctx)

	if err := orch.SaveState(run.StatePath); err != nil {
		logger.Warn("failed to save state", zap.Error(err))
	}
	if err := writeResults(run.Dir, env); err != nil {
		logger.Warn("failed to write results", zap.Error(err))
	}

	printRunSummary(env, run.Dir)
	if env.Error != "" {
		return fmt.Errorf("analysis failed: %s", env.Error)
	}
	return nil
}

// buildConfig merges the config file, flags and environment.
func buildConfig() (config.Config, error) {
	cfg := config.Default()
	if analyzeConfigPath != "" {
		loaded, err := config.Load(analyzeConfigPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	} else {
		cfg.ApplyEnv()
	}

	if analyzeCompany != "" {
		cfg.Company.Name = analyzeCompany
	}
	if analyzeWebsite != "" {
		cfg.Company.Website = analyzeWebsite
	}
	if analyzeIndustry != "" {
		cfg.Company.Industry = analyzeIndustry
	}
	if analyzeMode != "" {
		cfg.Mode = types.RunMode(analyzeMode)
	}
	if analyzeGoal != "" {
		cfg.UserGoal = analyzeGoal
	}
	if len(analyzeCompetitors) > 0 {
		cfg.Competitors = analyzeCompetitors
	}
	if analyzeMaxSteps > 0 {
		cfg.Advanced.MaxSteps = analyzeMaxSteps
	}
	if len(analyzeFrameworks) > 0 {
		cfg.Frameworks = nil
		for _, name := range analyzeFrameworks {
			key := strings.ToLower(strings.TrimSpace(name))
			if framework, ok := frameworkAliases[key]; ok {
				cfg.Frameworks = append(cfg.Frameworks, framework)
			} else {
				cfg.Frameworks = append(cfg.Frameworks, types.Framework(name))
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// buildLLM selects the configured language-model client.
func buildLLM(ctx context.Context, cfg *config.Config) perception.LLMClient {
	switch cfg.LLM.Provider {
	case "gemini":
		client, err := perception.NewGeminiClient(ctx, os.Getenv("GEMINI_API_KEY"),
			cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Temperature)
		if err != nil {
			logger.Warn("gemini unavailable, falling back to HTTP client", zap.Error(err))
			return perception.NewHTTPClient(perception.DefaultHTTPConfig())
		}
		return client
	default:
		return perception.NewHTTPClient(perception.HTTPConfig{
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		})
	}
}

// buildRegistry wires providers and skills according to the data-source
// toggles.
func buildRegistry(cfg *config.Config) *executor.Registry {
	var scraper providers.Scraper
	if cfg.SourceEnabled(config.ProviderScrape) {
		if analyzeNoBrowser {
			scraper = providers.NewHTTPScraper()
		} else {
			scraper = providers.NewBrowserScraper()
		}
	}

	var search providers.NeuralSearch
	if cfg.SourceEnabled(config.ProviderSearch) {
		search = providers.NewExaClient(cfg.DataSources[config.ProviderSearch].APIKey)
	}

	var answers providers.AnswerSearch
	if cfg.SourceEnabled(config.ProviderAnswers) {
		answers = providers.NewPerplexityClient(cfg.DataSources[config.ProviderAnswers].APIKey)
	}

	engine := truth.NewEngine(truth.Config{
		Mode:          truth.Mode(cfg.Verify.Mode),
		MinConfidence: cfg.Verify.MinConfidence,
	})

	registry := executor.NewRegistry()
	skills.RegisterAll(registry, skills.Deps{
		LLM:     buildLLM(context.Background(), cfg),
		Scraper: scraper,
		Search:  search,
		Answers: answers,
		Truth:   engine,
	})
	return registry
}

// printRunSummary reports the outcome to the operator.
func printRunSummary(env types.ResultEnvelope, dir string) {
	fmt.Println()
	if env.Error != "" {
		fmt.Println(failStyle.Render("Analysis finished with errors: " + env.Error))
	} else {
		fmt.Println(okStyle.Render("Analysis complete."))
	}
	fmt.Printf("  Tasks: %d total, %d completed, %d failed, %d pending\n",
		env.Summary.Tasks.Total, env.Summary.Tasks.Completed,
		env.Summary.Tasks.Failed, env.Summary.Tasks.Pending)
	fmt.Printf("  Results: %s\n", filepath.Join(dir, "report.md"))
}

// writeResults drops the envelope and the markdown report into the session
// directory.
func writeResults(dir string, env types.ResultEnvelope) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "results.json"), data, 0o644); err != nil {
		return err
	}
	return report.Write(env, filepath.Join(dir, "report.md"))
}
