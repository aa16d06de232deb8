// Command bizlens runs autonomous business context analysis: a two-phase
// research pipeline that turns a company name and website into a structured
// multi-framework report with verified, source-attributed facts.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bizlens/internal/logging"
	"bizlens/internal/session"
)

var (
	// Global flags
	verbose bool
	baseDir string

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bizlens",
	Short: "bizlens - autonomous business context analysis",
	Long: `bizlens is an autonomous research pipeline for business analysis.

Phase 1 builds the foundation: company intelligence, business model,
value chain, market landscape and competitor profiles, cross-referenced
across independent sources with confidence scoring.

Phase 2 applies strategic frameworks (SWOT, Porter's Five Forces, PESTEL,
BCG Matrix, Blue Ocean and more) over the Phase 1 findings.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if baseDir == "" {
			baseDir = session.DefaultBaseDir()
		}
		if err := logging.Initialize(baseDir, logging.Options{
			Debug: verbose || os.Getenv("BIZLENS_DEBUG") == "1",
			Level: logLevel(),
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.Close()
	},
}

func logLevel() string {
	if verbose {
		return "debug"
	}
	return "info"
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&baseDir, "base-dir", "", "Session base directory (default: ~/.bizlens)")

	rootCmd.AddCommand(analyzeCmd, sessionsCmd, reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
