package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/mkoessler/eldersift/internal/classify"
	"github.com/mkoessler/eldersift/internal/config"
	"github.com/mkoessler/eldersift/internal/llm"
	"github.com/mkoessler/eldersift/internal/pipeline"
	"github.com/mkoessler/eldersift/internal/report"
	"github.com/mkoessler/eldersift/internal/retry"
	"github.com/mkoessler/eldersift/internal/server"
	"github.com/mkoessler/eldersift/internal/store"
	"github.com/mkoessler/eldersift/internal/textclean"
	"github.com/mkoessler/eldersift/internal/translate"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "eldersift",
	Short:   "Elderly-text classification pipeline",
	Long:    "ElderSift filters a mental-health text dataset down to posts about elderly people: keyword prefilter, LLM classification with resumable checkpoints, and a confident subset export.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Credentials live in the environment, optionally via a dotenv file.
		_ = godotenv.Load("config/.env")
		_ = godotenv.Load()

		setupLogging()

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if verbose || strings.EqualFold(cfg.Logging.Level, "debug") {
			setLogLevel(slog.LevelDebug)
		}
		return nil
	},
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	setLogLevel(level)
}

func setLogLevel(level slog.Level) {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})))
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("eldersift", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/eldersift/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set the API endpoint, model, and key variable name.")
		return nil
	},
}

// --- clean command ---

var (
	cleanInput  string
	cleanOutput string
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Fix mojibake and normalize whitespace in a dataset CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		output := cleanOutput
		if output == "" {
			output = textclean.DeriveCleanPath(cleanInput)
		}

		n, err := textclean.CleanFile(cleanInput, output)
		if err != nil {
			return err
		}
		fmt.Printf("Cleaned %d rows: %s\n", n, output)
		return nil
	},
}

func init() {
	cleanCmd.Flags().StringVarP(&cleanInput, "input", "i", "", "Input dataset CSV (title,content columns)")
	cleanCmd.Flags().StringVarP(&cleanOutput, "output", "o", "", "Output path (default <input>_clean.csv)")
	cleanCmd.MarkFlagRequired("input")
}

// --- classify command ---

var (
	classifyInput  string
	classifyOutput string
	classifySubset string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify dataset rows as elderly-related, resumable via the output file",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cfg.API.Model)
		if err != nil {
			return err
		}

		pipe := pipeline.New(classify.New(client), pipeline.Options{
			InputPath:  classifyInput,
			OutputPath: classifyOutput,
			SubsetPath: classifySubset,
			Threshold:  cfg.Classify.MinConfidence,
			Retry:      retryConfig(),
		})

		result, err := pipe.Run(context.Background())
		if err != nil {
			return err
		}

		fmt.Println("Classification complete:")
		fmt.Printf("  Total rows: %d\n", result.Total)
		fmt.Printf("  Already done: %d\n", result.AlreadyDone)
		fmt.Printf("  Prefilter negatives: %d\n", result.Heuristic)
		fmt.Printf("  Classified via API: %d\n", result.Classified)
		fmt.Printf("  Failed (uncertain): %d\n", result.Exhausted)
		fmt.Printf("\nConfident subset: %d rows in %s\n", result.Confident, pipe.SubsetPath())
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyInput, "input", "i", "", "Input dataset CSV (title,content columns)")
	classifyCmd.Flags().StringVarP(&classifyOutput, "output", "o", "results.csv", "Output/checkpoint CSV")
	classifyCmd.Flags().StringVar(&classifySubset, "subset", "", "Confident subset path (default <output>_confident.csv)")
	classifyCmd.MarkFlagRequired("input")
}

// --- translate command ---

var (
	translateInput  string
	translateOutput string
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate dataset content to Chinese, resumable via the output file",
	RunE: func(cmd *cobra.Command, args []string) error {
		model := cfg.API.TranslateModel
		if model == "" {
			model = cfg.API.Model
		}
		client, err := newClient(model)
		if err != nil {
			return err
		}

		tr := translate.New(client, retryConfig())
		result, err := tr.TranslateFile(context.Background(), translateInput, translateOutput)
		if err != nil {
			return err
		}

		fmt.Println("Translation complete:")
		fmt.Printf("  Total rows: %d\n", result.Total)
		fmt.Printf("  Already done: %d\n", result.AlreadyDone)
		fmt.Printf("  Translated: %d\n", result.Translated)
		fmt.Printf("  Failed (kept original): %d\n", result.Failed)
		return nil
	},
}

func init() {
	translateCmd.Flags().StringVarP(&translateInput, "input", "i", "", "Input dataset CSV (title,content columns)")
	translateCmd.Flags().StringVarP(&translateOutput, "output", "o", "translated.csv", "Output/checkpoint CSV")
	translateCmd.MarkFlagRequired("input")
}

// --- import command ---

var importCmd = &cobra.Command{
	Use:   "import [results.csv]",
	Short: "Import a classification output CSV into the local database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.ImportCSV(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d verdicts into %s\n", n, st.Path())
		return nil
	},
}

// --- verify command ---

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check imported verdicts for integrity",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		issues, err := st.Verify()
		if err != nil {
			return err
		}
		if len(issues) > 0 {
			fmt.Print(store.FormatIssues(issues))
			return fmt.Errorf("%d integrity issues found", len(issues))
		}
		fmt.Println("OK: all verdicts pass integrity checks")
		return nil
	},
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database status and label distribution",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.GetStats(cfg.Classify.MinConfidence)
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		if stats.Total == 0 {
			fmt.Println("No verdicts imported. Run 'eldersift classify' then 'eldersift import'.")
			return nil
		}

		fmt.Printf("Verdicts: %d\n", stats.Total)
		fmt.Printf("  elderly: %d\n", stats.ByLabel["elderly"])
		fmt.Printf("  not_elderly: %d\n", stats.ByLabel["not_elderly"])
		fmt.Printf("  uncertain: %d\n", stats.ByLabel["uncertain"])
		fmt.Printf("\nConfident (>= %.2f): %d\n", cfg.Classify.MinConfidence, stats.Confident)
		if stats.LastSource != "" {
			fmt.Printf("Last import: %s (%s)\n", stats.LastSource, stats.LastImport)
		}
		return nil
	},
}

// --- report command ---

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the run report as markdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.GetStats(cfg.Classify.MinConfidence)
		if err != nil {
			return err
		}
		top, err := st.TopConfident("elderly", 20)
		if err != nil {
			return err
		}

		fmt.Print(report.Build(stats, top))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(st, cfg.Classify.MinConfidence, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- helpers ---

// newClient builds an LLM client for the given model and fails fast when the
// credential is missing, before any rows are touched.
func newClient(model string) (*llm.Client, error) {
	client := llm.NewClient(cfg.API.BaseURL, model, cfg.APIKey())
	if !client.IsConfigured() {
		return nil, fmt.Errorf("API key not set: export %s or add it to config/.env", cfg.API.APIKeyEnv)
	}
	return client, nil
}

func retryConfig() retry.Config {
	rc := retry.DefaultConfig
	if cfg.Classify.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.Classify.MaxAttempts
	}
	return rc
}

func openStore() (*store.Store, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return store.Open(filepath.Join(dataDir, "eldersift.db"))
}
