package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leasescout/leasescout/internal/extract"
	"github.com/leasescout/leasescout/internal/fetch"
	"github.com/leasescout/leasescout/internal/llm"
	"github.com/leasescout/leasescout/internal/logger"
	"github.com/leasescout/leasescout/internal/orchestrate"
	"github.com/leasescout/leasescout/internal/output"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an extraction against a community website",
	Long: `Run fetches a community website starting at the given URL, discovers
floor plan and fee pages, extracts a structured community record, and
retries with focused passes until the record validates or the retry
budget runs out.

Examples:
  leasescout run -u "https://www.willowcreek.example"

  # Address already known from the request context
  leasescout run -u "https://www.willowcreek.example" --context-field address

  # Write YAML to a file
  leasescout run -u "https://www.willowcreek.example" -o record.yaml --format yaml`,
	RunE: runExtraction,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()

	flags.StringP("url", "u", "", "community website URL (required)")

	// LLM settings
	flags.StringP("provider", "p", "", "LLM provider: anthropic, openai, openrouter (auto-detects from env vars)")
	flags.StringP("model", "m", "", "model name (provider-specific)")
	flags.StringP("api-key", "k", "", "API key (or use env var)")
	flags.String("base-url", "", "custom API base URL")

	// Output settings
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml")

	// Fetch settings
	flags.String("fetch-mode", "dynamic", "fetch mode: static, dynamic")
	flags.Duration("fetch-timeout", 30*time.Second, "per-page fetch timeout")
	flags.Duration("run-timeout", 3*time.Minute, "overall run timeout")

	// Run settings
	flags.IntP("concurrency", "c", 3, "concurrent page workers")
	flags.Int("max-rounds", 3, "max validation rounds")
	flags.Int("max-candidates", 10, "max discovered pages to process")
	flags.StringSlice("context-field", nil, "fact already known from the request (e.g. address); not required from extraction")

	_ = runCmd.MarkFlagRequired("url")

	_ = viper.BindPFlag("provider", flags.Lookup("provider"))
	_ = viper.BindPFlag("model", flags.Lookup("model"))
	_ = viper.BindPFlag("api_key", flags.Lookup("api-key"))
	_ = viper.BindPFlag("base_url", flags.Lookup("base-url"))
}

func runExtraction(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	seedURL, _ := cmd.Flags().GetString("url")

	fetcher, err := buildFetcher(cmd)
	if err != nil {
		logger.Error("failed to create fetcher", "error", err)
		return err
	}
	defer func() { _ = fetcher.Close() }()

	provider, err := buildProvider(cmd)
	if err != nil {
		logger.Error("failed to create LLM provider", "error", err)
		return err
	}

	extractor := extract.NewLLM(provider)

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	maxRounds, _ := cmd.Flags().GetInt("max-rounds")
	maxCandidates, _ := cmd.Flags().GetInt("max-candidates")
	fetchTimeout, _ := cmd.Flags().GetDuration("fetch-timeout")
	runTimeout, _ := cmd.Flags().GetDuration("run-timeout")
	contextFields, _ := cmd.Flags().GetStringSlice("context-field")

	controller := orchestrate.New(fetcher, extractor, orchestrate.Config{
		Concurrency:         concurrency,
		MaxValidationRounds: maxRounds,
		MaxCandidates:       maxCandidates,
		RunTimeout:          runTimeout,
		FetchTimeout:        fetchTimeout,
		ContextFields:       contextFields,
	})

	result, err := controller.RunExtraction(ctx, seedURL)
	if err != nil {
		logger.Error("extraction run failed", "url", seedURL, "error", err)
		return err
	}

	outFile := os.Stdout
	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		f, err := os.Create(outPath) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			logger.Error("failed to create output file", "path", outPath, "error", err)
			return err
		}
		defer func() { _ = f.Close() }()
		outFile = f
	}

	formatStr, _ := cmd.Flags().GetString("format")
	writer, err := output.NewWriter(outFile, output.Format(formatStr))
	if err != nil {
		logger.Error("failed to create output writer", "format", formatStr, "error", err)
		return err
	}
	if err := writer.Write(result); err != nil {
		logger.Error("failed to write output", "error", err)
		return err
	}
	return writer.Flush()
}

// buildFetcher creates the configured fetcher, wrapped with bounded
// retries for transient failures.
func buildFetcher(cmd *cobra.Command) (fetch.Fetcher, error) {
	mode, _ := cmd.Flags().GetString("fetch-mode")
	timeout, _ := cmd.Flags().GetDuration("fetch-timeout")

	var f fetch.Fetcher
	switch mode {
	case "dynamic", "":
		cfg := fetch.DefaultDynamicConfig()
		cfg.Timeout = timeout
		dyn, err := fetch.NewDynamic(cfg)
		if err != nil {
			return nil, err
		}
		f = dyn
	case "static":
		cfg := fetch.DefaultStaticConfig()
		cfg.Timeout = timeout
		f = fetch.NewStatic(cfg)
	default:
		return nil, fmt.Errorf("unknown fetch mode: %s (use 'static' or 'dynamic')", mode)
	}

	return fetch.WithRetry(f, 2), nil
}

// buildProvider resolves the LLM provider from flags, config and
// environment.
func buildProvider(cmd *cobra.Command) (llm.Provider, error) {
	name := viper.GetString("provider")
	apiKey := viper.GetString("api_key")

	if name == "" {
		detected, detectedKey := llm.DetectProvider()
		if detected == "" {
			return nil, fmt.Errorf("no LLM provider configured - set ANTHROPIC_API_KEY, OPENAI_API_KEY or OPENROUTER_API_KEY")
		}
		name = detected
		if apiKey == "" {
			apiKey = detectedKey
		}
		logger.Debug("provider auto-detected", "provider", name)
	}

	cfg := llm.DefaultProviderConfig()
	cfg.APIKey = apiKey
	cfg.BaseURL = viper.GetString("base_url")
	cfg.Model = viper.GetString("model")
	if cfg.Model == "" {
		cfg.Model = llm.GetDefaultModel(name)
	}

	return llm.NewProvider(name, cfg)
}
