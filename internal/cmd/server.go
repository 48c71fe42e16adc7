package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pharmaboost/pharmaboost/internal/agent"
	"github.com/pharmaboost/pharmaboost/internal/cmn/logger"
	"github.com/pharmaboost/pharmaboost/internal/cmn/pool"
	"github.com/pharmaboost/pharmaboost/internal/config"
	"github.com/pharmaboost/pharmaboost/internal/coordinator"
	"github.com/pharmaboost/pharmaboost/internal/document"
	"github.com/pharmaboost/pharmaboost/internal/frontend"
	"github.com/pharmaboost/pharmaboost/internal/ledger"
	"github.com/pharmaboost/pharmaboost/internal/llm"
	"github.com/pharmaboost/pharmaboost/internal/memory"
	"github.com/pharmaboost/pharmaboost/internal/pipeline"
	"github.com/pharmaboost/pharmaboost/internal/prompt"
	"github.com/pharmaboost/pharmaboost/internal/search"

	_ "github.com/pharmaboost/pharmaboost/internal/llm/providers/gemini"
)

// CmdServer starts the HTTP API server.
func CmdServer() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server [flags]",
		Short: "Start the content generation API server",
		Long: `Launch the HTTP server that accepts product spreadsheets and streams
generated listing content back over Server-Sent Events.`,
		RunE: runServer,
	}
	cmd.Flags().String("host", "", "host address to bind to")
	cmd.Flags().Int("port", 0, "port number to listen on")
	return cmd
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.NewConfigLoader(viper.New(),
		config.WithConfigFile(configFile),
		config.WithEnvFile(envFile),
	).Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logOpts := []logger.Option{logger.WithFormat(cfg.LogFormat)}
	if cfg.Debug {
		logOpts = append(logOpts, logger.WithDebug())
	}
	log := logger.NewLogger(logOpts...)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	prompts, err := prompt.NewStore(cfg.PromptDir)
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}

	providerCfg := llm.DefaultConfig()
	providerCfg.APIKey = cfg.GeminiAPIKey
	providerCfg.Model = cfg.GeminiModel
	provider, err := llm.NewProvider(llm.ProviderGemini, providerCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize model provider: %w", err)
	}

	pools := coordinator.Pools{
		Rows:      pool.New(cfg.RowCap),
		Downloads: pool.New(cfg.DownloadCap),
		Searches:  pool.New(cfg.SearchCap),
	}
	deps := agent.Deps{
		Prompts:  prompts,
		Executor: llm.NewExecutor(provider, llm.WithMaxRetries(cfg.MaxRetries)),
		Search: search.NewClient(search.Config{
			APIKey:   cfg.SearchAPIKey,
			EngineID: cfg.SearchEngineID,
			Country:  "br",
			Language: "lang_pt",
		}),
		SearchPool: pools.Searches,
	}

	mem := memory.NewStore(cfg.MemoryPath())
	runner := pipeline.NewRunner(deps, ledger.New(cfg.LedgerPath()), mem)
	fetcher := document.NewFetcher(pools.Downloads, document.PlainText)
	coord := coordinator.New(runner, fetcher, pools)

	logger.Info(ctx, "Server initialization", "host", cfg.Host, "port", cfg.Port)
	server := frontend.NewServer(cfg, coord, mem)
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
