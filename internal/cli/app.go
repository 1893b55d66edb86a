package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/malbeclabs/hybridqa/pkg/agent"
	"github.com/malbeclabs/hybridqa/pkg/config"
	"github.com/malbeclabs/hybridqa/pkg/docs"
	"github.com/malbeclabs/hybridqa/pkg/llm"
	"github.com/malbeclabs/hybridqa/pkg/logger"
	"github.com/malbeclabs/hybridqa/pkg/metrics"
	"github.com/malbeclabs/hybridqa/pkg/store"
)

// app holds the wired components shared by every subcommand.
type app struct {
	log      *slog.Logger
	cfg      *config.Config
	db       *sql.DB
	store    *store.Store
	index    *docs.Index
	pipeline *agent.Pipeline
}

// loadConfig reads the config file and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	flags := cmd.Root().PersistentFlags()
	verbose, err := flags.GetBool("verbose")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	path, err := flags.GetString("config")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	overrides := map[string]*string{
		"metrics-addr": &cfg.MetricsAddr,
		"provider":     &cfg.LLM.Provider,
		"model":        &cfg.LLM.Model,
		"db-driver":    &cfg.Store.Driver,
		"dsn":          &cfg.Store.DSN,
		"docs":         &cfg.DocsDir,
	}
	for name, dst := range overrides {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetString(name); err != nil {
			return nil, nil, fmt.Errorf("failed to get %s flag: %w", name, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, logger.New(verbose), nil
}

func newApp(ctx context.Context, log *slog.Logger, cfg *config.Config) (*app, error) {
	db, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	a := &app{log: log, cfg: cfg, db: db}

	a.store, err = store.New(store.Config{
		Logger:         log,
		DB:             db,
		Driver:         cfg.Store.Driver,
		SchemaCacheTTL: cfg.Store.SchemaCacheTTL,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	fragments, err := docs.LoadDir(cfg.DocsDir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	a.index, err = docs.NewIndex(ctx, log, fragments)
	if err != nil {
		a.Close()
		return nil, err
	}

	client, err := llm.New(llm.Config{
		Logger:    log,
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    cfg.LLM.APIKey,
		MaxTokens: cfg.LLM.MaxTokens,
		MaxTries:  cfg.LLM.MaxTries,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	prompts, err := agent.LoadPrompts()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pipeline, err = agent.New(&agent.Config{
		Logger:         log,
		LLM:            client,
		Store:          a.store,
		Index:          a.index,
		Prompts:        prompts,
		MaxRepairs:     *cfg.Agent.MaxRepairs,
		RetrieveK:      cfg.Agent.RetrieveK,
		BoostK:         cfg.Agent.BoostK,
		BoostQuery:     cfg.Agent.BoostQuery,
		MaxRowChars:    cfg.Agent.MaxRowChars,
		ModelTimeout:   cfg.LLM.Timeout,
		PolicyKeywords: cfg.Agent.PolicyKeywords,
		Tables:         a.store.Tables(),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	log.Info("hybridqa: ready",
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"driver", cfg.Store.Driver,
		"fragments", len(fragments),
	)
	return a, nil
}

func (a *app) Close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.log.Error("failed to close document index", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error("failed to close database", "error", err)
		}
	}
}

// startMetricsServer serves /metrics in the background. It is a no-op when addr is empty.
func startMetricsServer(log *slog.Logger, addr string) {
	if addr == "" {
		return
	}
	metrics.BuildInfo.WithLabelValues(Version, Commit, Date).Set(1)
	go func() {
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			log.Error("failed to start prometheus metrics server listener", "error", err)
			return
		}
		log.Info("prometheus metrics server listening", "address", listener.Addr().String())
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.Serve(listener, mux); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Error("failed to serve prometheus metrics", "error", err)
		}
	}()
}
