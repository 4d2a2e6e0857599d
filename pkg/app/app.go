// Package app builds the object graph shared by the HTTP server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	configAPI "filing_qa/pkg/api/config"
	qaAPI "filing_qa/pkg/api/qa"
	"filing_qa/pkg/api/server"
	"filing_qa/pkg/core/agent"
	"filing_qa/pkg/core/analyzer"
	"filing_qa/pkg/core/answer"
	"filing_qa/pkg/core/cache"
	"filing_qa/pkg/core/config"
	"filing_qa/pkg/core/conversation"
	"filing_qa/pkg/core/download"
	"filing_qa/pkg/core/filing"
	"filing_qa/pkg/core/llm"
	"filing_qa/pkg/core/prompt"
	"filing_qa/pkg/core/qa"
	"filing_qa/pkg/core/scheduler"
	"filing_qa/pkg/core/selector"
	"filing_qa/pkg/core/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Options overrides parts of the graph, mainly for tests and local runs.
type Options struct {
	// Providers replaces the providers built from the models config.
	Providers map[string]llm.Provider
	// Source replaces the filing source in memory mode.
	Source filing.Source
}

type App struct {
	Config *config.Config
	Log    zerolog.Logger

	Pool      *pgxpool.Pool
	Agents    *agent.Manager
	Prompts   *prompt.Registry
	Cache     cache.Cache
	Downloads download.Submitter
	QA        *qa.Orchestrator
	Scheduler *scheduler.Scheduler

	runner  *download.ScriptRunner
	closers []func() error
}

// New wires every component from cfg. Without DATABASE_URL the filing source
// and conversation store are in-memory.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Log: log, Scheduler: scheduler.New(log)}

	a.Prompts = prompt.NewRegistry()
	if err := prompt.LoadFromDirectory(a.Prompts, cfg.ResourcesDir, log); err != nil {
		log.Warn().Err(err).Msg("Failed to load prompt library, using built-in prompts")
	}

	agents, err := a.buildAgents(opts)
	if err != nil {
		return nil, err
	}
	a.Agents = agents

	var (
		source filing.Source
		convs  conversation.Store
	)
	if cfg.DatabaseURL != "" {
		pool, err := store.Open(ctx, store.PoolConfig{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, err
		}
		a.Pool = pool
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		source = store.NewFilingRepo(pool)
		convs = store.NewConversationRepo(pool)
	} else {
		log.Warn().Msg("DATABASE_URL not set, using in-memory stores")
		source = opts.Source
		if source == nil {
			source = filing.NewMemorySource()
		}
		convs = conversation.NewMemoryStore()
	}

	if err := a.buildCache(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.buildDownloads()

	a.QA = qa.New(qa.Deps{
		Selector: selector.New(source, cfg.SelectLimit, log),
		Analyzer: analyzer.New(agents.Role(agent.RoleRequirements), a.Prompts, log),
		Generator: answer.New(agents.Role(agent.RoleAnswer), a.Prompts, answer.ContextBuilder{
			SectionCharCap: cfg.SectionCharCap,
			Form4CharCap:   cfg.Form4CharCap,
		}, log),
		Cache:         a.Cache,
		Conversations: convs,
		Downloads:     a.Downloads,
	}, qa.Options{
		TitleMaxLen:           cfg.TitleMaxLen,
		DownloadLookbackYears: cfg.DownloadLookbackYears,
		NameFallback:          cfg.NameFallback,
	}, log)

	if purger, ok := a.Cache.(cache.Purger); ok && cfg.CachePurgeSchedule != "" {
		if err := a.Scheduler.AddJob(cfg.CachePurgeSchedule, cache.NewPurgeJob(purger, log)); err != nil {
			a.Close()
			return nil, fmt.Errorf("schedule cache purge: %w", err)
		}
	}
	return a, nil
}

func (a *App) buildAgents(opts Options) (*agent.Manager, error) {
	agentCfg, err := agent.LoadConfig(a.Config.ModelsConfig)
	if err != nil {
		if opts.Providers == nil || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		agentCfg = agent.Config{}
	}

	if opts.Providers != nil {
		mgr := agent.NewManagerWithProviders(agentCfg, opts.Providers)
		if _, ok := opts.Providers[agentCfg.ActiveProvider]; !ok {
			if names := mgr.Available(); len(names) > 0 {
				_ = mgr.SetGlobalProvider(names[0])
			}
		}
		return mgr, nil
	}

	mgr := agent.NewManager(agentCfg, agent.Options{
		Timeout:    a.Config.LLMTimeout,
		RatePerSec: a.Config.LLMRatePerSec,
		Logger:     a.Log,
	})
	if len(mgr.Available()) == 0 {
		return nil, fmt.Errorf("no usable providers in %s", a.Config.ModelsConfig)
	}
	return mgr, nil
}

func (a *App) buildCache(ctx context.Context) error {
	cfg := a.Config
	switch cfg.CacheBackend {
	case config.CachePostgres:
		if a.Pool == nil {
			return fmt.Errorf("postgres cache needs DATABASE_URL")
		}
		a.Cache = store.NewAnswerCacheRepo(a.Pool, cfg.CacheTTL)
	case config.CacheRedis:
		rc := cache.NewRedisCache(cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.CacheTTL)
		if err := rc.Ping(ctx); err != nil {
			a.Log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis not reachable, cache reads will miss")
		}
		a.Cache = rc
		a.closers = append(a.closers, rc.Close)
	case config.CacheBadger:
		bc, err := cache.OpenBadger(cfg.BadgerPath, cfg.CacheTTL)
		if err != nil {
			return err
		}
		a.Cache = bc
		a.closers = append(a.closers, bc.Close)
	default:
		a.Cache = cache.NewMemoryCache(cfg.CacheTTL)
	}
	a.Log.Info().Str("backend", cfg.CacheBackend).Dur("ttl", cfg.CacheTTL).Msg("Answer cache ready")
	return nil
}

func (a *App) buildDownloads() {
	if a.Config.DownloadScript == "" {
		a.Downloads = download.Noop{}
		return
	}
	a.runner = download.NewScriptRunner(download.RunnerConfig{
		Script:      a.Config.DownloadScript,
		Concurrency: int64(a.Config.DownloadConcurrency),
		Timeout:     a.Config.DownloadTimeout,
	}, a.Log)
	a.Downloads = a.runner
}

// Server builds the HTTP server around the orchestrator.
func (a *App) Server() *server.Server {
	return server.New(server.Config{
		Port:        a.Config.Port,
		Log:         a.Log,
		QA:          qaAPI.NewHandler(a.QA, a.Log),
		ModelConfig: configAPI.NewHandler(a.Agents, a.Log),
		DevMode:     a.Config.LogPretty,
	})
}

// PurgeCache runs the cache purge once. Backends with native expiry report 0.
func (a *App) PurgeCache(ctx context.Context) (int64, error) {
	purger, ok := a.Cache.(cache.Purger)
	if !ok {
		return 0, nil
	}
	return purger.PurgeExpired(ctx)
}

// Close stops background downloads and releases connections.
func (a *App) Close() {
	if a.runner != nil {
		a.runner.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
