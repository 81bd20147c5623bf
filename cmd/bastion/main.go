package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/trustlayer-ai/bastion/pkg/api"
	"github.com/trustlayer-ai/bastion/pkg/audit"
	"github.com/trustlayer-ai/bastion/pkg/config"
	"github.com/trustlayer-ai/bastion/pkg/content"
	"github.com/trustlayer-ai/bastion/pkg/imaging"
	"github.com/trustlayer-ai/bastion/pkg/injection"
	"github.com/trustlayer-ai/bastion/pkg/llm"
	"github.com/trustlayer-ai/bastion/pkg/normalize"
	"github.com/trustlayer-ai/bastion/pkg/pipeline"
	"github.com/trustlayer-ai/bastion/pkg/queue"
	"github.com/trustlayer-ai/bastion/pkg/rules"
	"github.com/trustlayer-ai/bastion/pkg/score"
	"github.com/trustlayer-ai/bastion/pkg/spam"
	"github.com/trustlayer-ai/bastion/pkg/storage"
)

const Version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)

	switch os.Args[1] {
	case "serve":
		runServe(cfg, logger)
	case "worker":
		runWorker(cfg, logger)
	case "analyze":
		if len(os.Args) < 4 {
			fmt.Println("Usage: bastion analyze <content_type> <content>")
			os.Exit(1)
		}
		runAnalyze(cfg, logger, os.Args[2], strings.Join(os.Args[3:], " "))
	case "version":
		fmt.Printf("Bastion v%s\n", Version)
		fmt.Println("Content Risk Decision Pipeline")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Bastion v%s - Content Risk Decision Pipeline\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  bastion serve                      Start the HTTP API (and worker if NATS is configured)")
	fmt.Println("  bastion worker                     Start the queue worker only")
	fmt.Println("  bastion analyze <type> <content>   Analyze one piece of content and print the verdict")
	fmt.Println("  bastion version                    Show version")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  BASTION_POSTGRES_DSN   Postgres connection string (rules, verdicts, audit)")
	fmt.Println("  BASTION_REDIS_ADDR     Redis address (image hash lists)")
	fmt.Println("  BASTION_NATS_URL       NATS URL for async intake")
	fmt.Println("  BASTION_LLM_PROVIDER   LLM provider: ollama, openrouter, groq, custom, none")
	fmt.Println("  BASTION_LLM_API_KEY    API key for cloud LLM providers")
	fmt.Println("  BASTION_CONFIG         Optional YAML config file path")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

// deps bundles everything the commands assemble from config. Optional
// backends stay nil when unconfigured and the pipeline degrades around them.
type deps struct {
	executor *pipeline.Executor
	pg       *storage.Postgres
	hashes   *storage.HashList
	bus      *queue.Bus
}

func buildDeps(ctx context.Context, cfg *config.Config, logger zerolog.Logger, needBus bool) (*deps, error) {
	d := &deps{}

	if cfg.PostgresDSN != "" {
		pg, err := storage.NewPostgres(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		d.pg = pg
		logger.Info().Msg("postgres connected")
	} else {
		logger.Info().Msg("postgres not configured, dynamic rules and persistence disabled")
	}

	if cfg.RedisAddr != "" {
		hashes, err := storage.NewHashList(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		d.hashes = hashes
		logger.Info().Msg("redis connected")
	} else {
		logger.Info().Msg("redis not configured, image hash lists disabled")
	}

	if needBus && (cfg.NATSURL != "" || cfg.EmbeddedNATS) {
		bus, err := queue.NewBus(queue.BusConfig{
			URL:            cfg.NATSURL,
			Embedded:       cfg.EmbeddedNATS,
			SubmitSubject:  cfg.SubmitSubject,
			VerdictSubject: cfg.VerdictSubject,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		d.bus = bus
	}

	var scorer *llm.Scorer
	if cfg.LLMProvider != "none" && cfg.LLMProvider != "" {
		scorer = llm.NewScorer(llm.ScorerConfig{
			Provider: llm.Provider(cfg.LLMProvider),
			APIKey:   cfg.LLMAPIKey,
			Model:    cfg.LLMModel,
			BaseURL:  cfg.LLMBaseURL,
		}, logger)
		logger.Info().Str("provider", cfg.LLMProvider).Msg("llm scorer enabled")
	} else {
		logger.Info().Msg("llm scorer disabled, rule scores are final")
	}

	var ruleStore rules.Store = rules.StaticStore(nil)
	if d.pg != nil {
		ruleStore = d.pg
	}
	cache := rules.NewCache(ruleStore, cfg.RuleStaleness, logger)
	ruleEngine := rules.NewEngine(cache, rules.Thresholds{
		HighRisk:         cfg.HighRiskThreshold,
		DetailedAnalysis: cfg.DetailedAnalysisThreshold,
	}, logger)

	var textScorer spam.TextScorer
	var imageScorer imaging.ImageScorer
	if scorer != nil {
		textScorer = scorer
		imageScorer = scorer
	}

	spamEngine := spam.NewEngine(ruleEngine, textScorer, logger)

	var hashStore imaging.HashStore
	if d.hashes != nil {
		hashStore = d.hashes
	}
	analyzer := imaging.NewLayeredAnalyzer(hashStore, imaging.NewHeuristicModel(), imageScorer, logger)

	sinks := audit.MultiSink{audit.NewLogSink(logger)}
	if d.pg != nil {
		sinks = append(sinks, audit.NewStoreSink(d.pg, logger))
	}

	d.executor = pipeline.NewExecutor(sinks, logger,
		pipeline.NewNormalizationStage(normalize.New()),
		pipeline.NewInjectionValidationStage(injection.NewValidator(logger)),
		pipeline.NewSpamDetectionStage(spamEngine),
		pipeline.NewImageAnalysisStage(analyzer),
		pipeline.NewScoreCalculationStage(score.NewCalculator(logger)),
	)
	return d, nil
}

func (d *deps) close() {
	if d.bus != nil {
		_ = d.bus.Close()
	}
	if d.hashes != nil {
		_ = d.hashes.Close()
	}
	if d.pg != nil {
		d.pg.Close()
	}
}

func runServe(cfg *config.Config, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	d, err := buildDeps(ctx, cfg, logger, true)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer d.close()

	if d.bus != nil {
		worker := queue.NewWorker(d.bus, d.executor, verdictStore(d.pg), logger)
		if err := worker.Start("bastion-worker"); err != nil {
			logger.Fatal().Err(err).Msg("worker start failed")
		}
		logger.Info().Msg("queue worker started")
	}

	var store api.Store
	if d.pg != nil {
		store = d.pg
	}
	server := api.NewServer(d.executor, store, d.bus, Version, logger)
	app := server.App()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info().Msg("shutting down")
		_ = app.Shutdown()
	}()

	logger.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
	if err := app.Listen(cfg.ListenAddr); err != nil {
		logger.Fatal().Err(err).Msg("http server failed")
	}
}

func runWorker(cfg *config.Config, logger zerolog.Logger) {
	if cfg.NATSURL == "" && !cfg.EmbeddedNATS {
		logger.Fatal().Msg("worker mode requires BASTION_NATS_URL or BASTION_EMBEDDED_NATS")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	d, err := buildDeps(ctx, cfg, logger, true)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer d.close()

	worker := queue.NewWorker(d.bus, d.executor, verdictStore(d.pg), logger)
	if err := worker.Start("bastion-worker"); err != nil {
		logger.Fatal().Err(err).Msg("worker start failed")
	}
	logger.Info().Msg("queue worker running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")
}

func runAnalyze(cfg *config.Config, logger zerolog.Logger, contentType, raw string) {
	ct, ok := content.ParseContentType(contentType)
	if !ok {
		fmt.Fprintln(os.Stderr, "content_type must be one of: html, plain, text, json, image")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	d, err := buildDeps(ctx, cfg, logger, false)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer d.close()

	verdict := d.executor.Process(context.Background(), content.Submission{
		ID:          fmt.Sprintf("cli-%d", time.Now().UnixNano()),
		ContentType: ct,
		RawContent:  raw,
	})

	out, _ := json.MarshalIndent(verdict, "", "  ")
	fmt.Println(string(out))
}

// verdictStore avoids handing the worker a typed nil interface.
func verdictStore(pg *storage.Postgres) queue.VerdictStore {
	if pg == nil {
		return nil
	}
	return pg
}
