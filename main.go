package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	advisorx "github.com/tanpawarit/anti-churn-agent/agent/agents/advisor"
	recommenderx "github.com/tanpawarit/anti-churn-agent/agent/agents/recommender"
	contractx "github.com/tanpawarit/anti-churn-agent/agent/contract"
	datasetx "github.com/tanpawarit/anti-churn-agent/agent/dataset"
	llmx "github.com/tanpawarit/anti-churn-agent/agent/llm"
	loopx "github.com/tanpawarit/anti-churn-agent/agent/loop"
	memoryx "github.com/tanpawarit/anti-churn-agent/agent/memory"
	researchx "github.com/tanpawarit/anti-churn-agent/agent/research"
	configx "github.com/tanpawarit/anti-churn-agent/pkg/config"
	_ "github.com/tanpawarit/anti-churn-agent/pkg/logger/autoload"
	serverx "github.com/tanpawarit/anti-churn-agent/server"
)

type AppConfig struct {
	MemoryBackend   string `envconfig:"MEMORY_BACKEND" default:"sqlite"`
	PassCutoff      int    `envconfig:"PASS_CUTOFF" default:"7"`
	ResearchEnabled bool   `envconfig:"RESEARCH_ENABLED" default:"false"`
}

func main() {
	appCfg := configx.MustNew[AppConfig]("")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := buildBackend(ctx, appCfg.MemoryBackend)
	if err != nil {
		log.Fatal().Err(err).Str("backend", appCfg.MemoryBackend).Msg("failed to open memory backend")
	}
	store, err := memoryx.New(backend)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build memory store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close memory store")
		}
	}()

	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	registry, err := recommenderx.NewRegistry(ctx, *llmCfg, appCfg.PassCutoff)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build model registry")
	}

	loopCfg := configx.MustNew[loopx.Config]("LOOP")
	opts := []loopx.Option{loopx.WithObserver(logObserver{})}
	if appCfg.ResearchEnabled {
		braveCfg := configx.MustNew[researchx.Config]("BRAVE")
		opts = append(opts, loopx.WithResearcher(researchx.MustNew(*braveCfg)))
	}
	engine, err := loopx.New(registry.Generator(), registry.Evaluator(), *loopCfg, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build recommendation loop")
	}

	datasetCfg := configx.MustNew[datasetx.Config]("DATASET")
	loader := datasetx.NewLoader(*datasetCfg)

	advisor, err := advisorx.New(engine, store, loader)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build advisor")
	}

	serverCfg := configx.MustNew[serverx.Config]("HTTP")
	srv := serverx.New(*serverCfg, serverx.NewHandler(advisor))

	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("server stopped")
}

func buildBackend(ctx context.Context, kind string) (memoryx.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "sqlite":
		cfg := configx.MustNew[memoryx.SQLiteConfig]("SQLITE")
		return memoryx.NewSQLiteBackend(*cfg)
	case "postgres":
		cfg := configx.MustNew[memoryx.PostgresConfig]("POSTGRES")
		return memoryx.NewPostgresBackend(ctx, *cfg)
	case "redis":
		cfg := configx.MustNew[memoryx.RedisConfig]("REDIS")
		return memoryx.NewRedisBackend(ctx, *cfg)
	default:
		return nil, fmt.Errorf("unknown memory backend %q", kind)
	}
}

// logObserver emits one log line per loop attempt.
type logObserver struct{}

func (logObserver) AttemptStarted(attempt int) {
	log.Debug().Int("attempt", attempt).Msg("recommendation attempt started")
}

func (logObserver) AttemptEvaluated(attempt int, eval contractx.Evaluation) {
	log.Info().
		Int("attempt", attempt).
		Int("score", eval.Score).
		Str("verdict", string(eval.Verdict)).
		Msg("recommendation attempt evaluated")
}

func (logObserver) AttemptFailed(attempt int, err error) {
	log.Warn().Int("attempt", attempt).Err(err).Msg("recommendation attempt failed")
}
