package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	gemini "github.com/localhands/matchd/internal/ai/gemini"
	"github.com/localhands/matchd/internal/lease"
	"github.com/localhands/matchd/internal/logger"
	"github.com/localhands/matchd/internal/matching"
	"github.com/localhands/matchd/internal/model"
	"github.com/localhands/matchd/internal/notify"
	"github.com/localhands/matchd/internal/secrets"
	"github.com/localhands/matchd/internal/store"
)

// newLogger builds the zap logger from the persistent flags. Commands treat
// a logger failure as unrecoverable.
func newLogger() (*zap.Logger, error) {
	return logger.New(viper.GetBool("json"), viper.GetBool("debug"))
}

func openStore(ctx context.Context, config *Config) (*store.Store, error) {
	if config == nil || config.Database == nil || strings.TrimSpace(config.Database.URL) == "" {
		return nil, fmt.Errorf("database url is required (set database.url or MATCHD_DATABASE_URL)")
	}

	return store.Connect(ctx, config.Database.URL)
}

func lexicalWeights(config *Config) matching.Weights {
	w := matching.DefaultWeights()
	if config == nil || config.Matching == nil {
		return w
	}

	m := config.Matching
	if m.TokenWeight > 0 {
		w.TokenWeight = m.TokenWeight
	}
	if m.SkillWeight > 0 {
		w.SkillWeight = m.SkillWeight
	}
	if m.MinLexicalScore > 0 {
		w.MinScore = m.MinLexicalScore
	}
	if m.TopK > 0 {
		w.TopK = m.TopK
	}

	return w
}

// newScorer returns the configured ranking strategy: the model-backed ranker
// when AI is enabled, otherwise the lexical scorer alone.
func newScorer(ctx context.Context, config *Config, st *store.Store, log *zap.Logger) (matching.Scorer, *matching.LexicalScorer, error) {
	lexical := matching.NewLexicalScorer(lexicalWeights(config))

	if config == nil || config.AI == nil || !config.AI.Enabled {
		return lexical, lexical, nil
	}

	provider := strings.TrimSpace(strings.ToLower(config.AI.Provider))
	if provider != "" && provider != "gemini" {
		return nil, nil, fmt.Errorf("unsupported ai provider: %s", config.AI.Provider)
	}
	if config.AI.Gemini == nil {
		return nil, nil, fmt.Errorf("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: config.AI.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w (set ai.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, config.AI.Gemini.Model, config.AI.Gemini.MaxOutputTokens)
	if err != nil {
		return nil, nil, err
	}

	minScore := 0.0
	if config.Matching != nil {
		minScore = config.Matching.MinModelScore
	}

	rankerLogger := log.With(
		zap.String("provider", "gemini"),
		zap.String("model", generator.Model()),
	)

	ranker := gemini.NewRanker(generator, lexical, st, minScore, config.AI.Gemini.MaxLogLength, rankerLogger)

	return ranker, lexical, nil
}

func newDispatcher(config *Config, st *store.Store, log *zap.Logger) (*notify.Dispatcher, error) {
	if config == nil || config.SMTP == nil {
		return nil, fmt.Errorf("smtp configuration is required to dispatch notifications")
	}

	// No password means an unauthenticated relay, which is fine for local
	// and test setups.
	password := ""
	if strings.TrimSpace(config.SMTP.PasswordFile) != "" || os.Getenv("MATCHD_SMTP_PASSWORD") != "" {
		loaded, err := secrets.Load(secrets.Source{
			Name: "smtp password",
			File: config.SMTP.PasswordFile,
			Env:  "MATCHD_SMTP_PASSWORD",
		})
		if err != nil {
			return nil, err
		}
		password = loaded
	}

	transport := notify.NewEmailTransport(
		config.SMTP.Host, config.SMTP.Port, config.SMTP.Username, password, config.SMTP.From,
	)

	maxAttempts := 0
	backoff := time.Duration(0)
	if config.Dispatch != nil {
		maxAttempts = config.Dispatch.MaxAttempts
		backoff = time.Duration(config.Dispatch.BackoffSeconds) * time.Second
	}

	return notify.NewDispatcher(st, transport, maxAttempts, backoff, log), nil
}

// newLease returns a lease on the given key, or nil when redis is not
// configured and single-instance execution is assumed.
func newLease(config *Config, key string, ttl time.Duration) *lease.Lease {
	if config == nil || config.Redis == nil || strings.TrimSpace(config.Redis.Addr) == "" {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})

	return lease.New(rdb, key, ttl)
}

// withLease runs fn while holding the lease when one is configured. A held
// lease elsewhere skips the run instead of failing it.
func withLease(ctx context.Context, l *lease.Lease, log *zap.Logger, name string, fn func() error) error {
	if l == nil {
		return fn()
	}

	ok, err := l.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire %s lease: %w", name, err)
	}
	if !ok {
		log.Info("another instance holds the lease, skipping", zap.String("lease", name))
		return nil
	}
	defer func() {
		if err := l.Release(ctx); err != nil {
			log.Warn("releasing lease failed", zap.String("lease", name), zap.Error(err))
		}
	}()

	return fn()
}

func parseKind(raw string) (model.ListingKind, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(strings.ToLower(raw)), "-", "_")
	kind := model.ListingKind(normalized)
	if !kind.Valid() {
		return "", fmt.Errorf("invalid kind %q (expected seeking-work or seeking-help)", raw)
	}

	return kind, nil
}

func parseUser(raw, flagName string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("--%s must be a user id", flagName)
	}

	return id, nil
}

func optionalRate(value int, changed bool) *int {
	if !changed {
		return nil
	}
	return &value
}
