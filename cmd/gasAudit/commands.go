package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/Layr-Labs/gasaudit-go/pkg/audit"
	"github.com/Layr-Labs/gasaudit-go/pkg/chaindata"
	"github.com/Layr-Labs/gasaudit-go/pkg/challenge"
	"github.com/Layr-Labs/gasaudit-go/pkg/config"
	"github.com/Layr-Labs/gasaudit-go/pkg/logger"
	"github.com/Layr-Labs/gasaudit-go/pkg/persistence"
)

// auditReport is printed after a successful audit
type auditReport struct {
	SessionID   string          `json:"sessionId"`
	FromBlock   uint64          `json:"fromBlock"`
	ToBlock     uint64          `json:"toBlock"`
	TotalWeight uint64          `json:"totalWeight"`
	Rounds      int             `json:"rounds"`
	Alpha       challenge.Alpha `json:"alpha"`
	AlphaFloat  float64         `json:"alphaFloat"`
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

// parseAuditConfig reads the flags visible to the running command on top of
// the defaults.
func parseAuditConfig(c *cli.Context) *config.AuditConfig {
	cfg := config.NewDefaultAuditConfig()
	cfg.Debug = c.Bool("verbose")
	cfg.Persistence = config.PersistenceConfig{
		Type:           config.PersistenceType(c.String("persistence")),
		DataDir:        c.String("data-dir"),
		RedisAddress:   c.String("redis-address"),
		RedisPassword:  c.String("redis-password"),
		RedisDB:        c.Int("redis-db"),
		RedisKeyPrefix: c.String("redis-key-prefix"),
	}

	if c.IsSet("from-block") {
		cfg.FromBlock = c.Uint64("from-block")
	}
	if c.IsSet("to-block") {
		cfg.ToBlock = c.Uint64("to-block")
	}
	cfg.IncludeRemainder = c.Bool("include-remainder")
	if c.IsSet("rounds") {
		cfg.Rounds = c.Int("rounds")
	}
	if c.IsSet("fetch-timeout") {
		cfg.FetchTimeout = c.Duration("fetch-timeout")
	}
	if c.IsSet("fetch-retries") {
		cfg.FetchRetries = c.Int("fetch-retries")
	}
	if c.IsSet("retry-backoff") {
		cfg.RetryBackoff = c.Duration("retry-backoff")
	}
	if c.IsSet("rate-limit") {
		cfg.RateLimit = c.Float64("rate-limit")
	}
	if c.IsSet("concurrency") {
		cfg.Concurrency = c.Int("concurrency")
	}
	return cfg
}

// openSource returns the block source selected by --fixture or --rpc-url and
// a function releasing it.
func openSource(ctx context.Context, c *cli.Context, l *zap.Logger) (chaindata.Source, func(), error) {
	fixturePath, rpcURL := c.String("fixture"), c.String("rpc-url")
	switch {
	case fixturePath != "" && rpcURL != "":
		return nil, nil, fmt.Errorf("--fixture and --rpc-url are mutually exclusive")
	case fixturePath != "":
		fixture, err := chaindata.LoadFixture(fixturePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load fixture: %w", err)
		}
		source, err := fixture.Source()
		if err != nil {
			return nil, nil, fmt.Errorf("invalid fixture: %w", err)
		}
		return source, func() {}, nil
	case rpcURL != "":
		source, err := chaindata.DialRPCSource(ctx, rpcURL, l)
		if err != nil {
			return nil, nil, err
		}
		return source, source.Close, nil
	default:
		return nil, nil, fmt.Errorf("one of --fixture or --rpc-url is required")
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runCommit(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	cfg := parseAuditConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	source, release, err := openSource(ctx, c, l)
	if err != nil {
		return err
	}
	defer release()

	store, err := newStore(&cfg.Persistence, l)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	session, err := audit.NewAuditor(source, cfg, l).Commit(ctx, cfg.FromBlock, cfg.ToBlock)
	if err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	if err := store.SaveSession(session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return printJSON(session.Record())
}

func runAudit(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	cfg := parseAuditConfig(c)
	store, err := newStore(&cfg.Persistence, l)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	record, err := loadSession(store, c.String("session"))
	if err != nil {
		return err
	}
	cfg.FromBlock = record.FromBlock
	cfg.ToBlock = record.ToBlock
	cfg.IncludeRemainder = record.IncludeRemainder
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	source, release, err := openSource(ctx, c, l)
	if err != nil {
		return err
	}
	defer release()

	auditor := audit.NewAuditor(source, cfg, l)
	session, err := auditor.Restore(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}

	bundles, err := auditor.Challenge(ctx, session, cfg.Rounds)
	if err != nil {
		return fmt.Errorf("challenge failed: %w", err)
	}
	if len(bundles) > 0 {
		if err := audit.VerifyBundles(record, bundles); err != nil {
			return err
		}
	}
	if err := store.SaveBundles(session.ID, bundles); err != nil {
		return fmt.Errorf("failed to save bundles: %w", err)
	}

	alpha := challenge.ConfidenceBound(len(bundles))
	return printJSON(&auditReport{
		SessionID:   session.ID,
		FromBlock:   session.FromBlock,
		ToBlock:     session.ToBlock,
		TotalWeight: session.TotalWeight(),
		Rounds:      len(bundles),
		Alpha:       alpha,
		AlphaFloat:  alpha.Float(),
	})
}

func runSnapshot(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	ctx, cancel := signalContext(c)
	defer cancel()

	source, err := chaindata.DialRPCSource(ctx, c.String("rpc-url"), l)
	if err != nil {
		return err
	}
	defer source.Close()

	from, to := c.Uint64("from-block"), c.Uint64("to-block")
	fixture, err := source.Snapshot(ctx, from, to)
	if err != nil {
		return fmt.Errorf("snapshot failed: %w", err)
	}
	if err := fixture.Save(c.String("out")); err != nil {
		return fmt.Errorf("failed to write fixture: %w", err)
	}

	l.Sugar().Infow("Wrote fixture", "path", c.String("out"), "fromBlock", from, "toBlock", to)
	return nil
}

func runVerify(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	cfg := parseAuditConfig(c)
	if err := cfg.Persistence.Validate(field.NewPath("persistence")).ToAggregate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := newStore(&cfg.Persistence, l)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	record, err := loadSession(store, c.String("session"))
	if err != nil {
		return err
	}
	bundles, err := store.LoadBundles(record.ID)
	if err != nil {
		return fmt.Errorf("failed to load bundles: %w", err)
	}
	if len(bundles) == 0 {
		return fmt.Errorf("session %s has no stored bundles, run audit first", record.ID)
	}

	if err := audit.VerifyBundles(record, bundles); err != nil {
		return err
	}

	alpha := challenge.ConfidenceBound(len(bundles))
	l.Sugar().Infow("All bundles verified",
		"session", record.ID,
		"rounds", len(bundles),
		"alpha", alpha.Float(),
	)
	return nil
}

func runSessions(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	cfg := parseAuditConfig(c)
	if err := cfg.Persistence.Validate(field.NewPath("persistence")).ToAggregate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := newStore(&cfg.Persistence, l)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sessions, err := store.ListSessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	return printJSON(sessions)
}

func runDelete(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	cfg := parseAuditConfig(c)
	if err := cfg.Persistence.Validate(field.NewPath("persistence")).ToAggregate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := newStore(&cfg.Persistence, l)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return store.DeleteSession(c.String("session"))
}

func runConfidence(c *cli.Context) error {
	rounds := c.Int("rounds")
	if rounds < 0 || rounds > challenge.MaxRounds {
		return fmt.Errorf("rounds must be in [0, %d]", challenge.MaxRounds)
	}
	alpha := challenge.ConfidenceBound(rounds)
	fmt.Printf("rounds=%d alpha=%s (%.6f)\n", rounds, alpha, alpha.Float())
	return nil
}

func loadSession(store persistence.IAuditPersistence, id string) (*audit.Session, error) {
	record, err := store.LoadSession(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return record, nil
}
