package config

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/Layr-Labs/gasaudit-go/pkg/challenge"
)

// Environment variable names for gas audit configuration
const (
	EnvGasAuditFixture          = "GASAUDIT_FIXTURE"
	EnvGasAuditRPCURL           = "GASAUDIT_RPC_URL"
	EnvGasAuditFromBlock        = "GASAUDIT_FROM_BLOCK"
	EnvGasAuditToBlock          = "GASAUDIT_TO_BLOCK"
	EnvGasAuditRounds           = "GASAUDIT_ROUNDS"
	EnvGasAuditIncludeRemainder = "GASAUDIT_INCLUDE_REMAINDER"
	EnvGasAuditFetchTimeout     = "GASAUDIT_FETCH_TIMEOUT"
	EnvGasAuditFetchRetries     = "GASAUDIT_FETCH_RETRIES"
	EnvGasAuditRetryBackoff     = "GASAUDIT_RETRY_BACKOFF"
	EnvGasAuditRateLimit        = "GASAUDIT_RATE_LIMIT"
	EnvGasAuditConcurrency      = "GASAUDIT_CONCURRENCY"
	EnvGasAuditPersistence      = "GASAUDIT_PERSISTENCE"
	EnvGasAuditDataDir          = "GASAUDIT_DATA_DIR"
	EnvGasAuditRedisAddress     = "GASAUDIT_REDIS_ADDRESS"
	EnvGasAuditRedisPassword    = "GASAUDIT_REDIS_PASSWORD"
	EnvGasAuditRedisDB          = "GASAUDIT_REDIS_DB"
	EnvGasAuditRedisKeyPrefix   = "GASAUDIT_REDIS_KEY_PREFIX"
	EnvGasAuditVerbose          = "GASAUDIT_VERBOSE"
)

// Defaults used when a flag is not set
const (
	DefaultRounds       = 64
	MaxRounds           = challenge.MaxRounds
	DefaultFetchTimeout = 10 * time.Second
	DefaultFetchRetries = 3
	DefaultRetryBackoff = 500 * time.Millisecond
	DefaultRateLimit    = 20.0
	DefaultConcurrency  = 8
	DefaultKeyPrefix    = "gasaudit:"
)

type PersistenceType string

func (p PersistenceType) String() string {
	return string(p)
}

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

// PersistenceConfig selects and configures the session store
type PersistenceConfig struct {
	Type           PersistenceType `json:"type"`
	DataDir        string          `json:"data_dir"`
	RedisAddress   string          `json:"redis_address"`
	RedisPassword  string          `json:"-"`
	RedisDB        int             `json:"redis_db"`
	RedisKeyPrefix string          `json:"redis_key_prefix"`
}

func (pc *PersistenceConfig) Validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	switch pc.Type {
	case PersistenceTypeMemory:
	case PersistenceTypeBadger:
		if pc.DataDir == "" {
			allErrors = append(allErrors, field.Required(path.Child("dataDir"), "dataDir is required for badger persistence"))
		}
	case PersistenceTypeRedis:
		if pc.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(path.Child("redisAddress"), "redisAddress is required for redis persistence"))
		}
		if pc.RedisDB < 0 {
			allErrors = append(allErrors, field.Invalid(path.Child("redisDB"), pc.RedisDB, "must not be negative"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), pc.Type,
			[]string{PersistenceTypeMemory.String(), PersistenceTypeBadger.String(), PersistenceTypeRedis.String()}))
	}
	return allErrors
}

// AuditConfig represents the complete configuration for an audit run
type AuditConfig struct {
	// Block range [FromBlock, ToBlock)
	FromBlock uint64 `json:"from_block"`
	ToBlock   uint64 `json:"to_block"`

	// Rounds is the number of challenges derived per session
	Rounds int `json:"rounds"`

	// IncludeRemainder appends a leaf per block weighted by its unused gas
	IncludeRemainder bool `json:"include_remainder"`

	// Source access
	FetchTimeout time.Duration `json:"fetch_timeout"`
	FetchRetries int           `json:"fetch_retries"`
	RetryBackoff time.Duration `json:"retry_backoff"`
	RateLimit    float64       `json:"rate_limit"` // requests per second, 0 disables limiting
	Concurrency  int           `json:"concurrency"`

	Persistence PersistenceConfig `json:"persistence"`

	Debug bool `json:"debug"`
}

// NewDefaultAuditConfig returns a config with every tunable set to its default
func NewDefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		Rounds:       DefaultRounds,
		FetchTimeout: DefaultFetchTimeout,
		FetchRetries: DefaultFetchRetries,
		RetryBackoff: DefaultRetryBackoff,
		RateLimit:    DefaultRateLimit,
		Concurrency:  DefaultConcurrency,
		Persistence: PersistenceConfig{
			Type:           PersistenceTypeMemory,
			RedisKeyPrefix: DefaultKeyPrefix,
		},
	}
}

// Validate validates the audit configuration
func (c *AuditConfig) Validate() error {
	var allErrors field.ErrorList
	if c.ToBlock <= c.FromBlock {
		allErrors = append(allErrors, field.Invalid(field.NewPath("toBlock"), c.ToBlock,
			fmt.Sprintf("must be greater than fromBlock (%d)", c.FromBlock)))
	}
	if c.Rounds < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rounds"), c.Rounds, "must not be negative"))
	} else if c.Rounds > MaxRounds {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rounds"), c.Rounds, fmt.Sprintf("must not exceed %d", MaxRounds)))
	}
	if c.FetchTimeout <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("fetchTimeout"), c.FetchTimeout.String(), "must be positive"))
	}
	if c.FetchRetries < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("fetchRetries"), c.FetchRetries, "at least one attempt is required"))
	}
	if c.RetryBackoff < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("retryBackoff"), c.RetryBackoff.String(), "must not be negative"))
	}
	if c.RateLimit < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateLimit"), c.RateLimit, "must not be negative"))
	}
	if c.Concurrency < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("concurrency"), c.Concurrency, "must be at least 1"))
	}
	allErrors = append(allErrors, c.Persistence.Validate(field.NewPath("persistence"))...)

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}
