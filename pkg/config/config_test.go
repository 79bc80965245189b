package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *AuditConfig {
	cfg := NewDefaultAuditConfig()
	cfg.FromBlock = 100
	cfg.ToBlock = 110
	return cfg
}

func TestAuditConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *AuditConfig)
		wantErr string
	}{
		{"valid", func(c *AuditConfig) {}, ""},
		{"empty range", func(c *AuditConfig) { c.ToBlock = c.FromBlock }, "toBlock"},
		{"negative rounds", func(c *AuditConfig) { c.Rounds = -1 }, "rounds"},
		{"too many rounds", func(c *AuditConfig) { c.Rounds = MaxRounds + 1 }, "rounds"},
		{"zero timeout", func(c *AuditConfig) { c.FetchTimeout = 0 }, "fetchTimeout"},
		{"no attempts", func(c *AuditConfig) { c.FetchRetries = 0 }, "fetchRetries"},
		{"negative rate", func(c *AuditConfig) { c.RateLimit = -1 }, "rateLimit"},
		{"zero concurrency", func(c *AuditConfig) { c.Concurrency = 0 }, "concurrency"},
		{"badger without dir", func(c *AuditConfig) { c.Persistence.Type = PersistenceTypeBadger }, "persistence.dataDir"},
		{"redis without address", func(c *AuditConfig) { c.Persistence.Type = PersistenceTypeRedis }, "persistence.redisAddress"},
		{"unknown store", func(c *AuditConfig) { c.Persistence.Type = "sqlite" }, "persistence.type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAuditConfigValidateAggregatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Rounds = -1
	cfg.Concurrency = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rounds")
	assert.Contains(t, err.Error(), "concurrency")
}
