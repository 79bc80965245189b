package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Layr-Labs/gasaudit-go/pkg/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "gas-audit",
		Usage: "Probabilistic gas audit over a block range",
		Description: `Commits to the block hashes and per-transaction gas of a block range, then
answers randomly sampled challenges with Merkle and trie proofs.

Each challenge samples gas proportionally to weight, so a range whose claimed
total overstates the real gas by a fraction f survives i rounds with
probability (1-f)^i.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "persistence",
				Usage:   "Session store: memory, badger or redis",
				Value:   config.PersistenceTypeBadger.String(),
				EnvVars: []string{config.EnvGasAuditPersistence},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Badger data directory",
				Value:   "./gasaudit-data",
				EnvVars: []string{config.EnvGasAuditDataDir},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis server address (host:port)",
				EnvVars: []string{config.EnvGasAuditRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvGasAuditRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				EnvVars: []string{config.EnvGasAuditRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Prefix for every Redis key",
				Value:   config.DefaultKeyPrefix,
				EnvVars: []string{config.EnvGasAuditRedisKeyPrefix},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvGasAuditVerbose},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "commit",
				Usage:  "Commit to a block range and store the session",
				Flags:  append(sourceFlags(), rangeFlags()...),
				Action: runCommit,
			},
			{
				Name:  "audit",
				Usage: "Challenge a stored session and store the verified bundles",
				Flags: append(sourceFlags(),
					&cli.StringFlag{
						Name:     "session",
						Usage:    "Session ID returned by commit",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "rounds",
						Usage:   "Number of challenge rounds",
						Value:   config.DefaultRounds,
						EnvVars: []string{config.EnvGasAuditRounds},
					},
				),
				Action: runAudit,
			},
			{
				Name:  "verify",
				Usage: "Verify the stored bundles of a session without access to the chain",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "session",
						Usage:    "Session ID",
						Required: true,
					},
				},
				Action: runVerify,
			},
			{
				Name:  "snapshot",
				Usage: "Write a block range fetched over RPC to a fixture file",
				Flags: append(rangeFlags()[:2],
					&cli.StringFlag{
						Name:     "rpc-url",
						Aliases:  []string{"rpc"},
						Usage:    "Ethereum JSON-RPC endpoint",
						EnvVars:  []string{config.EnvGasAuditRPCURL},
						Required: true,
					},
					&cli.StringFlag{
						Name:     "out",
						Usage:    "Fixture file to write",
						Required: true,
					},
				),
				Action: runSnapshot,
			},
			{
				Name:   "sessions",
				Usage:  "List stored sessions",
				Action: runSessions,
			},
			{
				Name:  "delete",
				Usage: "Delete a stored session and its bundles",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "session",
						Usage:    "Session ID",
						Required: true,
					},
				},
				Action: runDelete,
			},
			{
				Name:  "confidence",
				Usage: "Print the largest overstatement fraction that survives the given rounds with probability below 2^-80",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "rounds",
						Usage:    "Number of challenge rounds",
						Required: true,
					},
				},
				Action: runConfidence,
			},
		},
	}
}

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "fixture",
			Usage:   "JSON block fixture to read blocks and receipts from",
			EnvVars: []string{config.EnvGasAuditFixture},
		},
		&cli.StringFlag{
			Name:    "rpc-url",
			Aliases: []string{"rpc"},
			Usage:   "Ethereum JSON-RPC endpoint to read blocks and receipts from",
			EnvVars: []string{config.EnvGasAuditRPCURL},
		},
		&cli.DurationFlag{
			Name:    "fetch-timeout",
			Usage:   "Timeout for a single source call",
			Value:   config.DefaultFetchTimeout,
			EnvVars: []string{config.EnvGasAuditFetchTimeout},
		},
		&cli.IntFlag{
			Name:    "fetch-retries",
			Usage:   "Attempts per source call",
			Value:   config.DefaultFetchRetries,
			EnvVars: []string{config.EnvGasAuditFetchRetries},
		},
		&cli.DurationFlag{
			Name:    "retry-backoff",
			Usage:   "Base delay between attempts, multiplied by the attempt number",
			Value:   config.DefaultRetryBackoff,
			EnvVars: []string{config.EnvGasAuditRetryBackoff},
		},
		&cli.Float64Flag{
			Name:    "rate-limit",
			Usage:   "Source calls per second, 0 disables limiting",
			Value:   config.DefaultRateLimit,
			EnvVars: []string{config.EnvGasAuditRateLimit},
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Usage:   "Concurrent source calls",
			Value:   config.DefaultConcurrency,
			EnvVars: []string{config.EnvGasAuditConcurrency},
		},
	}
}

func rangeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Uint64Flag{
			Name:     "from-block",
			Aliases:  []string{"from"},
			Usage:    "First block of the range",
			EnvVars:  []string{config.EnvGasAuditFromBlock},
			Required: true,
		},
		&cli.Uint64Flag{
			Name:     "to-block",
			Aliases:  []string{"to"},
			Usage:    "Block after the last block of the range",
			EnvVars:  []string{config.EnvGasAuditToBlock},
			Required: true,
		},
		&cli.BoolFlag{
			Name:    "include-remainder",
			Usage:   "Add a leaf per block weighted by its unused gas",
			EnvVars: []string{config.EnvGasAuditIncludeRemainder},
		},
	}
}
