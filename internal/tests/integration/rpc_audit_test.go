package integration

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/gasaudit-go/internal/tests"
	"github.com/Layr-Labs/gasaudit-go/pkg/audit"
	"github.com/Layr-Labs/gasaudit-go/pkg/chaindata"
	"github.com/Layr-Labs/gasaudit-go/pkg/config"
	"github.com/Layr-Labs/gasaudit-go/pkg/logger"
)

// sendTransfers sends count value transfers from the dev account. Anvil
// automines, so each lands in its own block.
func sendTransfers(t *testing.T, ctx context.Context, client *ethclient.Client, count int) uint64 {
	t.Helper()

	key, err := crypto.HexToECDSA(tests.AnvilDevKey)
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)

	chainID, err := client.ChainID(ctx)
	require.NoError(t, err)
	signer := ethtypes.LatestSignerForChainID(chainID)

	nonce, err := client.PendingNonceAt(ctx, from)
	require.NoError(t, err)

	var last uint64
	for i := 0; i < count; i++ {
		tx := ethtypes.MustSignNewTx(key, signer, &ethtypes.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce + uint64(i),
			GasTipCap: big.NewInt(1_000_000_000),
			GasFeeCap: big.NewInt(100_000_000_000),
			Gas:       21000,
			To:        &common.Address{0xaa, byte(i)},
			Value:     big.NewInt(int64(1000 + i)),
		})
		require.NoError(t, client.SendTransaction(ctx, tx))

		var receipt *ethtypes.Receipt
		require.Eventually(t, func() bool {
			r, err := client.TransactionReceipt(ctx, tx.Hash())
			if err != nil {
				return false
			}
			receipt = r
			return true
		}, 10*time.Second, 100*time.Millisecond)
		require.Equal(t, ethtypes.ReceiptStatusSuccessful, receipt.Status)
		last = receipt.BlockNumber.Uint64()
	}
	return last
}

func Test_RPCAudit(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping anvil integration test in short mode")
	}
	if !tests.AnvilAvailable() {
		t.Skip("anvil not found on PATH")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	cmd, rpcUrl, err := tests.StartAnvil(ctx, &tests.AnvilConfig{PortNumber: "8547", ChainId: "31337"})
	require.NoError(t, err)
	defer func() { _ = tests.KillAnvil(cmd) }()

	client, err := ethclient.DialContext(ctx, rpcUrl)
	require.NoError(t, err)
	defer client.Close()

	last := sendTransfers(t, ctx, client, 4)

	source, err := chaindata.DialRPCSource(ctx, rpcUrl, l)
	require.NoError(t, err)
	defer source.Close()

	cfg := config.NewDefaultAuditConfig()
	cfg.IncludeRemainder = true
	cfg.RateLimit = 0
	auditor := audit.NewAuditor(source, cfg, l)

	session, err := auditor.Commit(ctx, 1, last+1)
	require.NoError(t, err)
	assert.Equal(t, uint64(21000*4), session.TotalWeight()-remainders(t, ctx, source, 1, last+1))

	bundles, err := auditor.Challenge(ctx, session, 16)
	require.NoError(t, err)
	require.Len(t, bundles, 16)
	for _, b := range bundles {
		require.NoError(t, audit.VerifyBundle(session.Record(), b))
	}

	// A snapshot replays to the same commitment.
	fixture, err := source.Snapshot(ctx, 1, last+1)
	require.NoError(t, err)
	replay, err := fixture.Source()
	require.NoError(t, err)
	restored, err := audit.NewAuditor(replay, cfg, l).Restore(ctx, session.Record())
	require.NoError(t, err)
	assert.Equal(t, session.BlockRoot, restored.BlockRoot)
}

func remainders(t *testing.T, ctx context.Context, source chaindata.Source, from, to uint64) uint64 {
	t.Helper()
	var total uint64
	for n := from; n < to; n++ {
		r, err := source.GetBlockRemainder(ctx, n)
		require.NoError(t, err)
		total += r
	}
	return total
}
