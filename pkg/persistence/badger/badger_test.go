package badger

import (
	"testing"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Layr-Labs/gasaudit-go/pkg/logger"
	"github.com/Layr-Labs/gasaudit-go/pkg/persistence"
	"github.com/Layr-Labs/gasaudit-go/pkg/persistence/persistencetest"
)

var _ persistence.IAuditPersistence = (*BadgerPersistence)(nil)

func newTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)
	return l
}

func TestBadgerPersistence(t *testing.T) {
	persistencetest.Run(t, func(t *testing.T) persistence.IAuditPersistence {
		bp, err := NewBadgerPersistence(t.TempDir(), newTestLogger(t))
		require.NoError(t, err)
		return bp
	})
}

func TestBadgerPersistence_SurvivesRestart(t *testing.T) {
	tmpDir := t.TempDir()
	testLogger := newTestLogger(t)

	bp, err := NewBadgerPersistence(tmpDir, testLogger)
	require.NoError(t, err)

	session := persistencetest.NewTestSession(uuid.New().String(), 100, time.Unix(1_700_000_000, 0))
	require.NoError(t, bp.SaveSession(session))
	require.NoError(t, bp.SaveBundles(session.ID, persistencetest.NewTestBundles(session.ID, 3)))
	require.NoError(t, bp.Close())

	bp2, err := NewBadgerPersistence(tmpDir, testLogger)
	require.NoError(t, err)
	defer func() { _ = bp2.Close() }()

	loaded, err := bp2.LoadSession(session.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, session.BlockRoot, loaded.BlockRoot)
	assert.True(t, session.WeightRoot.Equal(loaded.WeightRoot))

	bundles, err := bp2.LoadBundles(session.ID)
	require.NoError(t, err)
	assert.Len(t, bundles, 3)
}

func TestBadgerPersistence_RejectsUnknownSchema(t *testing.T) {
	tmpDir := t.TempDir()

	opts := badgerdb.DefaultOptions(tmpDir)
	opts.Logger = nil
	db, err := badgerdb.Open(opts)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keySchemaVersion), []byte("v0"))
	}))
	require.NoError(t, db.Close())

	_, err = NewBadgerPersistence(tmpDir, newTestLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported schema version")
}

func TestBadgerPersistence_SkipsCorruptSessions(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	bp, err := NewBadgerPersistence(t.TempDir(), zap.New(core))
	require.NoError(t, err)
	defer func() { _ = bp.Close() }()

	session := persistencetest.NewTestSession(uuid.New().String(), 100, time.Unix(1_700_000_000, 0))
	require.NoError(t, bp.SaveSession(session))
	require.NoError(t, bp.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(sessionKey("broken"), []byte("{not json"))
	}))

	sessions, err := bp.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, session.ID, sessions[0].ID)
	assert.Equal(t, 1, logs.FilterMessage("Failed to unmarshal session, skipping").Len())
}
