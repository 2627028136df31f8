package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hostelattendance/internal/config"
)

func TestOpenMemory(t *testing.T) {
	cfg := config.App{StoreBackend: BackendMemory, QueueBackend: BackendMemory}
	b, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	assert.NotNil(t, b.People)
	assert.NotNil(t, b.Ledger)
	assert.NotNil(t, b.Audit)
	assert.True(t, b.LocalQueue)
	assert.Empty(t, b.Health())
}

func TestOpenRejectsUnknownBackends(t *testing.T) {
	_, err := Open(context.Background(), config.App{StoreBackend: "mongo"}, zap.NewNop())
	assert.ErrorContains(t, err, "unknown store backend")

	_, err = Open(context.Background(), config.App{StoreBackend: BackendMemory, QueueBackend: "kafka"}, zap.NewNop())
	assert.ErrorContains(t, err, "unknown queue backend")
}
