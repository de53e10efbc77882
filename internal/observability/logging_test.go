package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	t.Run("default config", func(t *testing.T) {
		t.Parallel()

		logger, err := NewLogger(DefaultLogConfig())
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("console format", func(t *testing.T) {
		t.Parallel()

		logger, err := NewLogger(LogConfig{Level: "debug", Format: "console", Output: "stderr"})
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("invalid level returns error", func(t *testing.T) {
		t.Parallel()

		logger, err := NewLogger(LogConfig{Level: "loud"})
		assert.Error(t, err)
		assert.Nil(t, logger)
	})
}

func TestNopLogger(t *testing.T) {
	t.Parallel()

	logger := NopLogger()
	require.NotNil(t, logger)

	// Must not panic.
	logger.Debug("debug", String("k", "v"))
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")
	assert.NotNil(t, logger.With(Int("n", 1)))
	assert.NoError(t, logger.Sync())
}

func TestRequestIDContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = ContextWithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))

	logger := NopLogger().WithContext(ctx)
	assert.NotNil(t, logger)
}
