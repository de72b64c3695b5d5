package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := defaultConfig()
	require.EqualValues(t, 10, cfg.NumParallelWorkers)
	require.Equal(t, WorkerWaitTime, cfg.WorkerWaitTime)
	require.EqualValues(t, 256, cfg.NotificationBuffer)
	require.EqualValues(t, 64, cfg.ErrorsBufferSize)
	require.NotNil(t, cfg.Metrics)
}

func TestValidateConfig_RejectsZeroParallelism(t *testing.T) {
	cfg := defaultConfig()
	cfg.NumParallelWorkers = 0
	require.ErrorIs(t, validateConfig(&cfg), ErrInvalidConfig)
}

func TestBuildConfig_AppliesOptionsOverDefaults(t *testing.T) {
	cfg, err := buildConfig(WithParallelism(3))
	require.NoError(t, err)
	require.EqualValues(t, 3, cfg.NumParallelWorkers)
}

func TestBuildConfig_PanicsOnNilOption(t *testing.T) {
	require.Panics(t, func() { _, _ = buildConfig(nil) })
}

func TestBuildConfig_PropagatesValidationError(t *testing.T) {
	_, err := buildConfig(WithParallelism(0))
	require.Error(t, err)
}
