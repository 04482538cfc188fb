package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/config"
	"backtest-lab/internal/progress"
	"backtest-lab/internal/storage/csvfile"
	"backtest-lab/internal/storage/memory"
)

func TestOpenBarStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.Defaults().Storage

	store, release, err := OpenBarStore(ctx, cfg)
	require.NoError(t, err)
	defer release()
	assert.IsType(t, &memory.PriceBarStore{}, store)

	cfg.BarBackend = "csv"
	cfg.CSVDir = t.TempDir()
	store, release, err = OpenBarStore(ctx, cfg)
	require.NoError(t, err)
	defer release()
	assert.IsType(t, &csvfile.BarStore{}, store)

	cfg.BarBackend = "parquet"
	_, _, err = OpenBarStore(ctx, cfg)
	assert.Error(t, err)
}

func TestOpenResultStore(t *testing.T) {
	store, release, err := OpenResultStore(context.Background(), config.Defaults().Storage)
	require.NoError(t, err)
	defer release()
	assert.IsType(t, &memory.ResultStore{}, store)
}

func TestOpenProgressBus(t *testing.T) {
	bus, release, err := OpenProgressBus(context.Background(), config.Defaults().Progress)
	require.NoError(t, err)
	defer release()
	assert.IsType(t, &progress.Broadcaster{}, bus)
}

func TestOpenArchiver_Disabled(t *testing.T) {
	a, err := OpenArchiver(context.Background(), config.Defaults().Archive)
	require.NoError(t, err)
	assert.Nil(t, a)
}
