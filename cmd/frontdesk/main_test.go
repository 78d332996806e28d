package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/telekom/frontdesk/pkg/config"
	"github.com/telekom/frontdesk/pkg/store/memory"
	"github.com/telekom/frontdesk/pkg/store/sqlite"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	st, err := openStore(ctx, config.Store{Type: config.StoreMemory})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, st)
	require.NoError(t, st.Close())

	st, err = openStore(ctx, config.Store{
		Type:   config.StoreSQLite,
		SQLite: config.SQLite{Path: filepath.Join(t.TempDir(), "frontdesk.db")},
	})
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, st)
	require.NoError(t, st.Ping(ctx))
	require.NoError(t, st.Close())
}

func TestOpenStoreRedisUnreachable(t *testing.T) {
	_, err := openStore(context.Background(), config.Store{
		Type:  config.StoreRedis,
		Redis: config.Redis{Addr: "127.0.0.1:1"},
	})
	require.Error(t, err)
}

func TestResourcesReleaseInReverseOrder(t *testing.T) {
	res := &resources{log: zaptest.NewLogger(t).Sugar()}
	var order []string
	track := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return err
		}
	}
	res.add("store", track("store", nil))
	res.add("audit sinks", track("audit sinks", errors.New("flush failed")))
	res.add("mail queue", track("mail queue", nil))

	errs := res.release(context.Background())
	assert.Equal(t, []string{"mail queue", "audit sinks", "store"}, order)
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "audit sinks: flush failed")

	// a second release is a no-op
	assert.Empty(t, res.release(context.Background()))
	assert.Len(t, order, 3)
}
