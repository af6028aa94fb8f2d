package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alimda/cryptofolio/internal/domain"
)

func openTestGateway(t *testing.T) *Gateway {
	t.Helper()
	gateway, err := Open(filepath.Join(t.TempDir(), "cryptofolio.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gateway.Close() })
	return gateway
}

type testDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestLoad_MissingKey(t *testing.T) {
	ctx := context.Background()
	gateway := openTestGateway(t)

	var out testDoc
	found, err := gateway.Load(ctx, "never_written", &out)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	gateway := openTestGateway(t)

	in := testDoc{Name: "bitcoin", Count: 3}
	require.NoError(t, gateway.Save(ctx, "doc", in))

	var out testDoc
	found, err := gateway.Load(ctx, "doc", &out)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestSave_Replaces(t *testing.T) {
	ctx := context.Background()
	gateway := openTestGateway(t)

	require.NoError(t, gateway.Save(ctx, "doc", testDoc{Name: "first"}))
	require.NoError(t, gateway.Save(ctx, "doc", testDoc{Name: "second", Count: 2}))

	var out testDoc
	found, err := gateway.Load(ctx, "doc", &out)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "second", out.Name)
}

func TestLoad_IgnoresUnknownFields(t *testing.T) {
	ctx := context.Background()
	gateway := openTestGateway(t)

	// A newer writer added fields this reader does not know about
	require.NoError(t, gateway.Save(ctx, "doc", map[string]any{
		"name":       "bitcoin",
		"count":      7,
		"futureFlag": true,
	}))

	var out testDoc
	found, err := gateway.Load(ctx, "doc", &out)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, testDoc{Name: "bitcoin", Count: 7}, out)
}

func TestLoad_MalformedValue(t *testing.T) {
	ctx := context.Background()
	gateway := openTestGateway(t)

	// Corrupt the stored document directly
	_, err := gateway.db.ExecContext(ctx,
		`INSERT INTO kv_store (key, value, updated_at) VALUES ('doc', '{not json', '')`)
	require.NoError(t, err)

	var out testDoc
	found, err := gateway.Load(ctx, "doc", &out)
	assert.False(t, found)
	assert.ErrorIs(t, err, domain.ErrMalformedState)
}

func TestIndependentKeys(t *testing.T) {
	ctx := context.Background()
	gateway := openTestGateway(t)

	require.NoError(t, gateway.Save(ctx, domain.KeyHoldings, map[string]int{"bitcoin": 1}))

	// The other keys stay absent
	var out any
	found, err := gateway.Load(ctx, domain.KeyTransactions, &out)
	assert.NoError(t, err)
	assert.False(t, found)
	found, err = gateway.Load(ctx, domain.KeyAlerts, &out)
	assert.NoError(t, err)
	assert.False(t, found)
}
