package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bentacars/salesbot/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testVehicles() []model.Vehicle {
	return []model.Vehicle{
		{SKU: "BC-001", Year: 2019, Brand: "Toyota", Model: "Vios", BodyType: "sedan", Transmission: "automatic", Mileage: 45000, SRP: 550000, AllIn: 120000, City: "QC", Images: []string{"a", "b"}},
		{SKU: "BC-002", Year: 2020, Brand: "Honda", Model: "City", BodyType: "sedan", Transmission: "manual", Mileage: 30000, SRP: 620000, AllIn: 150000, City: "Makati"},
	}
}

func TestSQLiteVehicleSnapshot(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	n, err := s.ReplaceVehicles(ctx, testVehicles())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.ListVehicles(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Catalog order preserved.
	assert.Equal(t, "BC-001", got[0].SKU)
	assert.Equal(t, []string{"a", "b"}, got[0].Images)
	assert.Equal(t, 550000.0, got[0].SRP)

	count, err := s.CountVehicles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSQLiteReplaceDropsOldSnapshot(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.ReplaceVehicles(ctx, testVehicles())
	require.NoError(t, err)

	_, err = s.ReplaceVehicles(ctx, []model.Vehicle{
		{SKU: "BC-009", Year: 2021, Brand: "Ford", Model: "Ranger", BodyType: "pickup", Transmission: "automatic"},
	})
	require.NoError(t, err)

	got, err := s.ListVehicles(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "BC-009", got[0].SKU)
}

func TestSQLiteUpsertAppendsAndUpdates(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.ReplaceVehicles(ctx, testVehicles())
	require.NoError(t, err)

	updated := testVehicles()[0]
	updated.SRP = 500000
	_, err = s.UpsertVehicles(ctx, []model.Vehicle{
		updated,
		{SKU: "BC-003", Year: 2018, Brand: "Mitsubishi", Model: "Xpander", BodyType: "mpv", Transmission: "automatic"},
	})
	require.NoError(t, err)

	got, err := s.ListVehicles(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "BC-003", got[2].SKU)

	for _, v := range got {
		if v.SKU == "BC-001" {
			assert.Equal(t, 500000.0, v.SRP)
		}
	}
}

func TestSQLiteConversationLog(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "psid-123")
	require.NoError(t, err)
	require.NotEmpty(t, conv.ID)

	turns := []model.DialogueTurn{
		{Role: model.RoleUser, Text: "sedan po"},
		{Role: model.RoleAssistant, Text: "Saan po kayo nakatira?"},
		{Role: model.RoleUser, Text: "QC"},
	}
	for _, turn := range turns {
		require.NoError(t, s.AppendTurn(ctx, conv.ID, turn))
	}

	got, err := s.GetTurns(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, turns, got)
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := Open(context.Background(), "oracle", "dsn", nil)
	require.Error(t, err)
}
