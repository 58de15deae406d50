package owner

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copro-tools/coproledger/pkg/models/store"
	"github.com/copro-tools/coproledger/pkg/store/sqlite"
)

type fixture struct {
	db    *sql.DB
	store Store
}

func setupFixture(t *testing.T) *fixture {
	db, err := sqlite.NewDB(sqlite.Settings{DbPath: ":memory:"})
	require.NoError(t, err)

	st, err := NewStore(db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return &fixture{db: db, store: st}
}

func TestStore_ReplaceAll(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)

	first := []store.OwnerRecord{
		{OwnerCode: "101", OwnerName: "DUPONT", LotNumber: "12", ApartmentType: "3p"},
		{OwnerCode: "102", OwnerName: "MARTIN", LotNumber: "7", ApartmentType: "2p"},
	}
	n, err := f.store.ReplaceAll(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	t.Run("second replace drops the first set", func(t *testing.T) {
		second := []store.OwnerRecord{
			{OwnerCode: "103", OwnerName: "BERNARD", ApartmentType: "na"},
		}
		n, err := f.store.ReplaceAll(ctx, second)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		all, err := f.store.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "103", all[0].OwnerCode)
	})
}

func TestStore_GetByCode(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)

	_, err := f.store.ReplaceAll(ctx, []store.OwnerRecord{
		{OwnerCode: "101", OwnerName: "DUPONT", LotNumber: "12", ApartmentType: "3p"},
	})
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		rec, err := f.store.GetByCode(ctx, "101")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "DUPONT", rec.OwnerName)
	})

	t.Run("not found", func(t *testing.T) {
		rec, err := f.store.GetByCode(ctx, "404")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})
}

func TestStore_ApartmentType(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)

	_, err := f.store.ReplaceAll(ctx, []store.OwnerRecord{
		{OwnerCode: "101", OwnerName: "DUPONT", ApartmentType: "4p"},
	})
	require.NoError(t, err)

	t.Run("known owner", func(t *testing.T) {
		apt, err := f.store.ApartmentType(ctx, "101")
		require.NoError(t, err)
		assert.Equal(t, "4p", apt)
	})

	t.Run("unknown owner falls back to na", func(t *testing.T) {
		apt, err := f.store.ApartmentType(ctx, "404")
		require.NoError(t, err)
		assert.Equal(t, "na", apt)
	})
}
