package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/tramite-watcher/internal/models"
)

// MockQuerier is a mock for the pool
type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	mockArgs := m.Called(ctx, sql, args)
	return pgconn.NewCommandTag(mockArgs.String(0)), mockArgs.Error(1)
}

func (m *MockQuerier) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	mockArgs := m.Called(ctx, sql, args)
	return mockArgs.Get(0).(pgx.Row)
}

type stubRow struct {
	value string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.value
	return nil
}

func TestStateStore_Load(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		row       stubRow
		want      string
		wantFound bool
		wantErr   bool
	}{
		{name: "no row", row: stubRow{err: pgx.ErrNoRows}},
		{name: "stored status", row: stubRow{value: " Inicio (id=1)\n"}, want: "Inicio (id=1)", wantFound: true},
		{name: "blank status", row: stubRow{value: "   "}},
		{name: "query failure", row: stubRow{err: errors.New("connection reset")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(MockQuerier)
			db.On("QueryRow", ctx, selectState, []interface{}{"00123456789"}).Return(tt.row)

			status, found, err := NewStateStore(db, "00123456789").Load(ctx)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, models.ErrPersistence))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestStateStore_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts trimmed status", func(t *testing.T) {
		db := new(MockQuerier)
		db.On("Exec", ctx, upsertState, []interface{}{"00123456789", "Verificación (id=2)"}).Return("INSERT 0 1", nil)

		err := NewStateStore(db, "00123456789").Save(ctx, "Verificación (id=2) ")
		require.NoError(t, err)
		db.AssertExpectations(t)
	})

	t.Run("exec failure", func(t *testing.T) {
		db := new(MockQuerier)
		db.On("Exec", ctx, upsertState, mock.Anything).Return("", errors.New("read-only transaction"))

		err := NewStateStore(db, "00123456789").Save(ctx, "Inicio")
		assert.True(t, errors.Is(err, models.ErrPersistence))
	})
}

func TestStateStore_EnsureSchema(t *testing.T) {
	ctx := context.Background()
	db := new(MockQuerier)
	db.On("Exec", ctx, createStateTable, []interface{}(nil)).Return("CREATE TABLE", nil)

	require.NoError(t, NewStateStore(db, "x").EnsureSchema(ctx))
	db.AssertExpectations(t)
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "u", Password: "p", Database: "tramite_watcher"}
	assert.Equal(t, "postgres://u:p@db:5432/tramite_watcher?sslmode=disable", cfg.DSN())

	cfg.SSLMode = "require"
	assert.Equal(t, "postgres://u:p@db:5432/tramite_watcher?sslmode=require", cfg.DSN())
}
