package checkpoint_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vintoniuk/anadeabot/pkg/convgraph/checkpoint"
)

func newMockPostgres(t *testing.T) (*checkpoint.PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return checkpoint.NewPostgresStore(db), mock
}

// TestPostgresStore_Load verifies the envelope is decoded from the data column.
func TestPostgresStore_Load(t *testing.T) {
	store, mock := newMockPostgres(t)

	envelope, err := checkpoint.New("conv-1", 3, []byte(`{"confirmed":true}`)).Marshal()
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM checkpoints WHERE conversation_id = $1`)).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(envelope))

	cp, err := store.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 3, cp.Turn)
	assert.JSONEq(t, `{"confirmed":true}`, string(cp.State))
}

// TestPostgresStore_LoadNotFound verifies an empty result maps to ErrNotFound.
func TestPostgresStore_LoadNotFound(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM checkpoints`)).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	_, err := store.Load(context.Background(), "conv-1")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

// TestPostgresStore_SaveFirstTurn verifies the first turn inserts.
func TestPostgresStore_SaveFirstTurn(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO checkpoints`)).
		WithArgs("conv-1", 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), checkpoint.New("conv-1", 1, []byte(`{}`))))
}

// TestPostgresStore_SaveNextTurn verifies later turns compare the previous turn.
func TestPostgresStore_SaveNextTurn(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE checkpoints SET turn = $1`)).
		WithArgs(5, sqlmock.AnyArg(), sqlmock.AnyArg(), "conv-1", 4).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), checkpoint.New("conv-1", 5, []byte(`{}`))))
}

// TestPostgresStore_SaveConflict verifies zero affected rows is a conflict.
func TestPostgresStore_SaveConflict(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE checkpoints`)).
		WithArgs(2, sqlmock.AnyArg(), sqlmock.AnyArg(), "conv-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Save(context.Background(), checkpoint.New("conv-1", 2, []byte(`{}`)))
	assert.ErrorIs(t, err, checkpoint.ErrConflict)
}

// TestPostgresStore_SaveError verifies driver errors are wrapped.
func TestPostgresStore_SaveError(t *testing.T) {
	store, mock := newMockPostgres(t)
	boom := errors.New("connection reset")

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO checkpoints`)).WillReturnError(boom)

	err := store.Save(context.Background(), checkpoint.New("conv-1", 1, []byte(`{}`)))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, checkpoint.ErrConflict)
}

// TestPostgresStore_DeleteAndList verifies deletion and metadata listing.
func TestPostgresStore_DeleteAndList(t *testing.T) {
	store, mock := newMockPostgres(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM checkpoints WHERE conversation_id = $1`)).
		WithArgs("conv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT conversation_id, turn, updated_at`)).
		WillReturnRows(sqlmock.NewRows([]string{"conversation_id", "turn", "updated_at", "size"}).
			AddRow("conv-2", 4, now, 120))

	ctx := context.Background()
	require.NoError(t, store.Delete(ctx, "conv-1"))

	infos, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, checkpoint.Info{ConversationID: "conv-2", Turn: 4, Timestamp: now, Size: 120}, infos[0])
}

// TestPostgresStore_CreateSchema verifies the standalone schema statement.
func TestPostgresStore_CreateSchema(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS checkpoints`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.CreateSchema(context.Background()))
}

// TestPostgresStore_CloseLeavesDB verifies a borrowed handle is not closed.
func TestPostgresStore_CloseLeavesDB(t *testing.T) {
	store, _ := newMockPostgres(t)
	require.NoError(t, store.Close())

	_, err := store.Load(context.Background(), "conv-1")
	assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
}
