package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/eventsphere/internal/model"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTicketRepo(t *testing.T) (*TicketRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewTicketRepo(db)
	repo.now = func() time.Time { return fixedNow }
	return repo, mock
}

func ticketRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "event_id", "user_id", "status", "created_at", "updated_at"})
}

func TestTicketRepo_Create_AssignsIDAndTimestamps(t *testing.T) {
	repo, mock := newTicketRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tickets")).
		WithArgs(sqlmock.AnyArg(), "evt-1", "usr-1", "PENDING", fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tk := &model.Ticket{EventID: "evt-1", UserID: "usr-1", Status: model.TicketPending}
	require.NoError(t, repo.Create(context.Background(), tk))

	assert.Len(t, tk.ID, 36)
	assert.Equal(t, fixedNow, tk.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepo_Create_DuplicateKeyIsConflict(t *testing.T) {
	repo, mock := newTicketRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tickets")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'usr-1-evt-1' for key 'uq_tickets_user_event'"})

	err := repo.Create(context.Background(), &model.Ticket{EventID: "evt-1", UserID: "usr-1", Status: model.TicketPending})

	assert.ErrorIs(t, err, ErrConflict)
}

func TestTicketRepo_FindByUserAndEvent(t *testing.T) {
	repo, mock := newTicketRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE user_id = ? AND event_id = ?")).
		WithArgs("usr-1", "evt-1").
		WillReturnRows(ticketRows().AddRow("tk-1", "evt-1", "usr-1", "FAILED", fixedNow, fixedNow))

	tk, err := repo.FindByUserAndEvent(context.Background(), "usr-1", "evt-1")

	require.NoError(t, err)
	assert.Equal(t, "tk-1", tk.ID)
	assert.Equal(t, model.TicketFailed, tk.Status)
}

func TestTicketRepo_FindByUserAndEvent_NotFound(t *testing.T) {
	repo, mock := newTicketRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE user_id = ? AND event_id = ?")).
		WillReturnRows(ticketRows())

	_, err := repo.FindByUserAndEvent(context.Background(), "usr-1", "evt-1")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTicketRepo_UpdateStatus(t *testing.T) {
	repo, mock := newTicketRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tickets SET status = ?, updated_at = ? WHERE id = ?")).
		WithArgs("PAID", fixedNow, "tk-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE id = ?")).
		WithArgs("tk-1").
		WillReturnRows(ticketRows().AddRow("tk-1", "evt-1", "usr-1", "PAID", fixedNow, fixedNow))

	tk, err := repo.UpdateStatus(context.Background(), "tk-1", model.TicketPaid)

	require.NoError(t, err)
	assert.Equal(t, model.TicketPaid, tk.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepo_UpdateStatus_RejectsUnknownStatus(t *testing.T) {
	repo, _ := newTicketRepo(t)

	_, err := repo.UpdateStatus(context.Background(), "tk-1", model.TicketStatus("REFUNDED"))

	assert.Error(t, err)
}

func TestTicketRepo_Delete(t *testing.T) {
	repo, mock := newTicketRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tickets WHERE id = ?")).
		WithArgs("tk-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tickets WHERE id = ?")).
		WithArgs("tk-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Delete(context.Background(), "tk-1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "tk-2"), ErrNotFound)
}

func TestTranslate_PassesThroughOtherErrors(t *testing.T) {
	boom := errors.New("connection refused")

	assert.Same(t, boom, translate(boom))
	assert.Nil(t, translate(nil))
	deadlock := &mysql.MySQLError{Number: 1213}
	assert.Same(t, error(deadlock), translate(deadlock))
}
