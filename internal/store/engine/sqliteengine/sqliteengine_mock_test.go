package sqliteengine

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

var errDiskFull = errors.New("disk full")

// newMockHandle wires a sqlmock-backed *sqlx.DB into a Handle via
// newHandleFromDB, the same seam Open uses for the real modernc.org/sqlite
// connection. Grounded on
// system/platform/migrations/migrations_test.go's sqlmock.New() usage,
// adapted here to assert on CreateAndLoad/Query/Drop's exact SQL rather
// than a migration runner's.
func newMockHandle(t *testing.T) (*Handle, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return newHandleFromDB(sqlx.NewDb(db, "sqlmock")), mock
}

func TestCreateAndLoadIssuesCreateThenNamedInserts(t *testing.T) {
	h, mock := newMockHandle(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE temp_metric \(ts TEXT, val REAL\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO temp_metric \(ts, val\) VALUES \(\?, \?\)`).
		WithArgs("2026-07-30T00:00:00Z", 1.5).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO temp_metric \(ts, val\) VALUES \(\?, \?\)`).
		WithArgs("2026-07-30T00:01:00Z", 2.5).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	cols := []Column{{Name: "ts", SQLType: "TEXT"}, {Name: "val", SQLType: "REAL"}}
	rows := [][]any{
		{"2026-07-30T00:00:00Z", 1.5},
		{"2026-07-30T00:01:00Z", 2.5},
	}
	if err := h.CreateAndLoad(context.Background(), "temp_metric", cols, rows); err != nil {
		t.Fatalf("CreateAndLoad: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateAndLoadRollsBackOnInsertFailure(t *testing.T) {
	h, mock := newMockHandle(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE broken \(val REAL\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO broken \(val\) VALUES \(\?\)`).
		WillReturnError(errDiskFull)
	mock.ExpectRollback()

	cols := []Column{{Name: "val", SQLType: "REAL"}}
	rows := [][]any{{1.0}}
	if err := h.CreateAndLoad(context.Background(), "broken", cols, rows); err == nil {
		t.Fatal("expected error from failed insert")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDropIssuesDropTableIfExists(t *testing.T) {
	h, mock := newMockHandle(t)
	mock.ExpectExec(`DROP TABLE IF EXISTS temp_metric`).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := h.Drop(context.Background(), "temp_metric"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
