package questdb

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"bgzfiltra/internal/stats"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_SetupTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, name := range []string{"bugs_per_status", "bugs_per_component", "bugs_l3", "bugs_l3_cases", "bugs_priority", "bugs_assigned"} {
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS " + name + " (")).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, NewSink(db).SetupTables(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSink_SetupTables_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS bugs_per_status").WillReturnError(errors.New("permission denied"))

	err = NewSink(db).SetupTables(context.Background())
	var pErr *PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "bugs_per_status", pErr.Table)
}

func TestSink_InsertCommitsEachRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bugs_per_status VALUES ($1, $2, $3, $4)")).
		WithArgs("Foo", "NEW", float64(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bugs_assigned VALUES ($1, $2, $3, $4)")).
		WithArgs("Foo", "x@y", float64(3), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sink := NewSink(db)
	require.NoError(t, sink.Insert(context.Background(), stats.DimStatus, stats.Row{Product: "Foo", Value: "NEW", Count: 1}, ts))
	require.NoError(t, sink.Insert(context.Background(), stats.DimAssigned, stats.Row{Product: "Foo", Value: "x@y", Count: 3}, ts))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSink_InsertFailureRollsBackOnlyThatRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bugs_priority").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bugs_priority").WillReturnError(errors.New("table busy"))
	mock.ExpectRollback()

	sink := NewSink(db)
	now := time.Now()
	require.NoError(t, sink.Insert(context.Background(), stats.DimPriority, stats.Row{Product: "Foo", Value: "p1", Count: 1}, now))

	err = sink.Insert(context.Background(), stats.DimPriority, stats.Row{Product: "Foo", Value: "p2", Count: 1}, now)
	var pErr *PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "bugs_priority", pErr.Table)
	assert.Contains(t, err.Error(), "table busy")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSink_InsertUnknownDimension(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	err = NewSink(db).Insert(context.Background(), stats.Dimension("bogus"), stats.Row{}, time.Now())
	assert.Error(t, err)
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{User: "admin", Password: "p@ss word", Host: "127.0.0.1", Port: "8812", Database: "qdb"}
	dsn := cfg.DSN()

	assert.True(t, strings.HasPrefix(dsn, "postgres://admin:"), dsn)
	assert.Contains(t, dsn, "@127.0.0.1:8812/qdb")
	assert.Contains(t, dsn, "sslmode=disable")
	assert.NotContains(t, dsn, "p@ss word")
}

func TestTableFor(t *testing.T) {
	for _, d := range stats.Dimensions {
		name, ok := TableFor(d)
		assert.True(t, ok, "dimension %s has no table", d)
		assert.NotEmpty(t, name)
	}
}
