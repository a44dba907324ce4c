package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/lite-site-auditor/internal/audit"
)

func sampleRecord() audit.Record {
	title := "Home"
	return audit.Record{
		ID:        "0190c2b4-5d7e-7000-8000-000000000001",
		SeedURL:   "https://example.com",
		CreatedAt: time.Unix(1700000000, 0).UTC(),
		Report: audit.Report{
			Pages: []audit.Page{{
				URL:        "https://example.com",
				StatusCode: 200,
				Title:      &title,
				LoadTime:   120,
				Issues:     []string{audit.IssueMissingMeta},
			}},
			Stats:          audit.Stats{TotalPages: 1, Successful: 1, AvgLoadTimeMs: 120},
			Robots:         audit.Present,
			Sitemap:        audit.Missing,
			IssuesSummary:  audit.IssuesSummary{MissingMeta: 1},
			Duplicates:     []audit.DuplicateEntry{},
			RedirectChains: []audit.RedirectEdge{},
			BrokenLinks:    []string{},
		},
	}
}

func TestSaveReportUpsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewReportStoreWithPool(mock, "")
	require.NoError(t, err)

	rec := sampleRecord()
	body, err := json.Marshal(rec.Report)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO audit_reports").
		WithArgs(rec.ID, rec.SeedURL, rec.CreatedAt, 1, body).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveReport(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReportWrapsErrors(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewReportStoreWithPool(mock, "reports")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO reports").WillReturnError(errors.New("disk full"))
	err = store.SaveReport(context.Background(), sampleRecord())
	require.ErrorContains(t, err, "insert report")
	require.ErrorContains(t, err, "disk full")

	require.Error(t, store.SaveReport(context.Background(), audit.Record{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReport(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewReportStoreWithPool(mock, "audit_reports")
	require.NoError(t, err)

	rec := sampleRecord()
	body, err := json.Marshal(rec.Report)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, seed_url, created_at, report FROM audit_reports").
		WithArgs(rec.ID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "seed_url", "created_at", "report"}).
			AddRow(rec.ID, rec.SeedURL, rec.CreatedAt, body))

	got, err := store.GetReport(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReportNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewReportStoreWithPool(mock, "audit_reports")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, seed_url, created_at, report FROM audit_reports").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.GetReport(context.Background(), "missing")
	require.ErrorIs(t, err, audit.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListReports(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewReportStoreWithPool(mock, "audit_reports")
	require.NoError(t, err)

	newer := time.Unix(1700000100, 0).UTC()
	older := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("SELECT id, seed_url, created_at, total_pages").
		WithArgs(20, 40).
		WillReturnRows(pgxmock.NewRows([]string{"id", "seed_url", "created_at", "total_pages"}).
			AddRow("b", "https://b.example", newer, 7).
			AddRow("a", "https://a.example", older, 10))

	got, err := store.ListReports(context.Background(), 20, 40)
	require.NoError(t, err)
	require.Equal(t, []audit.Summary{
		{ID: "b", SeedURL: "https://b.example", CreatedAt: newer, TotalPages: 7},
		{ID: "a", SeedURL: "https://a.example", CreatedAt: older, TotalPages: 10},
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaAndPing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewReportStoreWithPool(mock, "audit_reports")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_reports").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectPing()

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewReportStoreWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewReportStoreWithPool(nil, "audit_reports")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewReportStoreWithPool(mock, "audits; DROP TABLE x")
	require.ErrorContains(t, err, "invalid table name")

	_, err = NewReportStore(context.Background(), Config{})
	require.ErrorContains(t, err, "db.dsn")
}
