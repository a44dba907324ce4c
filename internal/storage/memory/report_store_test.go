package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/lite-site-auditor/internal/audit"
)

func record(i int) audit.Record {
	return audit.Record{
		ID:        fmt.Sprintf("id-%d", i),
		SeedURL:   fmt.Sprintf("https://site%d.example", i),
		CreatedAt: time.Unix(int64(1700000000+i), 0).UTC(),
		Report:    audit.Report{Stats: audit.Stats{TotalPages: i}},
	}
}

func TestReportStoreSaveGetList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewReportStore(10)
	for i := 1; i <= 4; i++ {
		require.NoError(t, store.SaveReport(ctx, record(i)))
	}

	got, err := store.GetReport(ctx, "id-2")
	require.NoError(t, err)
	require.Equal(t, record(2), got)

	_, err = store.GetReport(ctx, "nope")
	require.ErrorIs(t, err, audit.ErrNotFound)

	list, err := store.ListReports(ctx, 2, 0)
	require.NoError(t, err)
	require.Equal(t, []audit.Summary{record(4).Summarize(), record(3).Summarize()}, list)

	list, err = store.ListReports(ctx, 10, 3)
	require.NoError(t, err)
	require.Equal(t, []audit.Summary{record(1).Summarize()}, list)

	list, err = store.ListReports(ctx, 10, 10)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestReportStoreEvictsOldest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewReportStore(2)
	for i := 1; i <= 3; i++ {
		require.NoError(t, store.SaveReport(ctx, record(i)))
	}
	require.NoError(t, store.SaveReport(ctx, record(3)))

	_, err := store.GetReport(ctx, "id-1")
	require.ErrorIs(t, err, audit.ErrNotFound)

	list, err := store.ListReports(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "id-3", list[0].ID)
}
