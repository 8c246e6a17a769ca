package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newsdesk/internal/sheets"
)

func TestStoreGridLimits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateSheet(ctx, "news", 2, 10))

	require.NoError(t, s.UpdateRow(ctx, "news", 1, []string{"header"}))
	require.NoError(t, s.UpdateRow(ctx, "news", 2, []string{"a"}))
	require.Error(t, s.UpdateRow(ctx, "news", 3, []string{"b"}))

	require.NoError(t, s.AppendRows(ctx, "news", 5))
	require.NoError(t, s.UpdateRow(ctx, "news", 3, []string{"b"}))

	infos, err := s.Sheets(ctx)
	require.NoError(t, err)
	info, ok := sheets.Find(infos, "news")
	require.True(t, ok)
	assert.Equal(t, 7, info.RowCount)
}

func TestStoreDeleteRowShiftsUp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	s.Seed("news", 10, []string{"h"}, []string{"1"}, []string{"2"}, []string{"3"})

	require.NoError(t, s.DeleteRow(ctx, "news", 2))
	rows, err := s.ReadAll(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"h"}, {"2"}, {"3"}}, rows)
}

func TestStoreReadAllOmitsTrailingEmptyRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	s.Seed("news", 10, []string{"h"}, []string{"1"}, []string{"", ""})

	rows, err := s.ReadAll(ctx, "news")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = s.ReadAll(ctx, "missing")
	assert.ErrorIs(t, err, sheets.ErrSheetNotFound)
}

func TestStoreFaultInjection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	s.Seed("news", 10, []string{"h"})
	boom := errors.New("boom")
	s.Fail(OpUpdateRow, boom, boom)

	assert.ErrorIs(t, s.UpdateRow(ctx, "news", 2, []string{"x"}), boom)
	assert.ErrorIs(t, s.UpdateRow(ctx, "news", 2, []string{"x"}), boom)
	assert.NoError(t, s.UpdateRow(ctx, "news", 2, []string{"x"}))
	assert.Equal(t, 3, s.Calls(OpUpdateRow))
}

func TestStoreFormatRecordsLinks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	s.Seed("news", 10, []string{"h"})
	require.NoError(t, s.Format(ctx, "news", sheets.Formatting{
		Links: []sheets.Link{{Row: 1, Col: 7, Text: "open", URL: "https://x.com/a"}},
	}))

	url, ok := s.Link("news", 2, 8)
	require.True(t, ok)
	assert.Equal(t, "https://x.com/a", url)
	assert.Len(t, s.Formats("news"), 1)
}

func TestStoreDeleteSheet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateSheet(ctx, "Sheet1", 1000, 26))
	require.Error(t, s.CreateSheet(ctx, "Sheet1", 1000, 26))
	require.NoError(t, s.DeleteSheet(ctx, "Sheet1"))
	infos, err := s.Sheets(ctx)
	require.NoError(t, err)
	assert.Empty(t, infos)
	assert.ErrorIs(t, s.DeleteSheet(ctx, "Sheet1"), sheets.ErrSheetNotFound)
}
