package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"courtside/internal/grid"
	"courtside/internal/interval"
	"courtside/internal/models"
)

func TestWriteWeek(t *testing.T) {
	date := interval.MustParseDate("2025-06-02")
	slots := []models.AvailabilitySlot{{
		ID:          "s1",
		OwnerID:     "alice",
		Interval:    interval.MustParse("2025-06-02", "09:00", "09:30"),
		IsAvailable: true,
	}}
	invites := []models.MatchInvite{{
		ID:         "i1",
		SenderID:   "bob",
		ReceiverID: "alice",
		Interval:   interval.MustParse("2025-06-03", "09:15", "09:45"),
		Status:     models.InvitePending,
	}}
	days := grid.Build(slots, invites).Days(date, 2, grid.HourWindow{First: 9, Last: 10})

	var buf bytes.Buffer
	require.NoError(t, WriteWeek(&buf, "alice", days))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("alice")
	require.NoError(t, err)
	require.Len(t, rows, 9)

	assert.Equal(t, []string{"Time", "Mon 2025-06-02", "Tue 2025-06-03"}, rows[0])
	assert.Equal(t, []string{"09:00", "available"}, rows[1])
	assert.Equal(t, []string{"09:15", "available", "invite (pending)"}, rows[2])
	assert.Equal(t, []string{"09:30", "", "invite (pending)"}, rows[3])
	assert.Equal(t, []string{"10:45"}, rows[8])
}

func TestWriteWeekTruncatesLongTitles(t *testing.T) {
	var buf bytes.Buffer
	title := "a-very-long-player-identifier-beyond-excel-limits"
	require.NoError(t, WriteWeek(&buf, title, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{title[:31]}, f.GetSheetList())
}

func TestCellText(t *testing.T) {
	assert.Equal(t, "", CellText(grid.QuarterInfo{Kind: grid.KindUnavailable}))
	assert.Equal(t, "available", CellText(grid.QuarterInfo{Kind: grid.KindAvailable}))
	assert.Equal(t, "invite (accepted)", CellText(grid.QuarterInfo{Kind: grid.KindInvite, InviteStatus: models.InviteAccepted}))
	assert.Equal(t, "3 available", CellText(grid.QuarterInfo{Kind: grid.KindOthers, Count: 3}))
}
