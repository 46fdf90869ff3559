package carechart

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestGroupSubmissions(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	authored := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	got := groupSubmissions([]submissionRow{
		{id: first, authored: authored, linkID: intPtr(1), value: intPtr(2)},
		{id: first, authored: authored, linkID: intPtr(2), value: intPtr(-1)},
		{id: second, authored: authored.Add(24 * time.Hour)},
	})

	require.Len(t, got, 2)
	assert.Equal(t, first.String(), got[0].ID)
	assert.Equal(t, map[int]int{1: 2, 2: -1}, got[0].Answers)
	assert.Empty(t, got[1].Answers)
}

func TestGroupSubmissions_AuthoredInUTC(t *testing.T) {
	// 01:00 on 2 March in UTC+5 is still 1 March in UTC
	zone := time.FixedZone("UTC+5", 5*60*60)
	local := time.Date(2025, 3, 2, 1, 0, 0, 0, zone)

	got := groupSubmissions([]submissionRow{{id: uuid.New(), authored: local}})

	require.Len(t, got, 1)
	assert.Equal(t, time.UTC, got[0].Authored.Location())
	assert.True(t, got[0].Authored.Equal(local))

	chart := BuildChart(got, []Question{{Text: "q"}}, Bounds{Initial: 5, Min: 1, Max: 10})
	assert.Equal(t, []string{BaselineLabel, "01/03/2025"}, chart.Labels)
}
