package summary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContextHeaderConvertsToLocalZone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	require.NoError(t, err)

	started := time.Date(2026, 3, 5, 1, 30, 0, 0, time.UTC) // 08:30 local
	finished := time.Date(2026, 3, 5, 2, 45, 0, 0, time.UTC) // 09:45 local

	header, prefix := BuildContextHeader(&started, &finished, loc)

	assert.Equal(t, "08:30", header.StartTime)
	assert.Equal(t, "09:45", header.EndTime)
	assert.Equal(t, 2026, header.Year)
	assert.Equal(t, 3, header.Month)
	assert.Equal(t, 5, header.Day)
	assert.Contains(t, prefix, "Giờ bắt đầu: 08:30")
	assert.Contains(t, prefix, "Giờ kết thúc: 09:45")
	assert.Contains(t, prefix, "NỘI DUNG BIÊN BẢN")
}

func TestBuildContextHeaderHandlesMissingTimestamps(t *testing.T) {
	header, prefix := BuildContextHeader(nil, nil, time.UTC)
	assert.Equal(t, "N/A", header.StartTime)
	assert.Equal(t, "N/A", header.EndTime)
	assert.Contains(t, prefix, "N/A")
}
