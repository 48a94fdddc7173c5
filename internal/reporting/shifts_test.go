package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lokman32/leadprep/internal/apperr"
)

func TestShiftWindow(t *testing.T) {
	loc := time.FixedZone("facility", 3600)
	date, err := ParseDate("2024-05-02", loc)
	require.NoError(t, err)

	tests := []struct {
		shift      Shift
		start, end string
	}{
		{Morning, "2024-05-02T06:00:00+01:00", "2024-05-02T14:00:00+01:00"},
		{Afternoon, "2024-05-02T14:00:00+01:00", "2024-05-02T22:00:00+01:00"},
		{Night, "2024-05-02T22:00:00+01:00", "2024-05-03T06:00:00+01:00"},
	}
	for _, tt := range tests {
		t.Run(string(tt.shift), func(t *testing.T) {
			w, err := ShiftWindow(date, tt.shift, loc)
			require.NoError(t, err)
			assert.Equal(t, tt.start, w.Start.Format(time.RFC3339))
			assert.Equal(t, tt.end, w.End.Format(time.RFC3339))
		})
	}
}

func TestWindowContainsIsHalfOpen(t *testing.T) {
	w, err := ShiftWindow(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), Morning, time.UTC)
	require.NoError(t, err)
	assert.True(t, w.Contains(w.Start))
	assert.True(t, w.Contains(w.End.Add(-time.Millisecond)))
	assert.False(t, w.Contains(w.End))
}

func TestShiftAt(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		at    time.Time
		shift Shift
		day   string
	}{
		{time.Date(2024, 5, 2, 5, 59, 0, 0, loc), Night, "2024-05-01"},
		{time.Date(2024, 5, 2, 6, 0, 0, 0, loc), Morning, "2024-05-02"},
		{time.Date(2024, 5, 2, 21, 59, 0, 0, loc), Afternoon, "2024-05-02"},
		{time.Date(2024, 5, 2, 23, 0, 0, 0, loc), Night, "2024-05-02"},
	}
	for _, tt := range tests {
		shift, day := ShiftAt(tt.at, loc)
		assert.Equal(t, tt.shift, shift, tt.at)
		assert.Equal(t, tt.day, day.Format(dateLayout), tt.at)
	}
}

func TestParseShiftAndDate(t *testing.T) {
	s, err := ParseShift(" Night ")
	require.NoError(t, err)
	assert.Equal(t, Night, s)

	_, err = ParseShift("dawn")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = ParseDate("02/05/2024", time.UTC)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
