package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *time.Time
	}{
		{"rfc3339 z suffix", "2024-03-15T14:30:00Z", timePtr(2024, 3, 15, 14, 30, 0)},
		{"explicit offset", "2024-03-15T16:30:00+02:00", timePtr(2024, 3, 15, 14, 30, 0)},
		{"naive datetime assumed utc", "2024-03-15T14:30:00", timePtr(2024, 3, 15, 14, 30, 0)},
		{"space separated", "2024-03-15 14:30:00", timePtr(2024, 3, 15, 14, 30, 0)},
		{"date only", "2024-03-15", timePtr(2024, 3, 15, 0, 0, 0)},
		{"empty", "", nil},
		{"whitespace", "   ", nil},
		{"garbage", "not-a-date", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTime(tt.raw)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "want %s got %s", tt.want, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestTimeField(t *testing.T) {
	parsed, warning := timeField("2024-03-15T14:30:00Z", "updated_at")
	require.NotNil(t, parsed)
	assert.Empty(t, warning)

	parsed, warning = timeField(nil, "updated_at")
	assert.Nil(t, parsed)
	assert.Empty(t, warning)

	parsed, warning = timeField("", "updated_at")
	assert.Nil(t, parsed)
	assert.Empty(t, warning)

	parsed, warning = timeField("bogus", "updated_at")
	assert.Nil(t, parsed)
	assert.Contains(t, warning, "unparsable timestamp in field updated_at")

	parsed, warning = timeField(float64(1710513000), "updated_at")
	assert.Nil(t, parsed)
	assert.Contains(t, warning, "not a timestamp string")
}

func timePtr(year int, month time.Month, day, hour, minute, sec int) *time.Time {
	ts := time.Date(year, month, day, hour, minute, sec, 0, time.UTC)
	return &ts
}
