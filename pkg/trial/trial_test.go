package trial_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shelfmetrics/billing/pkg/trial"
)

func TestEndAt(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	end := trial.EndAt(start)

	assert.Equal(t, time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC), end)
}

func TestExpiredAt(t *testing.T) {
	t.Parallel()

	end := time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)

	assert.False(t, trial.ExpiredAt(end, end.Add(-time.Hour)))
	assert.False(t, trial.ExpiredAt(end, end), "expiry is strict: the exact end instant is still in trial")
	assert.True(t, trial.ExpiredAt(end, end.Add(time.Second)))
}

func TestDaysRemainingAt(t *testing.T) {
	t.Parallel()

	end := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"full trial remaining", end.AddDate(0, 0, -14), 14},
		{"one day left", end.AddDate(0, 0, -1), 1},
		{"partial day rounds up", end.Add(-36 * time.Hour), 2},
		{"final hours still count as a day", end.Add(-8 * time.Hour), 1},
		{"expired", end.Add(time.Hour), 0},
		{"exactly at end", end, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, trial.DaysRemainingAt(end, tt.now))
		})
	}
}
