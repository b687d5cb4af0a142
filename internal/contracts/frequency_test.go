package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in   string
		want Frequency
	}{
		{"monthly", FrequencyMonthly},
		{"Quarterly", FrequencyQuarterly},
		{" biannually ", FrequencyBiannually},
		{"annually", FrequencyAnnually},
		{"yearly", FrequencyAnnually},
		{"weekly", FrequencyMonthly},
		{"", FrequencyMonthly},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFrequency(tt.in))
		})
	}
}

func TestFrequency_Months(t *testing.T) {
	assert.Equal(t, 1, FrequencyMonthly.Months())
	assert.Equal(t, 3, FrequencyQuarterly.Months())
	assert.Equal(t, 6, FrequencyBiannually.Months())
	assert.Equal(t, 12, FrequencyAnnually.Months())
	assert.Equal(t, 1, Frequency("bogus").Months())
}

func TestAddMonthsClamped(t *testing.T) {
	tests := []struct {
		start  string
		months int
		want   string
	}{
		{"2024-01-31", 1, "2024-02-29"},
		{"2023-01-31", 1, "2023-02-28"},
		{"2024-01-31", 2, "2024-03-31"},
		{"2024-03-15", 3, "2024-06-15"},
		{"2024-11-30", 3, "2025-02-28"},
		{"2024-02-29", 12, "2025-02-28"},
	}
	for _, tt := range tests {
		t.Run(tt.start, func(t *testing.T) {
			assert.Equal(t, day(tt.want), AddMonthsClamped(day(tt.start), tt.months))
		})
	}
}

func TestFrequency_AddPeriodsAnchored(t *testing.T) {
	start := day("2024-01-31")
	var got []time.Time
	for k := 1; k <= 3; k++ {
		got = append(got, FrequencyMonthly.AddPeriods(start, k))
	}
	assert.Equal(t, []time.Time{day("2024-02-29"), day("2024-03-31"), day("2024-04-30")}, got)
}

func TestFrequency_CronSpec(t *testing.T) {
	assert.Equal(t, "0 0 15 1 * *", FrequencyMonthly.CronSpec())
	assert.Equal(t, "0 0 15 1 1,4,7,10 *", FrequencyQuarterly.CronSpec())
}
