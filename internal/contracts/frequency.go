package contracts

import (
	"strings"
	"time"
)

// Frequency is a rebalance cadence
type Frequency string

const (
	FrequencyMonthly    Frequency = "monthly"
	FrequencyQuarterly  Frequency = "quarterly"
	FrequencyBiannually Frequency = "biannually"
	FrequencyAnnually   Frequency = "annually"
)

// ParseFrequency maps free text to a Frequency.
// Unrecognized values fall back to monthly.
func ParseFrequency(s string) Frequency {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quarterly", "quarter", "q":
		return FrequencyQuarterly
	case "biannually", "biannual", "semiannually", "semi-annually", "half-yearly":
		return FrequencyBiannually
	case "annually", "annual", "yearly", "y":
		return FrequencyAnnually
	default:
		return FrequencyMonthly
	}
}

// Months returns the number of calendar months between rebalances
func (f Frequency) Months() int {
	switch f {
	case FrequencyQuarterly:
		return 3
	case FrequencyBiannually:
		return 6
	case FrequencyAnnually:
		return 12
	default:
		return 1
	}
}

// CronSpec returns a six-field cron expression (seconds first) firing at
// 15:00 on the first calendar day of each period.
func (f Frequency) CronSpec() string {
	switch f {
	case FrequencyQuarterly:
		return "0 0 15 1 1,4,7,10 *"
	case FrequencyBiannually:
		return "0 0 15 1 1,7 *"
	case FrequencyAnnually:
		return "0 0 15 1 1 *"
	default:
		return "0 0 15 1 * *"
	}
}

// AddPeriods returns start advanced by n periods. Day-of-month is clamped to
// the end of the target month, so Jan 31 + 1 month is Feb 28 (or 29).
func (f Frequency) AddPeriods(start time.Time, n int) time.Time {
	return AddMonthsClamped(start, n*f.Months())
}

// AddMonthsClamped adds months without time.AddDate's overflow into the next month
func AddMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
