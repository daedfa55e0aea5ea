package recurring

import (
    "testing"
    "time"

    "github.com/stretchr/testify/require"

    "github.com/finbooks/ledger/internal/ledger"
)

func date(y int, m time.Month, d int) time.Time {
    return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextOccurrence_Monthly(t *testing.T) {
    cases := []struct {
        name      string
        anchorDay int
        base      time.Time
        want      time.Time
    }{
        {"mid month", 15, date(2025, 1, 15), date(2025, 2, 15)},
        {"anchor 31 into short month", 31, date(2025, 1, 31), date(2025, 2, 28)},
        {"anchor 31 leap february", 31, date(2024, 1, 31), date(2024, 2, 29)},
        {"anchor 0 means last day", 0, date(2025, 3, 31), date(2025, 4, 30)},
        {"short month back to long", 31, date(2025, 2, 28), date(2025, 3, 31)},
        {"base near month end does not skip", 15, date(2025, 1, 30), date(2025, 2, 15)},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            tpl := ledger.RecurringTemplate{Frequency: ledger.FrequencyMonthly, AnchorDay: tc.anchorDay}
            require.Equal(t, tc.want, NextOccurrence(tpl, tc.base))
        })
    }
}

func TestNextOccurrence_Quarterly(t *testing.T) {
    tpl := ledger.RecurringTemplate{Frequency: ledger.FrequencyQuarterly, AnchorDay: 31}
    require.Equal(t, date(2025, 4, 30), NextOccurrence(tpl, date(2025, 1, 31)))
    require.Equal(t, date(2025, 7, 31), NextOccurrence(tpl, date(2025, 4, 30)))
}

func TestNextOccurrence_Yearly(t *testing.T) {
    tpl := ledger.RecurringTemplate{Frequency: ledger.FrequencyYearly, AnchorDay: 29}
    // Feb 29 anchor lands on Feb 28 in non-leap years.
    require.Equal(t, date(2025, 2, 28), NextOccurrence(tpl, date(2024, 2, 29)))
}

func TestNextOccurrence_Weekly(t *testing.T) {
    // 2025-03-10 is a Monday.
    tpl := ledger.RecurringTemplate{Frequency: ledger.FrequencyWeekly, AnchorWeekday: time.Friday}
    require.Equal(t, date(2025, 3, 21), NextOccurrence(tpl, date(2025, 3, 10)))

    tpl.AnchorWeekday = time.Monday
    require.Equal(t, date(2025, 3, 17), NextOccurrence(tpl, date(2025, 3, 10)))
}

func TestNextOccurrence_InvalidFrequency(t *testing.T) {
    tpl := ledger.RecurringTemplate{Frequency: ledger.Frequency("fortnightly")}
    require.True(t, NextOccurrence(tpl, date(2025, 1, 1)).IsZero())
}
