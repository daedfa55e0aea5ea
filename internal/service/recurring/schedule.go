package recurring

import (
    "time"

    "github.com/finbooks/ledger/internal/ledger"
)

// NextOccurrence computes the first occurrence of a template strictly after
// base. Weekly templates advance seven days and snap forward to the anchor
// weekday; monthly/quarterly advance one or three months and snap to the
// anchor day-of-month (0 or 31 meaning last day, which handles short months);
// yearly advances one year with the same day snapping.
func NextOccurrence(tpl ledger.RecurringTemplate, base time.Time) time.Time {
    switch tpl.Frequency {
    case ledger.FrequencyWeekly:
        n := base.AddDate(0, 0, 7)
        return snapWeekday(n, tpl.AnchorWeekday)
    case ledger.FrequencyMonthly:
        return addMonthsAnchored(base, 1, tpl.AnchorDay)
    case ledger.FrequencyQuarterly:
        return addMonthsAnchored(base, 3, tpl.AnchorDay)
    case ledger.FrequencyYearly:
        return addMonthsAnchored(base, 12, tpl.AnchorDay)
    }
    return time.Time{}
}

// snapWeekday moves t forward (0-6 days) to the requested weekday.
func snapWeekday(t time.Time, w time.Weekday) time.Time {
    delta := (int(w) - int(t.Weekday()) + 7) % 7
    return midnightUTC(t.AddDate(0, 0, delta))
}

// addMonthsAnchored lands on the anchor day of the month `months` after base.
// The month arithmetic is done on year/month only so a base near month end
// cannot overflow into the month after next.
func addMonthsAnchored(base time.Time, months, anchorDay int) time.Time {
    y, m, _ := base.Date()
    first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
    last := first.AddDate(0, 1, -1).Day()
    day := anchorDay
    if day <= 0 || day > last {
        day = last
    }
    return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func midnightUTC(t time.Time) time.Time {
    y, m, d := t.Date()
    return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
