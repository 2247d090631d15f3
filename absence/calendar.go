/*
calendar.go - Bank holiday calendar and business-day counting

PURPOSE:
  Pure date arithmetic for the balance engine. A business day is a calendar
  day that is neither Saturday/Sunday nor a configured bank holiday.

  BusinessDays is total over any valid interval and deterministic; it is
  the unit the tests exercise exhaustively.
*/
package absence

// HolidaySet is a lookup set of bank-holiday dates.
type HolidaySet map[Date]struct{}

// NewHolidaySet builds a lookup set from stored holidays.
func NewHolidaySet(holidays []BankHoliday) HolidaySet {
	set := make(HolidaySet, len(holidays))
	for _, h := range holidays {
		set[h.Date] = struct{}{}
	}
	return set
}

func (s HolidaySet) Contains(d Date) bool {
	_, ok := s[d]
	return ok
}

// BusinessDays counts the days in [start, end] that are neither weekend
// days nor present in the holiday set. Returns ErrInvalidDateRange when
// start > end; callers are expected to pre-validate.
func BusinessDays(start, end Date, holidays HolidaySet) (int, error) {
	if start.After(end) {
		return 0, ErrInvalidDateRange
	}

	count := 0
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		if d.IsWeekend() || holidays.Contains(d) {
			continue
		}
		count++
	}
	return count, nil
}
