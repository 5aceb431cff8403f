package domain

import "slices"

// ModernEraStartYear is the first year flagged as modern era.
const ModernEraStartYear = 1900

// DateRow is one row of the date dimension.
type DateRow struct {
	DateID      int    `json:"date_id"`
	FullDate    Date   `json:"full_date"`
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	MonthName   string `json:"month_name"`
	Quarter     int    `json:"quarter"`
	Decade      int    `json:"decade"`
	Century     int    `json:"century"`
	IsModernEra bool   `json:"is_modern_era"`
}

// NewDateRow derives the calendar attributes of d.
func NewDateRow(id int, d Date) DateRow {
	return DateRow{
		DateID:      id,
		FullDate:    d,
		Year:        d.Year,
		Month:       int(d.Month),
		MonthName:   d.Month.String(),
		Quarter:     (int(d.Month)-1)/3 + 1,
		Decade:      floorDiv(d.Year, 10) * 10,
		Century:     floorDiv(d.Year, 100) + 1,
		IsModernEra: d.Year >= ModernEraStartYear,
	}
}

// floorDiv rounds toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// BuildDateDimension drops null dates, deduplicates, sorts ascending and
// assigns dense 1-based ids.
func BuildDateDimension(dates []Date) []DateRow {
	seen := make(map[Date]struct{}, len(dates))
	uniq := make([]Date, 0, len(dates))
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		uniq = append(uniq, d)
	}
	slices.SortFunc(uniq, func(a, b Date) int {
		return a.Time().Compare(b.Time())
	})

	rows := make([]DateRow, len(uniq))
	for i, d := range uniq {
		rows[i] = NewDateRow(i+1, d)
	}
	return rows
}

// CollectDates returns the dates of every reading in the tables, visiting
// sources in processing order.
func CollectDates(tables map[Source]CleanedTable) []Date {
	var dates []Date
	for _, src := range Sources() {
		for _, r := range tables[src].Readings {
			dates = append(dates, r.Date)
		}
	}
	return dates
}

// DateIndex resolves a calendar date to its date_id.
type DateIndex map[Date]int

// NewDateIndex indexes a built date dimension.
func NewDateIndex(rows []DateRow) DateIndex {
	idx := make(DateIndex, len(rows))
	for _, r := range rows {
		idx[r.FullDate] = r.DateID
	}
	return idx
}

// Lookup returns the date_id for d. Null dates never resolve.
func (idx DateIndex) Lookup(d Date) (int, bool) {
	if d.IsZero() {
		return 0, false
	}
	id, ok := idx[d]
	return id, ok
}
