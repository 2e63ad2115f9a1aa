// README: Attendance report: one row per person and day with lateness, breaks and net time.
package attendance

import (
	"fmt"
	"sort"
	"time"

	"fluentops/internal/types"
)

type Range string

const (
	RangeToday Range = "today"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
)

func ParseRange(s string) (Range, bool) {
	switch Range(s) {
	case "", RangeToday:
		return RangeToday, true
	case RangeWeek, RangeMonth:
		return Range(s), true
	}
	return "", false
}

// Since returns the first instant covered by the range. Weeks start on Monday.
func (r Range) Since(now time.Time, loc *time.Location) time.Time {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	switch r {
	case RangeWeek:
		offset := (int(today.Weekday()) + 6) % 7
		return today.AddDate(0, 0, -offset)
	case RangeMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	default:
		return today
	}
}

type RowStatus string

const (
	RowOnTime     RowStatus = "on_time"
	RowLate       RowStatus = "late"
	RowIncomplete RowStatus = "incomplete"
)

// Shift holds the lateness rule: clocking in after Start plus Tolerance is late.
type Shift struct {
	StartHour int
	Tolerance time.Duration
	Location  *time.Location
}

type Row struct {
	Key          string     `json:"key"`
	PersonID     types.ID   `json:"person_id"`
	PersonName   string     `json:"person_name"`
	PersonRole   string     `json:"person_role"`
	PersonType   PersonType `json:"person_type"`
	Date         string     `json:"date"`
	ClockIn      *time.Time `json:"clock_in,omitempty"`
	ClockOut     *time.Time `json:"clock_out,omitempty"`
	BreakStart   *time.Time `json:"break_start,omitempty"`
	BreakEnd     *time.Time `json:"break_end,omitempty"`
	BreakMinutes int        `json:"break_minutes"`
	NetMinutes   int        `json:"net_minutes"`
	Worked       string     `json:"worked"`
	Status       RowStatus  `json:"status"`
	Late         bool       `json:"late"`
	InProgress   bool       `json:"in_progress"`
}

// BuildReport groups entries by person and local day. Within a day the last
// entry of each kind wins.
func BuildReport(entries []Entry, shift Shift) []Row {
	loc := shift.Location
	if loc == nil {
		loc = time.UTC
	}
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RecordedAt.Before(sorted[j].RecordedAt) })

	rows := make(map[string]*Row)
	for _, e := range sorted {
		at := e.RecordedAt.In(loc)
		date := at.Format("2006-01-02")
		key := fmt.Sprintf("%s_%s_%s", e.PersonType, e.PersonID, date)
		row, ok := rows[key]
		if !ok {
			row = &Row{
				Key:        key,
				PersonID:   e.PersonID,
				PersonName: e.PersonName,
				PersonRole: e.PersonRole,
				PersonType: e.PersonType,
				Date:       date,
				Status:     RowIncomplete,
			}
			rows[key] = row
		}
		switch e.Kind {
		case KindClockIn:
			row.ClockIn = &at
			row.Late = isLate(at, shift)
		case KindClockOut:
			row.ClockOut = &at
		case KindBreakStart:
			row.BreakStart = &at
		case KindBreakEnd:
			row.BreakEnd = &at
		}
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		finish(row)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		if out[i].PersonName != out[j].PersonName {
			return out[i].PersonName < out[j].PersonName
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func isLate(at time.Time, shift Shift) bool {
	limit := time.Date(at.Year(), at.Month(), at.Day(), shift.StartHour, 0, 0, 0, at.Location()).Add(shift.Tolerance)
	// minute resolution: 09:15:59 is still on time with a 15 minute tolerance
	return at.Truncate(time.Minute).After(limit)
}

func finish(row *Row) {
	var brk time.Duration
	if row.BreakStart != nil && row.BreakEnd != nil && row.BreakEnd.After(*row.BreakStart) {
		brk = row.BreakEnd.Sub(*row.BreakStart)
	}
	row.BreakMinutes = int(brk / time.Minute)

	switch {
	case row.ClockIn != nil && row.ClockOut != nil:
		net := row.ClockOut.Sub(*row.ClockIn) - brk
		if net < 0 {
			net = 0
		}
		row.NetMinutes = int(net / time.Minute)
		row.Worked = FormatWorked(net)
	case row.ClockIn != nil:
		row.InProgress = true
		row.Worked = "in progress"
	default:
		row.Worked = "-"
	}

	if row.ClockIn != nil {
		row.Status = RowOnTime
		if row.Late {
			row.Status = RowLate
		}
	}
}

// FormatWorked renders a duration as "8h 30m".
func FormatWorked(d time.Duration) string {
	if d <= 0 {
		return "0h 0m"
	}
	return fmt.Sprintf("%dh %dm", int(d/time.Hour), int(d%time.Hour/time.Minute))
}
