package report

import (
	"fmt"
	"time"

	"github.com/jordanlanch/salesbot/pkg/store"
)

// Window identifies a reporting period. Values double as the wire tokens
// used by the report menus.
type Window string

const (
	WindowToday         Window = "hoje"
	WindowYesterday     Window = "ontem"
	WindowCurrentWeek   Window = "semana_atual"
	WindowPreviousWeek  Window = "semana_anterior"
	WindowCurrentMonth  Window = "mes_atual"
	WindowPreviousMonth Window = "mes_anterior"
)

// Label returns the human title used in report headers.
func (w Window) Label() string {
	switch w {
	case WindowToday:
		return "Hoje"
	case WindowYesterday:
		return "Ontem"
	case WindowCurrentWeek:
		return "Semana Atual"
	case WindowPreviousWeek:
		return "Semana Anterior"
	case WindowCurrentMonth:
		return "Mês Atual"
	case WindowPreviousMonth:
		return "Mês Anterior"
	}
	return string(w)
}

// Valid reports whether w is a known window token.
func (w Window) Valid() bool {
	switch w {
	case WindowToday, WindowYesterday, WindowCurrentWeek, WindowPreviousWeek, WindowCurrentMonth, WindowPreviousMonth:
		return true
	}
	return false
}

// Range resolves the window to absolute instants. Day, week and month
// boundaries are taken in loc's civil time: days run 00:00:00 to
// 23:59:59.999, weeks run Monday through Sunday.
func (w Window) Range(now time.Time, loc *time.Location) (store.TimeRange, error) {
	local := now.In(loc)
	switch w {
	case WindowToday:
		start := startOfDay(local)
		return dayRange(start, start.AddDate(0, 0, 1)), nil
	case WindowYesterday:
		start := startOfDay(local).AddDate(0, 0, -1)
		return dayRange(start, start.AddDate(0, 0, 1)), nil
	case WindowCurrentWeek:
		start := startOfWeek(local)
		return dayRange(start, start.AddDate(0, 0, 7)), nil
	case WindowPreviousWeek:
		start := startOfWeek(local).AddDate(0, 0, -7)
		return dayRange(start, start.AddDate(0, 0, 7)), nil
	case WindowCurrentMonth:
		start := startOfMonth(local)
		return dayRange(start, start.AddDate(0, 1, 0)), nil
	case WindowPreviousMonth:
		end := startOfMonth(local)
		return dayRange(end.AddDate(0, -1, 0), end), nil
	}
	return store.TimeRange{}, fmt.Errorf("unknown report window %q", w)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek returns Monday 00:00:00 of t's week.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := int(day.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	return day.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// dayRange converts [start, nextStart) into the closed millisecond-precision
// interval the store queries with.
func dayRange(start, nextStart time.Time) store.TimeRange {
	return store.TimeRange{Start: start, End: nextStart.Add(-time.Millisecond)}
}
