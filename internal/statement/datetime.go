package statement

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Spreadsheet serial dates count days from one of two bases. 1899-12-30
// absorbs the 1900 leap-year quirk for every serial after February 1900.
var (
	epoch1900 = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	epoch1904 = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
)

const (
	serialEpsilon = 1e-7
	msPerDay      = 24 * 60 * 60 * 1000
	// 9999-12-31 in the 1900 system.
	maxSerial = 2958465
)

var (
	textDatePattern  = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})(?: (\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)
	textClockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
	dateSeparators   = strings.NewReplacer(".", "/", "-", "/")
)

// DateOptions controls how a cell is read as a date.
type DateOptions struct {
	// TruncateTime drops any time-of-day component.
	TruncateTime bool
	// Epoch1904 selects the 1904 serial base used by some Mac workbooks.
	Epoch1904 bool
}

// DateTime is a calendar date with an optional clock.
type DateTime struct {
	Date    civil.Date
	Time    civil.Time
	HasTime bool
}

// DateString formats the date as YYYY-MM-DD.
func (d DateTime) DateString() string {
	return d.Date.String()
}

// TimeString formats the clock as HH:MM:SS; "00:00:00" when there is none.
func (d DateTime) TimeString() string {
	return FormatClock(d.Time)
}

// FormatClock renders a clock as HH:MM:SS, dropping sub-second precision.
func FormatClock(t civil.Time) string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// NormalizeDateTime reads a cell as a date. The boolean is false when the
// cell holds nothing date-like; callers treat that as "try another column".
func NormalizeDateTime(c Cell, opts DateOptions) (DateTime, bool) {
	switch c.Kind {
	case CellDate:
		return fromWallClock(c.Time, opts.TruncateTime), true
	case CellNumber:
		return FromSerial(c.Number, opts)
	case CellText:
		return ParseDateText(c.Text, opts.TruncateTime)
	default:
		return DateTime{}, false
	}
}

// FromSerial converts a spreadsheet serial day number. Values within 1e-7 of
// an integer snap to it; the clock is rounded to the nearest second.
func FromSerial(v float64, opts DateOptions) (DateTime, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 1 || v >= maxSerial+1 {
		return DateTime{}, false
	}
	if math.Abs(v-math.Round(v)) < serialEpsilon {
		v = math.Round(v)
	}
	if opts.TruncateTime {
		v = math.Floor(v + serialEpsilon)
	}

	base := epoch1900
	if opts.Epoch1904 {
		base = epoch1904
	}

	days := math.Floor(v)
	ms := math.Round((v - days) * msPerDay)
	t := base.AddDate(0, 0, int(days)).Add(time.Duration(ms) * time.Millisecond)
	t = t.Round(time.Second)

	return fromWallClock(t, opts.TruncateTime), true
}

// ParseDateText parses "YYYY/M/D[ h:mm[:ss]]", accepting "." and "-" as
// date separators and any run of whitespace.
func ParseDateText(raw string, truncateTime bool) (DateTime, bool) {
	norm := strings.Join(strings.Fields(dateSeparators.Replace(raw)), " ")
	if norm == "" {
		return DateTime{}, false
	}
	m := textDatePattern.FindStringSubmatch(norm)
	if m == nil {
		return DateTime{}, false
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	out := DateTime{Date: civil.Date{Year: year, Month: time.Month(month), Day: day}}
	if !out.Date.IsValid() {
		return DateTime{}, false
	}

	if m[4] != "" && !truncateTime {
		clock, ok := clockOf(m[4], m[5], m[6])
		if !ok {
			return DateTime{}, false
		}
		out.Time = clock
		out.HasTime = true
	}
	return out, true
}

// ParseClock reads a time-only cell: "h:mm[:ss]" text, a day fraction, or
// the clock of a native date.
func ParseClock(c Cell) (civil.Time, bool) {
	switch c.Kind {
	case CellDate:
		return civil.Time{Hour: c.Time.Hour(), Minute: c.Time.Minute(), Second: c.Time.Second()}, true
	case CellNumber:
		if math.IsNaN(c.Number) || math.IsInf(c.Number, 0) || c.Number < 0 {
			return civil.Time{}, false
		}
		secs := int(math.Round((c.Number - math.Floor(c.Number)) * 86400))
		if secs >= 86400 {
			secs = 0
		}
		return civil.Time{Hour: secs / 3600, Minute: secs % 3600 / 60, Second: secs % 60}, true
	case CellText:
		m := textClockPattern.FindStringSubmatch(strings.TrimSpace(c.Text))
		if m == nil {
			return civil.Time{}, false
		}
		return clockOf(m[1], m[2], m[3])
	default:
		return civil.Time{}, false
	}
}

func clockOf(hh, mm, ss string) (civil.Time, bool) {
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	s := 0
	if ss != "" {
		s, _ = strconv.Atoi(ss)
	}
	t := civil.Time{Hour: h, Minute: m, Second: s}
	return t, t.IsValid()
}

func fromWallClock(t time.Time, truncateTime bool) DateTime {
	out := DateTime{Date: civil.DateOf(t)}
	if !truncateTime {
		out.Time = civil.Time{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
		out.HasTime = true
	}
	return out
}
