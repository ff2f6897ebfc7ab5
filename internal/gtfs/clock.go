package gtfs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DateFormat     = "20060102"
	isoDateFormat  = "2006-01-02"
	secondsPerDay  = 24 * 60 * 60
	secondsPerHour = 60 * 60
)

var (
	ErrInvalidTime = errors.New("invalid time of day")
	ErrInvalidDate = errors.New("invalid date")
	// ErrBeyondServiceDay marks stop times at or after 24:00:00, which have no
	// time-of-day on the service date.
	ErrBeyondServiceDay = errors.New("time at or after 24:00:00")
)

// TimeOfDay is a wall-clock time expressed as seconds since midnight.
type TimeOfDay int

func TimeOfDayFromSeconds(sec int) (TimeOfDay, error) {
	if sec < 0 {
		return 0, fmt.Errorf("%w: %d seconds", ErrInvalidTime, sec)
	}
	if sec >= secondsPerDay {
		return 0, ErrBeyondServiceDay
	}
	return TimeOfDay(sec), nil
}

// ParseTimeOfDay parses a query time in HH:MM or HH:MM:SS form. Hours must be
// below 24.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	sec, err := ParseClock(s)
	if err != nil {
		return 0, err
	}
	if sec >= secondsPerDay {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return TimeOfDay(sec), nil
}

// ParseQueryTime parses a query window edge, which must be exactly HH:MM with
// hours below 24. Stop times go through ParseClock instead.
func ParseQueryTime(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' || !digits(s[:2]) || !digits(s[3:]) {
		return 0, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidTime, s)
	}
	return ParseTimeOfDay(s)
}

// ParseClock parses a GTFS clock value (H:MM:SS, HH:MM:SS or HH:MM) into
// seconds since midnight. Hours may be 24 or more, as GTFS allows.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	sec := 0
	if len(parts) == 3 {
		sec, err = strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 || len(parts[2]) != 2 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
	}
	return h*secondsPerHour + m*60 + sec, nil
}

// Add returns t+d as a time of day, wrapping past midnight.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	sec := (int(t) + int(d/time.Second)) % secondsPerDay
	if sec < 0 {
		sec += secondsPerDay
	}
	return TimeOfDay(sec)
}

func (t TimeOfDay) Seconds() int { return int(t) }

func (t TimeOfDay) String() string {
	sec := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", sec/secondsPerHour, (sec%secondsPerHour)/60, sec%60)
}

// MarshalText renders t as HH:MM:SS.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseDate parses YYYYMMDD (GTFS) or YYYY-MM-DD into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layout := DateFormat
	if strings.Contains(s, "-") {
		layout = isoDateFormat
	}
	d, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// ParseServiceDate parses a query date, which must be exactly YYYYMMDD.
func ParseServiceDate(s string) (time.Time, error) {
	if len(s) != len(DateFormat) || !digits(s) {
		return time.Time{}, fmt.Errorf("%w: %q is not YYYYMMDD", ErrInvalidDate, s)
	}
	return ParseDate(s)
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// DateOf truncates t to its calendar date at UTC midnight, keeping the
// year/month/day as seen in t's own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
