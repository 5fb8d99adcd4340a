package cron

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidExpression is returned when a cron expression cannot be parsed
// due to incorrect field count, out-of-range values, or malformed syntax.
var ErrInvalidExpression = errors.New("invalid cron expression")

// ErrNoMatch is returned when Next exhausts its iteration limit without
// finding a time that satisfies all cron fields.
var ErrNoMatch = errors.New("cron: no matching time found within iteration limit")

// ErrNilSchedule is returned when Next is called on a nil schedule receiver.
var ErrNilSchedule = errors.New("cron schedule is nil")

const (
	fieldCount = 5 // minute hour day-of-month month day-of-week
	splitParts = 2 // parts when splitting step or range expressions
)

// Schedule represents a parsed cron schedule capable of computing
// the next execution time after a given reference time.
type Schedule interface {
	Next(time.Time) (time.Time, error)
}

// fieldSet is a bitmask over the legal values of one cron field.
// Bit v is set when value v matches. All cron fields fit in 64 bits.
type fieldSet uint64

func (s fieldSet) has(v int) bool {
	return s&(1<<uint(v)) != 0
}

type schedule struct {
	minutes fieldSet
	hours   fieldSet
	doms    fieldSet
	months  fieldSet
	dows    fieldSet
}

type fieldSpec struct {
	name string
	min  int
	max  int
}

var fieldSpecs = [fieldCount]fieldSpec{
	{name: "minute", min: 0, max: 59},
	{name: "hour", min: 0, max: 23},
	{name: "day-of-month", min: 1, max: 31},
	{name: "month", min: 1, max: 12},
	{name: "day-of-week", min: 0, max: 6},
}

// Parse parses a standard 5-field cron expression and returns a Schedule
// that can compute the next execution time. The expression format is:
// minute hour day-of-month month day-of-week
// Returns ErrInvalidExpression if the expression is malformed or contains out-of-range values.
func Parse(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}

	fields := strings.Fields(expr)
	if len(fields) != fieldCount {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrInvalidExpression, fieldCount, len(fields))
	}

	var sets [fieldCount]fieldSet

	for i, spec := range fieldSpecs {
		set, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", spec.name, err)
		}

		sets[i] = set
	}

	return &schedule{
		minutes: sets[0],
		hours:   sets[1],
		doms:    sets[2],
		months:  sets[3],
		dows:    sets[4],
	}, nil
}

// Next computes the next execution time after the given reference time.
// It normalizes the input to UTC, advances to the next whole minute, and
// skips forward field by field (month, then day, then hour, then minute)
// until every field matches. Returns the matching time in UTC, or
// ErrNoMatch if no match is found within the iteration limit.
func (sched *schedule) Next(from time.Time) (time.Time, error) {
	if sched == nil {
		return time.Time{}, ErrNilSchedule
	}

	from = from.UTC()
	candidate := from.Add(time.Minute).Truncate(time.Minute)

	// A full leap year of minutes bounds the search for any satisfiable
	// expression; unsatisfiable ones (such as "0 0 31 2 *") fall out as
	// ErrNoMatch instead of spinning forever.
	const maxIterations = 366 * 24 * 60
	for range maxIterations {
		switch {
		case !sched.months.has(int(candidate.Month())):
			candidate = time.Date(candidate.Year(), candidate.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		case !sched.doms.has(candidate.Day()) || !sched.dows.has(int(candidate.Weekday())):
			candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day()+1, 0, 0, 0, 0, time.UTC)
		case !sched.hours.has(candidate.Hour()):
			candidate = candidate.Add(time.Hour).Truncate(time.Hour)
		case !sched.minutes.has(candidate.Minute()):
			candidate = candidate.Add(time.Minute)
		default:
			return candidate, nil
		}
	}

	return time.Time{}, ErrNoMatch
}

func parseField(field string, minVal, maxVal int) (fieldSet, error) {
	var set fieldSet

	for _, part := range strings.Split(field, ",") {
		partSet, err := parsePart(part, minVal, maxVal)
		if err != nil {
			return 0, err
		}

		set |= partSet
	}

	return set, nil
}

func parsePart(part string, minVal, maxVal int) (fieldSet, error) {
	rangeStart, rangeEnd := minVal, maxVal
	step := 1

	stepParts := strings.SplitN(part, "/", splitParts)
	hasStep := len(stepParts) == splitParts

	if hasStep {
		s, err := strconv.Atoi(stepParts[1])
		if err != nil || s <= 0 {
			return 0, fmt.Errorf("%w: invalid step %q", ErrInvalidExpression, stepParts[1])
		}

		step = s
	}

	rangePart := stepParts[0]

	switch {
	case rangePart == "*":
		// full range
	case strings.Contains(rangePart, "-"):
		lo, hi, err := parseRange(rangePart, minVal, maxVal)
		if err != nil {
			return 0, err
		}

		rangeStart, rangeEnd = lo, hi
	default:
		val, err := strconv.Atoi(rangePart)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid value %q", ErrInvalidExpression, rangePart)
		}

		if val < minVal || val > maxVal {
			return 0, fmt.Errorf("%w: value %d out of bounds [%d, %d]", ErrInvalidExpression, val, minVal, maxVal)
		}

		if !hasStep {
			return 1 << uint(val), nil
		}

		// "N/step" means every step-th value starting from N.
		rangeStart = val
	}

	var set fieldSet
	for v := rangeStart; v <= rangeEnd; v += step {
		set |= 1 << uint(v)
	}

	return set, nil
}

func parseRange(rangePart string, minVal, maxVal int) (int, int, error) {
	bounds := strings.SplitN(rangePart, "-", splitParts)

	lo, err := strconv.Atoi(bounds[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid range start %q", ErrInvalidExpression, bounds[0])
	}

	hi, err := strconv.Atoi(bounds[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid range end %q", ErrInvalidExpression, bounds[1])
	}

	if lo < minVal || hi > maxVal || lo > hi {
		return 0, 0, fmt.Errorf("%w: range %d-%d out of bounds [%d, %d]", ErrInvalidExpression, lo, hi, minVal, maxVal)
	}

	return lo, hi, nil
}
