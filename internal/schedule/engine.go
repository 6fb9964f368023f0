// internal/schedule/engine.go
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// DefaultCount is the number of schedule entries produced when the caller
// does not configure one.
const DefaultCount = 6

// maxScanMonths bounds the forward month scan.
const maxScanMonths = 240

// ErrScanExhausted is returned when the month scan reaches its bound before
// collecting the requested number of entries.
var ErrScanExhausted = errors.New("schedule: month scan exhausted")

var (
	// CandidateDays are the days of month considered for a schedule, ascending.
	CandidateDays = []int{1, 6, 8, 15, 18, 28}
	// PreferredQuantities is the ordered set a quantity is normalized into.
	PreferredQuantities = []int{3, 6, 7, 8}
)

// Entry is one recommended date.
type Entry struct {
	Date   time.Time
	Reason Reason
}

// Outcome bundles every derived value for one reference event.
type Outcome struct {
	ElapsedMonths int
	RawQuantity   int
	Quantity      int
	Schedule      []Entry
	Explanation   string
}

// Date returns midnight UTC on the given calendar day and whether that day
// exists. Invalid days such as February 30 report false.
func Date(year int, month time.Month, day int) (time.Time, bool) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return t, t.Year() == year && t.Month() == month && t.Day() == day
}

// Civil strips the clock from t, keeping its calendar day.
func Civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ElapsedMonths counts whole months from event to observed. A partial final
// month is not counted and an event after observed yields zero.
func ElapsedMonths(event, observed time.Time) int {
	event, observed = Civil(event), Civil(observed)
	if event.After(observed) {
		return 0
	}

	months := (observed.Year()-event.Year())*12 + int(observed.Month()-event.Month())
	if observed.Day() < event.Day() {
		months--
	}
	return max(0, months)
}

// RawQuantity derives an unnormalized quantity in [1, 10].
func RawQuantity(day, month, elapsed int) int {
	raw := (day + month + elapsed) % 10
	if raw == 0 {
		return 10
	}
	return raw
}

// NormalizeQuantity maps raw onto PreferredQuantities. 4 and 9 have fixed
// targets; other values go to the nearest member, earliest on ties.
func NormalizeQuantity(raw int) int {
	switch raw {
	case 4:
		return 3
	case 9:
		return 8
	}

	best := PreferredQuantities[0]
	for _, n := range PreferredQuantities {
		if n == raw {
			return n
		}
		if abs(n-raw) < abs(best-raw) {
			best = n
		}
	}
	return best
}

// ConflictDays returns the event day and its transposed partner.
func ConflictDays(eventDay int) [2]int {
	if eventDay < 20 {
		return [2]int{eventDay, eventDay + 10}
	}
	return [2]int{eventDay, eventDay - 10}
}

// BuildSchedule scans forward from the observed month and collects count
// candidate dates strictly after observed. Candidates on a conflict day are
// moved to a neighbouring day; when the neighbour does not exist in that
// month the conflicting date is kept.
func BuildSchedule(event, observed time.Time, count int) ([]Entry, error) {
	if count <= 0 {
		return []Entry{}, nil
	}

	observed = Civil(observed)
	conflicts := ConflictDays(Civil(event).Day())

	entries := make([]Entry, 0, count)
	year, month := observed.Year(), observed.Month()

	for scanned := 0; scanned < maxScanMonths; scanned++ {
		for _, day := range CandidateDays {
			date, ok := Date(year, month, day)
			if !ok || !date.After(observed) {
				continue
			}

			if day == conflicts[0] || day == conflicts[1] {
				if alt, ok := Date(year, month, substituteDay(day)); ok {
					date = alt
				}
			}

			entries = append(entries, Entry{Date: date, Reason: ReasonFor(date.Day())})
			if len(entries) == count {
				return entries, nil
			}
		}

		if month == time.December {
			year, month = year+1, time.January
		} else {
			month++
		}
	}

	return entries, fmt.Errorf("%w after %d months with %d of %d entries", ErrScanExhausted, maxScanMonths, len(entries), count)
}

// Compute derives the full outcome for a reference event.
func Compute(event, observed time.Time, count int) (Outcome, error) {
	event = Civil(event)

	elapsed := ElapsedMonths(event, observed)
	raw := RawQuantity(event.Day(), int(event.Month()), elapsed)
	quantity := NormalizeQuantity(raw)

	entries, err := BuildSchedule(event, observed, count)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		ElapsedMonths: elapsed,
		RawQuantity:   raw,
		Quantity:      quantity,
		Schedule:      entries,
		Explanation:   Explanation(elapsed, quantity, len(entries) > 0),
	}, nil
}

func substituteDay(day int) int {
	for _, c := range CandidateDays {
		if c == day-1 {
			return day - 1
		}
	}
	return day + 1
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
