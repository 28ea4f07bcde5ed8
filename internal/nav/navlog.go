package nav

import (
	"fmt"
	"strings"
)

// Event categories written by the navigator.
const (
	CatNav      = "nav"      // start, done, fail, abort
	CatPhase    = "phase"    // transitions
	CatPlan     = "plan"     // search progress and results
	CatTraverse = "traverse" // waypoint arrivals and shortcuts
	CatRecover  = "recover"  // collisions and watchdog
)

// Event is one recorded navigation event.
type Event struct {
	Tick     int
	Unit     string // e.g. "U3"
	Category string
	Key      string
	Value    string
	NumVal   float64
}

// String formats the event as a fixed-width log line.
//
//	[T=042] U3   phase     change           search → traverse
func (e Event) String() string {
	return fmt.Sprintf("[T=%03d] %-4s %-9s %-16s %s",
		e.Tick, e.Unit, e.Category, e.Key, e.Value)
}

// EventLog collects structured navigation events. It is unbounded and
// machine-readable; tests and reports query it.
type EventLog struct {
	entries []Event
	verbose bool
}

// NewEventLog creates an EventLog. Verbose logs also keep per-tick motor
// samples.
func NewEventLog(verbose bool) *EventLog {
	return &EventLog{verbose: verbose}
}

// Add records a new event.
func (l *EventLog) Add(tick int, unit, category, key, value string, numVal float64) {
	l.entries = append(l.entries, Event{
		Tick:     tick,
		Unit:     unit,
		Category: category,
		Key:      key,
		Value:    value,
		NumVal:   numVal,
	})
}

// AddVerbose records an event only in verbose mode.
func (l *EventLog) AddVerbose(tick int, unit, category, key, value string, numVal float64) {
	if !l.verbose {
		return
	}
	l.Add(tick, unit, category, key, value, numVal)
}

// Entries returns all recorded events.
func (l *EventLog) Entries() []Event {
	return l.entries
}

// Filter returns events matching category and key; empty matches any.
func (l *EventLog) Filter(category, key string) []Event {
	var out []Event
	for _, e := range l.entries {
		if category != "" && e.Category != category {
			continue
		}
		if key != "" && e.Key != key {
			continue
		}
		out = append(out, e)
	}
	return out
}

// FilterUnit returns events of one unit.
func (l *EventLog) FilterUnit(unit string) []Event {
	var out []Event
	for _, e := range l.entries {
		if e.Unit == unit {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many events match category and key.
func (l *EventLog) Count(category, key string) int {
	return len(l.Filter(category, key))
}

// FirstOf returns the earliest event matching category+key.
func (l *EventLog) FirstOf(category, key string) (Event, bool) {
	for _, e := range l.entries {
		if e.Category == category && (key == "" || e.Key == key) {
			return e, true
		}
	}
	return Event{}, false
}

// LastOf returns the most recent event matching category+key.
func (l *EventLog) LastOf(category, key string) (Event, bool) {
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if e.Category == category && (key == "" || e.Key == key) {
			return e, true
		}
	}
	return Event{}, false
}

// HasEntry reports whether an event matches category, key and a value
// substring.
func (l *EventLog) HasEntry(category, key, valueSubstr string) bool {
	for _, e := range l.entries {
		if category != "" && e.Category != category {
			continue
		}
		if key != "" && e.Key != key {
			continue
		}
		if valueSubstr != "" && !strings.Contains(e.Value, valueSubstr) {
			continue
		}
		return true
	}
	return false
}

// Format returns the full log, one line per event.
func (l *EventLog) Format() string {
	var sb strings.Builder
	for _, e := range l.entries {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// PhaseTrail returns the sequence of phases one unit went through.
func (l *EventLog) PhaseTrail(unit string) []string {
	var out []string
	for _, e := range l.entries {
		if e.Unit != unit {
			continue
		}
		if e.Category == CatNav && e.Key == "start" {
			out = append(out, e.Value)
		}
		if e.Category == CatPhase && e.Key == "change" {
			if i := strings.LastIndex(e.Value, " → "); i >= 0 {
				out = append(out, e.Value[i+len(" → "):])
			}
		}
	}
	return out
}

// Summary returns counts per category and key.
func (l *EventLog) Summary() string {
	counts := map[string]int{}
	var keys []string
	for _, e := range l.entries {
		k := e.Category + "/" + e.Key
		if counts[k] == 0 {
			keys = append(keys, k)
		}
		counts[k]++
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %d events ---\n", len(l.entries))
	for _, k := range keys {
		fmt.Fprintf(&sb, "%-28s %d\n", k, counts[k])
	}
	return sb.String()
}
