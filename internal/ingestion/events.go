package ingestion

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultEventCapacity is the number of progress events kept in memory.
const DefaultEventCapacity = 500

// Event is a human-readable progress message of a sync run.
type Event struct {
	Time    int64  `json:"time"` // ms
	Mint    string `json:"mint"`
	RunID   string `json:"run_id"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// EventLog is a bounded ring of recent progress events.
type EventLog struct {
	mu     sync.Mutex
	events []Event
	next   int
	full   bool
}

// NewEventLog creates a ring holding up to capacity events.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &EventLog{events: make([]Event, capacity)}
}

// Add appends e, evicting the oldest event when full.
func (l *EventLog) Add(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[l.next] = e
	l.next = (l.next + 1) % len(l.events)
	if l.next == 0 {
		l.full = true
	}
}

// Recent returns up to n most recent events for mint, oldest first.
// An empty mint matches every event; n <= 0 returns all.
func (l *EventLog) Recent(mint string, n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var ordered []Event
	if l.full {
		ordered = append(ordered, l.events[l.next:]...)
	}
	ordered = append(ordered, l.events[:l.next]...)

	var out []Event
	for _, e := range ordered {
		if mint == "" || e.Mint == mint {
			out = append(out, e)
		}
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// Record logs msg on entry and keeps it as a progress event. The mint and
// run_id fields of the entry identify the run. Safe on a nil log.
func (l *EventLog) Record(entry *logrus.Entry, level logrus.Level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	entry.Log(level, msg)
	if l == nil {
		return
	}
	mint, _ := entry.Data["mint"].(string)
	runID, _ := entry.Data["run_id"].(string)
	l.Add(Event{
		Time:    time.Now().UnixMilli(),
		Mint:    mint,
		RunID:   runID,
		Level:   level.String(),
		Message: msg,
	})
}
