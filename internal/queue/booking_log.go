package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// BookingLogKeys are the events appended to the booking log.
var BookingLogKeys = []string{EventConfirmed, EventCancelled}

// BookingLog appends one human-readable line per lifecycle event to
// <dir>/booking.log.
type BookingLog struct {
	path string
	mu   sync.Mutex
}

func NewBookingLog(dir string) *BookingLog {
	if dir == "" {
		dir = "logs"
	}
	return &BookingLog{path: filepath.Join(dir, "booking.log")}
}

// Path is the file the log writes to.
func (l *BookingLog) Path() string { return l.path }

// Handle decodes a BookingEvent and appends it.
func (l *BookingLog) Handle(_ context.Context, body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.BookingID == "" || ev.Event == "" {
		return fmt.Errorf("event without booking id or name")
	}
	return l.append(formatLine(ev))
}

func formatLine(ev BookingEvent) string {
	return fmt.Sprintf("[%s] %s | booking_id=%s | reference=%s | kind=%s | tenant=%s | customer=%s | resource=%s | status=%s | start=%s | total=%s %s\n",
		ev.OccurredAt, ev.Event, ev.BookingID, ev.Reference, ev.Kind, ev.TenantID, ev.CustomerID,
		ev.ResourceID, ev.Status, ev.Start, ev.Total, ev.Currency)
}

func (l *BookingLog) append(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
