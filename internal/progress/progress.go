package progress

import (
	"encoding/json"
	"math"
	"reflect"
	"sync"
	"time"
)

// Stage represents the current stage of a transfer
type Stage string

const (
	StageInitializing Stage = "initializing"
	StageUploading    Stage = "uploading"
	StageComplete     Stage = "complete"
	StageError        Stage = "error"
)

// Event represents a progress event
type Event struct {
	Stage      Stage     `json:"stage"`
	BytesSent  int64     `json:"bytesSent"`
	BytesTotal int64     `json:"bytesTotal"`
	Percent    float64   `json:"percent"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Error      string    `json:"error,omitempty"`
}

// Tracker manages progress tracking
type Tracker struct {
	mu        sync.RWMutex
	stage     Stage
	sent      int64
	total     int64
	message   string
	err       error
	listeners []func(Event)
}

// NewTracker creates a new Tracker instance
func NewTracker() *Tracker {
	return &Tracker{
		stage:     StageInitializing,
		listeners: make([]func(Event), 0),
	}
}

// AddListener adds a new progress event listener
func (t *Tracker) AddListener(listener func(Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, listener)
}

// RemoveListener removes a progress event listener
func (t *Tracker) RemoveListener(listener func(Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	listenerPtr := reflect.ValueOf(listener).Pointer()
	for i := range t.listeners {
		if reflect.ValueOf(t.listeners[i]).Pointer() == listenerPtr {
			t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
			break
		}
	}
}

// Update records the number of bytes sent so far and notifies all listeners
func (t *Tracker) Update(sent, total int64, message string) {
	t.mu.Lock()
	t.stage = StageUploading
	t.sent = sent
	t.total = total
	t.message = message
	t.mu.Unlock()

	t.notifyListeners(t.event(""))
}

// Complete marks the transfer as finished
func (t *Tracker) Complete(message string) {
	t.mu.Lock()
	t.stage = StageComplete
	if t.total > 0 {
		t.sent = t.total
	}
	t.message = message
	t.mu.Unlock()

	t.notifyListeners(t.event(""))
}

// SetError sets an error state and notifies all listeners
func (t *Tracker) SetError(err error) {
	t.mu.Lock()
	t.stage = StageError
	t.err = err
	t.message = err.Error()
	t.mu.Unlock()

	t.notifyListeners(t.event(err.Error()))
}

func (t *Tracker) event(errMsg string) Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Event{
		Stage:      t.stage,
		BytesSent:  t.sent,
		BytesTotal: t.total,
		Percent:    Percent(t.sent, t.total),
		Message:    t.message,
		Timestamp:  time.Now(),
		Error:      errMsg,
	}
}

// notifyListeners sends an event to all registered listeners
func (t *Tracker) notifyListeners(event Event) {
	t.mu.RLock()
	listeners := make([]func(Event), len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.RUnlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Current returns the current progress state
func (t *Tracker) Current() Event {
	t.mu.RLock()
	errMsg := ""
	if t.err != nil {
		errMsg = t.err.Error()
	}
	t.mu.RUnlock()
	return t.event(errMsg)
}

// Percent returns sent/total as a 0-100 value rounded to one decimal.
func Percent(sent, total int64) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(sent) / float64(total) * 100
	if p > 100 {
		p = 100
	}
	return math.Round(p*10) / 10
}

// MarshalJSON implements json.Marshaler for Event
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Timestamp: e.Timestamp.Format(time.RFC3339),
		Alias:     (*Alias)(&e),
	})
}

// UnmarshalJSON implements json.Unmarshaler for Event
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339, aux.Timestamp)
	if err != nil {
		return err
	}
	e.Timestamp = t
	return nil
}
