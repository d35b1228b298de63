package progress

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestTracker(t *testing.T) {
	tracker := NewTracker()

	var receivedEvents []Event
	tracker.AddListener(func(event Event) {
		receivedEvents = append(receivedEvents, event)
	})

	tracker.Update(512, 2048, "Uploading...")
	tracker.Update(2048, 2048, "Uploading...")

	if len(receivedEvents) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(receivedEvents))
	}
	if receivedEvents[0].Percent != 25 {
		t.Errorf("Expected 25%%, got %f", receivedEvents[0].Percent)
	}
	if receivedEvents[1].Stage != StageUploading {
		t.Errorf("Expected uploading stage, got %s", receivedEvents[1].Stage)
	}

	// Errors are reported with the error stage
	tracker.SetError(context.Canceled)

	state := tracker.Current()
	if state.Stage != StageError {
		t.Errorf("Expected error stage, got %s", state.Stage)
	}
	if state.Error != context.Canceled.Error() {
		t.Errorf("Expected error %v, got %s", context.Canceled, state.Error)
	}
}

func TestTrackerComplete(t *testing.T) {
	tracker := NewTracker()
	tracker.Update(10, 100, "Uploading...")
	tracker.Complete("Upload complete")

	state := tracker.Current()
	if state.Stage != StageComplete {
		t.Errorf("Expected complete stage, got %s", state.Stage)
	}
	if state.Percent != 100 {
		t.Errorf("Expected 100%%, got %f", state.Percent)
	}
	if state.Error != "" {
		t.Errorf("Expected no error, got %s", state.Error)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		sent, total int64
		want        float64
	}{
		{0, 0, 0},
		{0, 100, 0},
		{1, 3, 33.3},
		{150, 100, 100},
	}
	for _, tt := range tests {
		if got := Percent(tt.sent, tt.total); got != tt.want {
			t.Errorf("Percent(%d, %d) = %f, want %f", tt.sent, tt.total, got, tt.want)
		}
	}
}

func TestEventJSON(t *testing.T) {
	event := Event{
		Stage:      StageUploading,
		BytesSent:  50,
		BytesTotal: 100,
		Percent:    50.0,
		Message:    "Uploading...",
		Timestamp:  time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}

	var unmarshaled Event
	if err := json.Unmarshal(data, &unmarshaled); err != nil {
		t.Fatalf("Failed to unmarshal event: %v", err)
	}

	if unmarshaled.Stage != event.Stage {
		t.Errorf("Expected stage %s, got %s", event.Stage, unmarshaled.Stage)
	}
	if unmarshaled.Percent != event.Percent {
		t.Errorf("Expected percent %f, got %f", event.Percent, unmarshaled.Percent)
	}
	if unmarshaled.BytesSent != event.BytesSent {
		t.Errorf("Expected bytes %d, got %d", event.BytesSent, unmarshaled.BytesSent)
	}
}

func TestListenerManagement(t *testing.T) {
	tracker := NewTracker()

	var receivedEvents []Event
	listener := func(event Event) {
		receivedEvents = append(receivedEvents, event)
	}
	tracker.AddListener(listener)

	tracker.Update(1, 2, "Test")
	if len(receivedEvents) != 1 {
		t.Errorf("Expected 1 event, got %d", len(receivedEvents))
	}

	tracker.RemoveListener(listener)

	tracker.Update(2, 2, "Test 2")
	if len(receivedEvents) != 1 {
		t.Errorf("Expected 1 event after removal, got %d", len(receivedEvents))
	}
}
