package amqp

import (
	"testing"
	"time"
)

func TestGenerationEventRoundTrip(t *testing.T) {
	event := NewGenerationEvent(7, 3, 2024, 11)
	if event.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}

	body, err := event.ToJSON()
	if err != nil {
		t.Fatal(err)
	}

	got, err := GenerationEventFromJSON(body)
	if err != nil {
		t.Fatal(err)
	}
	if got.GenerationID != 7 || got.OrganizationID != 3 || got.PeriodYear != 2024 || got.PeriodMonth != 11 {
		t.Errorf("round trip changed fields: %+v", got)
	}
	if !got.Timestamp.Equal(event.Timestamp.Truncate(time.Nanosecond)) && got.Timestamp.Unix() != event.Timestamp.Unix() {
		t.Errorf("timestamp mismatch: %v vs %v", got.Timestamp, event.Timestamp)
	}
}

func TestGenerationEventFromJSONRejectsGarbage(t *testing.T) {
	if _, err := GenerationEventFromJSON([]byte("not json")); err == nil {
		t.Error("expected error for malformed payload")
	}
}
