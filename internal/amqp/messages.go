package amqp

import (
	"encoding/json"
	"time"
)

// GenerationEvent announces that a filing generation was stored. It
// carries only identifiers; consumers fetch the full snapshot from the
// database.
type GenerationEvent struct {
	GenerationID   int64     `json:"generation_id"`
	OrganizationID int64     `json:"organization_id"`
	PeriodYear     int       `json:"period_year"`
	PeriodMonth    int       `json:"period_month"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewGenerationEvent creates an event for a stored generation.
func NewGenerationEvent(generationID, organizationID int64, year, month int) *GenerationEvent {
	return &GenerationEvent{
		GenerationID:   generationID,
		OrganizationID: organizationID,
		PeriodYear:     year,
		PeriodMonth:    month,
		Timestamp:      time.Now(),
	}
}

// ToJSON converts the event to JSON bytes.
func (e *GenerationEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// GenerationEventFromJSON parses an event from JSON bytes.
func GenerationEventFromJSON(data []byte) (*GenerationEvent, error) {
	var e GenerationEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
