package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types published on hisaab mutations.
const (
	EventHisaabCreated = "hisaab.created"
	EventHisaabUpdated = "hisaab.updated"
	EventHisaabDeleted = "hisaab.deleted"
)

// HisaabEvent announces that an owner's hisaabs changed. It carries ids only;
// consumers load whatever they need from storage.
type HisaabEvent struct {
	Type      string    `json:"type"`
	HisaabID  string    `json:"hisaabId"`
	OwnerID   string    `json:"ownerId"`
	Timestamp time.Time `json:"timestamp"`
}

// NewHisaabEvent creates an event stamped with the current time.
func NewHisaabEvent(eventType, hisaabID, ownerID string) *HisaabEvent {
	return &HisaabEvent{
		Type:      eventType,
		HisaabID:  hisaabID,
		OwnerID:   ownerID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *HisaabEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// HisaabEventFromJSON decodes an event and checks it names an owner.
func HisaabEventFromJSON(data []byte) (*HisaabEvent, error) {
	var e HisaabEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.OwnerID == "" {
		return nil, fmt.Errorf("event without owner")
	}
	switch e.Type {
	case EventHisaabCreated, EventHisaabUpdated, EventHisaabDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	return &e, nil
}
