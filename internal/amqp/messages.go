package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// SnapshotMessage announces that a new census snapshot was stored. It only
// carries the id; consumers read the records from the snapshot store.
type SnapshotMessage struct {
	SnapshotID  string    `json:"snapshot_id"`
	RecordCount int       `json:"record_count"`
	FetchedAt   time.Time `json:"fetched_at"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewSnapshotMessage creates an announcement stamped with the current time.
func NewSnapshotMessage(snapshotID string, recordCount int, fetchedAt time.Time) *SnapshotMessage {
	return &SnapshotMessage{
		SnapshotID:  snapshotID,
		RecordCount: recordCount,
		FetchedAt:   fetchedAt,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SnapshotMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotMessageFromJSON decodes and checks an announcement.
func SnapshotMessageFromJSON(data []byte) (*SnapshotMessage, error) {
	var msg SnapshotMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.SnapshotID == "" {
		return nil, errors.New("snapshot message without snapshot_id")
	}
	if msg.RecordCount < 0 {
		return nil, errors.New("snapshot message with negative record_count")
	}
	return &msg, nil
}
