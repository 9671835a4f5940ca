package amqp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{-1, 1 * time.Second},
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
		{64, 30 * time.Second}, // no overflow
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestNewSnapshotMessage(t *testing.T) {
	fetched := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := NewSnapshotMessage("snap-1", 42, fetched)

	if msg.SnapshotID != "snap-1" {
		t.Errorf("NewSnapshotMessage() SnapshotID = %v, want snap-1", msg.SnapshotID)
	}
	if msg.RecordCount != 42 {
		t.Errorf("NewSnapshotMessage() RecordCount = %v, want 42", msg.RecordCount)
	}
	if !msg.FetchedAt.Equal(fetched) {
		t.Errorf("NewSnapshotMessage() FetchedAt = %v, want %v", msg.FetchedAt, fetched)
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("NewSnapshotMessage() Timestamp should be recent")
	}
}

func TestSnapshotMessage_JSON(t *testing.T) {
	msg := &SnapshotMessage{
		SnapshotID:  "snap-1",
		RecordCount: 7,
		FetchedAt:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Timestamp:   time.Date(2024, 1, 1, 12, 0, 5, 0, time.UTC),
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := SnapshotMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("SnapshotMessageFromJSON() error = %v", err)
	}
	if parsed.SnapshotID != msg.SnapshotID || parsed.RecordCount != msg.RecordCount {
		t.Errorf("Parsed = %+v, want %+v", parsed, msg)
	}
	if !parsed.FetchedAt.Equal(msg.FetchedAt) {
		t.Errorf("Parsed FetchedAt = %v, want %v", parsed.FetchedAt, msg.FetchedAt)
	}
}

func TestSnapshotMessage_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"snapshot_id":`},
		{"missing id", `{"record_count": 3}`},
		{"wrong type", `{"snapshot_id": "a", "record_count": "three"}`},
		{"negative count", `{"snapshot_id": "a", "record_count": -1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := SnapshotMessageFromJSON([]byte(tt.body)); err == nil {
				t.Error("SnapshotMessageFromJSON() should fail")
			}
		})
	}
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (a *fakeAck) Ack(bool) error { a.acked = true; return nil }
func (a *fakeAck) Nack(_ bool, requeue bool) error {
	a.nacked, a.requeued = true, requeue
	return nil
}

func TestProcess(t *testing.T) {
	ctx := context.Background()
	ok := func(*SnapshotMessage) error { return nil }
	failing := func(*SnapshotMessage) error { return errors.New("busy") }
	valid := []byte(`{"snapshot_id":"s1","record_count":1}`)

	a := &fakeAck{}
	process(ctx, valid, a, ok)
	if !a.acked || a.nacked {
		t.Errorf("valid message: got %+v, want ack", a)
	}

	a = &fakeAck{}
	process(ctx, []byte(`garbage`), a, ok)
	if !a.nacked || a.requeued {
		t.Errorf("malformed message: got %+v, want nack without requeue", a)
	}

	a = &fakeAck{}
	process(ctx, valid, a, failing)
	if !a.nacked || !a.requeued {
		t.Errorf("handler error: got %+v, want nack with requeue", a)
	}
}
