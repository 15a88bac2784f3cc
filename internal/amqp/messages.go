package amqp

import (
	"encoding/json"
	"time"
)

// Flush trigger reasons.
const (
	ReasonMutationEnqueued     = "mutation_enqueued"
	ReasonConnectivityRegained = "connectivity_regained"
	ReasonManual               = "manual"
)

// SyncTriggerMessage asks the sync worker to flush one user's mutation queue.
// It carries no mutation data; the worker reads the queue itself, so a lost or
// duplicated message costs nothing.
type SyncTriggerMessage struct {
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSyncTriggerMessage creates a trigger for the given user and reason.
func NewSyncTriggerMessage(userID, reason string) *SyncTriggerMessage {
	return &SyncTriggerMessage{
		UserID:    userID,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *SyncTriggerMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncTriggerMessageFromJSON creates a message from JSON bytes.
func SyncTriggerMessageFromJSON(data []byte) (*SyncTriggerMessage, error) {
	var msg SyncTriggerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
