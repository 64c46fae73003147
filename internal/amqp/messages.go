package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotSyncMessage asks the export worker to push one stored snapshot to
// the progress sheet. The worker reloads the snapshot and skips the message
// when Version is no longer current.
type SnapshotSyncMessage struct {
	UserID    int64     `json:"userId"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSnapshotSyncMessage(userID, version int64) *SnapshotSyncMessage {
	return &SnapshotSyncMessage{
		UserID:    userID,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

func (m *SnapshotSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotSyncMessageFromJSON decodes and validates a message body.
func SnapshotSyncMessageFromJSON(data []byte) (*SnapshotSyncMessage, error) {
	var msg SnapshotSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID <= 0 || msg.Version <= 0 {
		return nil, fmt.Errorf("invalid snapshot sync message: user %d version %d", msg.UserID, msg.Version)
	}
	return &msg, nil
}
