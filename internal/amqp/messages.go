package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageTypeRefresh tags a request to resync the bank mirror.
const MessageTypeRefresh = "bank_refresh"

var errUnknownMessageType = errors.New("unknown message type")

// RefreshMessage asks the sync worker to mirror the upstream now. It carries
// no bank data; the worker always fetches the full set.
type RefreshMessage struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRefreshMessage creates a refresh request with a fresh ID.
func NewRefreshMessage(reason string) *RefreshMessage {
	return &RefreshMessage{
		ID:        uuid.NewString(),
		Type:      MessageTypeRefresh,
		Reason:    strings.TrimSpace(reason),
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RefreshMessageFromJSON parses a refresh request. A missing type is accepted
// as a refresh; any other type is rejected.
func RefreshMessageFromJSON(data []byte) (*RefreshMessage, error) {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		msg.Type = MessageTypeRefresh
	}
	if msg.Type != MessageTypeRefresh {
		return nil, fmt.Errorf("%w: %q", errUnknownMessageType, msg.Type)
	}
	return &msg, nil
}
