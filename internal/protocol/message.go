package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"netauction-server/internal/domain/shared"
)

// Request actions (client to server)
const (
	ActionRegister      = "REGISTER"
	ActionLogin         = "LOGIN"
	ActionLogout        = "LOGOUT"
	ActionCreateAuction = "CREATE_AUCTION"
	ActionListAuctions  = "LIST_AUCTIONS"
	ActionAuctionDetail = "AUCTION_DETAIL"
	ActionBid           = "BID"
	ActionMyHistory     = "MY_HISTORY"
	ActionCancelAuction = "CANCEL_AUCTION"
	ActionBlockUser     = "BLOCK_USER"
	ActionViewLogs      = "VIEW_LOGS"

	// ActionUnknown tags error responses to frames whose action could not be
	// determined (malformed JSON, empty action).
	ActionUnknown = "UNKNOWN"
)

// ResponseSuffix marks a message as a response to the action it prefixes.
const ResponseSuffix = "_RESPONSE"

// Notifications (server to client, unsolicited)
const (
	NotifyNewBid        = "NEW_BID"
	NotifyOutbid        = "OUTBID"
	NotifyAuctionClosed = "AUCTION_CLOSED"
)

// Response status values carried in data.status
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Message is the protocol envelope: one JSON object per line in both
// directions. Whether an instance is a request, a response or a notification
// is determined by the action value alone.
type Message struct {
	Action string         `json:"action"`
	Token  string         `json:"token,omitempty"`
	Data   map[string]any `json:"data"`
}

// NewRequest creates a request message with an empty data payload.
func NewRequest(action string) *Message {
	return &Message{Action: action, Data: make(map[string]any)}
}

// NewSuccessResponse creates an OK response for the given request action.
func NewSuccessResponse(action, message string) *Message {
	return &Message{
		Action: action + ResponseSuffix,
		Data: map[string]any{
			"status":  StatusOK,
			"message": message,
		},
	}
}

// NewErrorResponse creates an ERROR response for the given request action.
func NewErrorResponse(action, message string) *Message {
	return &Message{
		Action: action + ResponseSuffix,
		Data: map[string]any{
			"status":  StatusError,
			"message": message,
		},
	}
}

// NewNotification creates an unsolicited server-to-client notification.
func NewNotification(name string) *Message {
	return &Message{Action: name, Data: make(map[string]any)}
}

// Parse decodes one JSON frame into a Message.
func Parse(line []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedMessage, err)
	}
	if msg.Data == nil {
		msg.Data = make(map[string]any)
	}
	return &msg, nil
}

// Encode serializes the message as a single JSON object without a trailing
// newline; the transport appends the frame delimiter.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// IsNotification reports whether the action is one of the fixed notification
// names.
func (m *Message) IsNotification() bool {
	switch m.Action {
	case NotifyNewBid, NotifyOutbid, NotifyAuctionClosed:
		return true
	}
	return false
}

// IsResponse reports whether the action carries the response suffix.
func (m *Message) IsResponse() bool {
	return strings.HasSuffix(m.Action, ResponseSuffix)
}

// IsRequest reports whether the message is neither a notification nor a
// response.
func (m *Message) IsRequest() bool {
	return !m.IsNotification() && !m.IsResponse()
}

// Set stores a data field and returns the message for chaining.
func (m *Message) Set(key string, value any) *Message {
	m.Data[key] = value
	return m
}

// Status returns data.status, empty if absent.
func (m *Message) Status() string {
	return m.String("status")
}

// IsOK reports whether the message is a success response.
func (m *Message) IsOK() bool {
	return m.Status() == StatusOK
}

// String returns a string data field, empty if absent or mistyped.
func (m *Message) String(key string) string {
	v, _ := m.Data[key].(string)
	return v
}

// Float returns a numeric data field. Decoded JSON numbers are float64;
// locally built messages may carry int values.
func (m *Message) Float(key string) (float64, bool) {
	switch v := m.Data[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Int returns a numeric data field truncated to int.
func (m *Message) Int(key string) (int, bool) {
	v, ok := m.Float(key)
	return int(v), ok
}

// Bool returns a boolean data field with a fallback default.
func (m *Message) Bool(key string, def bool) bool {
	if v, ok := m.Data[key].(bool); ok {
		return v
	}
	return def
}
