package models

import (
	"encoding/json"
	"fmt"
)

// Коды типов сообщений протокола реального времени.
const (
	MsgInitiate = "i"
	MsgStart    = "s" // только сервер -> клиент
	MsgPause    = "p"
	MsgMove     = "m"
	MsgAccept   = "a"
	MsgDecline  = "d"
	MsgQuit     = "q"
)

// Message is the wire frame {"t": code, "d"?: string|number, "l"?: number[]}.
type Message struct {
	Type string          `json:"t"`
	Data json.RawMessage `json:"d,omitempty"`
	List []float64       `json:"l,omitempty"`
}

// DataString returns d when it is a JSON string or number.
func (m Message) DataString() (string, error) {
	if len(m.Data) == 0 {
		return "", fmt.Errorf("message %q has no payload", m.Type)
	}
	var s string
	if err := json.Unmarshal(m.Data, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(m.Data, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("message %q payload must be a string or number", m.Type)
}

// EncodeMessage builds a frame; data must be a string, a number or nil.
func EncodeMessage(msgType string, data any, list []float64) ([]byte, error) {
	m := Message{Type: msgType, List: list}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %q payload: %w", msgType, err)
		}
		m.Data = raw
	}
	return json.Marshal(m)
}
