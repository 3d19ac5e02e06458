package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Address names one end of a conversation: a role and, for clients, the
// station that sent or should receive the message.
type Address struct {
	Role    string `json:"role"`
	Station string `json:"station"`
}

func (a Address) String() string {
	if a.Station == "" {
		return a.Role
	}
	return a.Role + "/" + a.Station
}

// Envelope wraps every message on the fleet command and event topics. Keys
// are kept short since tick snapshots go out many times a second.
type Envelope struct {
	Version   int             `json:"v"`
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Src       Address         `json:"src"`
	Dst       Address         `json:"dst"`
	Timestamp time.Time       `json:"ts"`
	ExpiresAt time.Time       `json:"exp"`
	Tick      uint64          `json:"tick,omitempty"` // engine tick an event describes
	CorID     string          `json:"cor,omitempty"`
	Payload   json.RawMessage `json:"p"`
}

// RawHeader is decoded first so messages for other stations, expired
// messages and newer protocol versions are dropped without touching the payload.
type RawHeader struct {
	Version   int       `json:"v"`
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Dst       Address   `json:"dst"`
	ExpiresAt time.Time `json:"exp"`
}

func NewEnvelope(msgType string, src, dst Address, payload any) (*Envelope, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Envelope{
		Version:   Version,
		Type:      msgType,
		ID:        uuid.NewString(),
		Src:       src,
		Dst:       dst,
		Timestamp: now,
		ExpiresAt: now.Add(TTLFor(msgType)),
		Payload:   p,
	}, nil
}

// Reply builds a response addressed back to the sender of e and correlated
// with its id.
func (e *Envelope) Reply(msgType string, src Address, payload any) (*Envelope, error) {
	r, err := NewEnvelope(msgType, src, e.Src, payload)
	if err != nil {
		return nil, err
	}
	r.CorID = e.ID
	return r, nil
}

func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func (e *Envelope) DecodePayload(target any) error {
	return json.Unmarshal(e.Payload, target)
}
