package protocol

import "time"

const (
	CommandTTL    = 30 * time.Second
	SnapshotTTL   = 5 * time.Second
	ReplyTTL      = time.Minute
	CompletionTTL = 10 * time.Minute
)

// TTLFor returns how long a message of msgType stays actionable. A tick
// snapshot is superseded within seconds; a completion is kept long enough
// for a reconnecting client to learn about it.
func TTLFor(msgType string) time.Duration {
	switch msgType {
	case TypeSpawn, TypeAssign, TypeSelect, TypeReplan:
		return CommandTTL
	case TypeTick:
		return SnapshotTTL
	case TypeTaskCompleted:
		return CompletionTTL
	default:
		return ReplyTTL
	}
}

func expired(exp, now time.Time) bool {
	return !exp.IsZero() && now.After(exp)
}

// Expired reports whether e is past its expiry at now. A zero expiry never expires.
func (e *Envelope) Expired(now time.Time) bool { return expired(e.ExpiresAt, now) }

func (h *RawHeader) Expired(now time.Time) bool { return expired(h.ExpiresAt, now) }
