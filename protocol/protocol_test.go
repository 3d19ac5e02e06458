package protocol

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	src := Address{Role: RoleClient, Station: "dispatch-ui"}
	dst := Address{Role: RoleCore, Station: "fleetcore"}

	env, err := NewEnvelope(TypeAssign, src, dst, &Assign{RobotID: 3, Dest: 12})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}

	if env.Version != Version {
		t.Errorf("version = %d, want %d", env.Version, Version)
	}
	if env.Src != src {
		t.Errorf("src = %+v, want %+v", env.Src, src)
	}
	if env.ID == "" {
		t.Error("ID should not be empty")
	}
	if got := env.ExpiresAt.Sub(env.Timestamp); got != TTLFor(TypeAssign) {
		t.Errorf("ttl = %v, want %v", got, TTLFor(TypeAssign))
	}

	data, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var decoded Envelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.ID != env.ID || decoded.Type != TypeAssign {
		t.Errorf("decoded = %+v", decoded)
	}

	var p Assign
	if err := decoded.DecodePayload(&p); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if p.RobotID != 3 || p.Dest != 12 {
		t.Errorf("payload = %+v", p)
	}
}

func TestReply(t *testing.T) {
	client := Address{Role: RoleClient, Station: "dispatch-ui"}
	core := Address{Role: RoleCore, Station: "fleetcore"}
	req, err := NewEnvelope(TypeAssign, client, core, &Assign{RobotID: 1, Dest: 2})
	if err != nil {
		t.Fatal(err)
	}
	reply, err := req.Reply(TypeAck, core, &Ack{RobotID: 1, Status: "task_assigned"})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply.CorID != req.ID {
		t.Errorf("cor = %q, want %q", reply.CorID, req.ID)
	}
	if reply.Dst != client || reply.Src != core {
		t.Errorf("reply routed %v -> %v", reply.Src, reply.Dst)
	}
	if client.String() != "client/dispatch-ui" {
		t.Errorf("address string = %q", client.String())
	}
}

func TestExpiry(t *testing.T) {
	now := time.Now().UTC()
	env := &Envelope{ExpiresAt: now.Add(-1 * time.Minute)}
	if !env.Expired(now) {
		t.Error("expected expired envelope to be detected")
	}
	env.ExpiresAt = now.Add(10 * time.Minute)
	if env.Expired(now) {
		t.Error("expected future-expiry envelope to not be expired")
	}
	env.ExpiresAt = time.Time{}
	if env.Expired(now) {
		t.Error("expected zero-expiry envelope to not be expired")
	}
}

func TestTTLFor(t *testing.T) {
	if ttl := TTLFor(TypeTick); ttl != 5*time.Second {
		t.Errorf("tick TTL = %v, want 5s", ttl)
	}
	if ttl := TTLFor(TypeTaskCompleted); ttl != 10*time.Minute {
		t.Errorf("task_completed TTL = %v, want 10m", ttl)
	}
	if ttl := TTLFor("unknown.type"); ttl != ReplyTTL {
		t.Errorf("unknown TTL = %v, want %v", ttl, ReplyTTL)
	}
}

func encode(t *testing.T, msgType string, dst Address, payload any) []byte {
	t.Helper()
	env, err := NewEnvelope(msgType, Address{Role: RoleClient, Station: "test"}, dst, payload)
	if err != nil {
		t.Fatal(err)
	}
	data, err := env.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestIngestorDispatch(t *testing.T) {
	h := &testHandler{}
	ing := NewIngestor(h, nil)

	ing.HandleRaw(encode(t, TypeSpawn, Address{Role: RoleCore}, &Spawn{Vertex: 4}))
	ing.HandleRaw(encode(t, TypeSelect, Address{Role: RoleCore}, &Select{RobotID: 2, Selected: true}))
	ing.HandleRaw([]byte(`{not json`))
	ing.HandleRaw(encode(t, "fleet.teleport", Address{Role: RoleCore}, &Spawn{}))

	if h.spawn == nil || h.spawn.Vertex != 4 {
		t.Errorf("spawn = %+v", h.spawn)
	}
	if h.sel == nil || h.sel.RobotID != 2 || !h.sel.Selected {
		t.Errorf("select = %+v", h.sel)
	}
	if got := ing.Dropped(); got != 2 {
		t.Errorf("dropped = %d, want 2", got)
	}
}

func TestIngestorFilter(t *testing.T) {
	h := &testHandler{}
	ing := NewIngestor(h, StationFilter("fleetcore"))

	ing.HandleRaw(encode(t, TypeSpawn, Address{Role: RoleCore, Station: "other"}, &Spawn{Vertex: 1}))
	if h.spawn != nil {
		t.Fatal("message for another station should be filtered")
	}
	if ing.Dropped() != 0 {
		t.Error("filtered messages should not count as dropped")
	}
	ing.HandleRaw(encode(t, TypeSpawn, Address{Role: RoleCore, Station: Broadcast}, &Spawn{Vertex: 1}))
	if h.spawn == nil {
		t.Fatal("broadcast should pass the filter")
	}
}

func TestIngestorDropsExpired(t *testing.T) {
	h := &testHandler{}
	ing := NewIngestor(h, nil)

	env, _ := NewEnvelope(TypeSpawn, Address{Role: RoleClient}, Address{Role: RoleCore}, &Spawn{Vertex: 1})
	env.ExpiresAt = time.Now().UTC().Add(-1 * time.Minute)
	data, _ := env.Encode()
	ing.HandleRaw(data)

	if h.spawn != nil {
		t.Error("expected handler to NOT be called for expired message")
	}
	if ing.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", ing.Dropped())
	}
}

func TestIngestorDropsNewerVersion(t *testing.T) {
	h := &testHandler{}
	ing := NewIngestor(h, nil)

	env, _ := NewEnvelope(TypeSpawn, Address{Role: RoleClient}, Address{Role: RoleCore}, &Spawn{Vertex: 1})
	env.Version = Version + 1
	data, _ := env.Encode()
	ing.HandleRaw(data)

	if h.spawn != nil {
		t.Error("message from a newer protocol version should be dropped")
	}
}

func TestStationFilter(t *testing.T) {
	f := StationFilter("fleetcore")
	cases := map[string]bool{"fleetcore": true, Broadcast: true, "": true, "fleetcore-2": false}
	for station, want := range cases {
		if got := f(&RawHeader{Dst: Address{Station: station}}); got != want {
			t.Errorf("station %q: got %v, want %v", station, got, want)
		}
	}
}

func TestWireFormatKeys(t *testing.T) {
	data := encode(t, TypeTick, Address{Role: RoleClient, Station: Broadcast}, &Tick{Tick: 7})

	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"v", "type", "id", "src", "dst", "ts", "exp", "p"} {
		if _, ok := m[k]; !ok {
			t.Errorf("expected key %q in wire format", k)
		}
	}
	for _, k := range []string{"version", "payload", "timestamp", "expires_at"} {
		if _, ok := m[k]; ok {
			t.Errorf("unexpected long key %q in wire format", k)
		}
	}
}

// testHandler records the payloads it receives.
type testHandler struct {
	NoOpHandler
	spawn *Spawn
	sel   *Select
}

func (h *testHandler) HandleSpawn(_ *Envelope, p *Spawn)   { h.spawn = p }
func (h *testHandler) HandleSelect(_ *Envelope, p *Select) { h.sel = p }
