package signal

import (
	"encoding/json"
	"testing"

	"github.com/Mihijito/uvid-api/internal/journal"
	"github.com/Mihijito/uvid-api/internal/registry"
)

type sentMsg struct {
	addr string
	env  Envelope
}

type broadcastMsg struct {
	roomID  string
	exclude string
	env     Envelope
}

// fakeSender records outbound traffic so tests can assert on it.
type fakeSender struct {
	sent       []sentMsg
	broadcasts []broadcastMsg
	joins      []string
}

func (f *fakeSender) SendTo(addr string, env Envelope) {
	f.sent = append(f.sent, sentMsg{addr: addr, env: env})
}

func (f *fakeSender) Broadcast(roomID, exclude string, env Envelope) {
	f.broadcasts = append(f.broadcasts, broadcastMsg{roomID: roomID, exclude: exclude, env: env})
}

func (f *fakeSender) JoinRoom(roomID, addr string) {
	f.joins = append(f.joins, roomID+"/"+addr)
}

func newTestRouter() (*Router, *registry.Registry, *fakeSender, *journal.Store) {
	reg := registry.New()
	send := &fakeSender{}
	events := journal.NewStore(100)
	return NewRouter(reg, send, events), reg, send, events
}

func mustPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func roomEvent(t *testing.T, eventType, username, roomID string) Envelope {
	t.Helper()
	return Envelope{
		Type:    eventType,
		Payload: mustPayload(t, RoomPayload{Username: username, RoomID: roomID}),
	}
}

func TestCreateRoomSendsUserList(t *testing.T) {
	router, reg, send, _ := newTestRouter()

	router.HandleEvent("addr1", roomEvent(t, EventCreateRoom, "alice", "room1"))

	if len(send.joins) != 1 || send.joins[0] != "room1/addr1" {
		t.Errorf("expected transport room join, got %v", send.joins)
	}
	if _, ok := reg.UserByAddr("addr1"); !ok {
		t.Fatal("expected alice to be registered")
	}

	if len(send.sent) != 1 {
		t.Fatalf("expected 1 unicast, got %d", len(send.sent))
	}
	msg := send.sent[0]
	if msg.addr != "addr1" || msg.env.Type != EventInitUserList {
		t.Fatalf("expected init-user-list to addr1, got %+v", msg)
	}
	var names []string
	if err := json.Unmarshal(msg.env.Payload, &names); err != nil {
		t.Fatalf("unmarshal user list: %v", err)
	}
	if len(names) != 1 || names[0] != "alice" {
		t.Errorf("expected [alice], got %v", names)
	}

	// create-room announces nothing to the room.
	if len(send.broadcasts) != 0 {
		t.Errorf("expected no broadcast, got %v", send.broadcasts)
	}
}

func TestJoinRoomAnnouncesAndListsJoiner(t *testing.T) {
	router, _, send, _ := newTestRouter()

	router.HandleEvent("addr1", roomEvent(t, EventCreateRoom, "alice", "room1"))
	send.sent = nil

	router.HandleEvent("addr2", roomEvent(t, EventJoinRoom, "bob", "room1"))

	// Bob gets the full list, himself included, in join order.
	if len(send.sent) != 1 {
		t.Fatalf("expected 1 unicast, got %d", len(send.sent))
	}
	var names []string
	if err := json.Unmarshal(send.sent[0].env.Payload, &names); err != nil {
		t.Fatalf("unmarshal user list: %v", err)
	}
	if len(names) != 2 || names[0] != "alice" || names[1] != "bob" {
		t.Errorf("expected [alice bob], got %v", names)
	}

	// The rest of the room is told about bob, excluding bob himself.
	if len(send.broadcasts) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(send.broadcasts))
	}
	b := send.broadcasts[0]
	if b.roomID != "room1" || b.exclude != "addr2" || b.env.Type != EventUserJoined {
		t.Fatalf("unexpected broadcast %+v", b)
	}
	var joined string
	if err := json.Unmarshal(b.env.Payload, &joined); err != nil {
		t.Fatalf("unmarshal user-joined: %v", err)
	}
	if joined != "bob" {
		t.Errorf("expected bob, got %q", joined)
	}
}

func TestJoinRoomRequiresUsernameAndRoom(t *testing.T) {
	router, reg, send, _ := newTestRouter()

	router.HandleEvent("addr1", roomEvent(t, EventJoinRoom, "", "room1"))
	router.HandleEvent("addr1", roomEvent(t, EventJoinRoom, "alice", ""))

	if reg.UserCount() != 0 {
		t.Error("expected no registrations")
	}
	if len(send.sent) != 0 || len(send.broadcasts) != 0 {
		t.Error("expected no outbound messages")
	}
}

func TestCallRequestForwardsOfferVerbatim(t *testing.T) {
	router, _, send, _ := newTestRouter()
	router.HandleEvent("addr1", roomEvent(t, EventCreateRoom, "alice", "room1"))
	router.HandleEvent("addr2", roomEvent(t, EventJoinRoom, "bob", "room1"))
	send.sent = nil

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0\r\no=- 46117 2 IN IP4 127.0.0.1"}`)
	router.HandleEvent("addr1", Envelope{
		Type:    EventCallRequest,
		Payload: mustPayload(t, CallRequest{Callee: "bob", Offer: offer}),
	})

	if len(send.sent) != 1 {
		t.Fatalf("expected 1 unicast, got %d", len(send.sent))
	}
	msg := send.sent[0]
	if msg.addr != "addr2" || msg.env.Type != EventCallOffer {
		t.Fatalf("expected call-offer to addr2, got %+v", msg)
	}
	var co CallOffer
	if err := json.Unmarshal(msg.env.Payload, &co); err != nil {
		t.Fatalf("unmarshal call-offer: %v", err)
	}
	if co.CallerUsername != "alice" {
		t.Errorf("expected caller alice, got %q", co.CallerUsername)
	}
	if string(co.Offer) != string(offer) {
		t.Errorf("offer not forwarded byte-for-byte: %s", co.Offer)
	}
}

func TestCallRequestUnknownCalleeDropsSilently(t *testing.T) {
	router, _, send, events := newTestRouter()
	router.HandleEvent("addr1", roomEvent(t, EventCreateRoom, "alice", "room1"))
	send.sent = nil

	router.HandleEvent("addr1", Envelope{
		Type:    EventCallRequest,
		Payload: mustPayload(t, CallRequest{Callee: "ghost", Offer: json.RawMessage(`{}`)}),
	})

	if len(send.sent) != 0 || len(send.broadcasts) != 0 {
		t.Error("expected no delivery and no error to the caller")
	}
	recent := events.Recent(10)
	found := false
	for _, e := range recent {
		if e.Kind == journal.KindDrop {
			found = true
		}
	}
	if !found {
		t.Error("expected the drop to be journaled")
	}
}

func TestCallResponseForwardsAnswer(t *testing.T) {
	router, _, send, _ := newTestRouter()
	router.HandleEvent("addr1", roomEvent(t, EventCreateRoom, "alice", "room1"))
	router.HandleEvent("addr2", roomEvent(t, EventJoinRoom, "bob", "room1"))
	send.sent = nil

	answer := json.RawMessage(`{"type":"answer","sdp":"v=0"}`)
	router.HandleEvent("addr2", Envelope{
		Type:    EventCallResponse,
		Payload: mustPayload(t, CallResponse{CallerUsername: "alice", Answer: answer}),
	})

	if len(send.sent) != 1 {
		t.Fatalf("expected 1 unicast, got %d", len(send.sent))
	}
	msg := send.sent[0]
	if msg.addr != "addr1" || msg.env.Type != EventCallAnswer {
		t.Fatalf("expected call-answer to addr1, got %+v", msg)
	}
	var ca CallAnswer
	if err := json.Unmarshal(msg.env.Payload, &ca); err != nil {
		t.Fatalf("unmarshal call-answer: %v", err)
	}
	if ca.CalleeUsername != "bob" || string(ca.Answer) != string(answer) {
		t.Errorf("unexpected call-answer %+v", ca)
	}
}

func TestCandidateForwardedToDiscoverer(t *testing.T) {
	router, _, send, _ := newTestRouter()
	router.HandleEvent("addr1", roomEvent(t, EventCreateRoom, "alice", "room1"))
	router.HandleEvent("addr2", roomEvent(t, EventJoinRoom, "bob", "room1"))
	send.sent = nil

	cand := json.RawMessage(`{"candidate":"candidate:1 1 UDP 2122252543 192.0.2.1 54400 typ host"}`)
	router.HandleEvent("addr2", Envelope{
		Type:    EventICECandidate,
		Payload: mustPayload(t, CandidateRequest{Discoverer: "alice", ICECandidate: cand}),
	})

	if len(send.sent) != 1 {
		t.Fatalf("expected 1 unicast, got %d", len(send.sent))
	}
	msg := send.sent[0]
	if msg.addr != "addr1" || msg.env.Type != EventNewICECandidate {
		t.Fatalf("expected new-ice-candidate to addr1, got %+v", msg)
	}
	var c Candidate
	if err := json.Unmarshal(msg.env.Payload, &c); err != nil {
		t.Fatalf("unmarshal candidate: %v", err)
	}
	if c.Correspondent != "bob" || string(c.ICECandidate) != string(cand) {
		t.Errorf("unexpected candidate %+v", c)
	}
}

func TestCandidateFromUnregisteredSenderDropped(t *testing.T) {
	router, _, send, _ := newTestRouter()
	router.HandleEvent("addr1", roomEvent(t, EventCreateRoom, "alice", "room1"))
	send.sent = nil

	router.HandleEvent("stranger", Envelope{
		Type:    EventICECandidate,
		Payload: mustPayload(t, CandidateRequest{Discoverer: "alice", ICECandidate: json.RawMessage(`{}`)}),
	})

	if len(send.sent) != 0 {
		t.Errorf("expected no delivery, got %v", send.sent)
	}
}

func TestDisconnectBroadcastsDeparture(t *testing.T) {
	router, reg, send, _ := newTestRouter()
	router.HandleEvent("addr1", roomEvent(t, EventCreateRoom, "alice", "room1"))
	router.HandleEvent("addr2", roomEvent(t, EventJoinRoom, "bob", "room1"))
	send.broadcasts = nil

	router.Disconnect("addr1")

	if len(send.broadcasts) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(send.broadcasts))
	}
	b := send.broadcasts[0]
	if b.roomID != "room1" || b.exclude != "addr1" || b.env.Type != EventUserDisconnected {
		t.Fatalf("unexpected broadcast %+v", b)
	}
	var departed string
	if err := json.Unmarshal(b.env.Payload, &departed); err != nil {
		t.Fatalf("unmarshal user-disconnected: %v", err)
	}
	if departed != "alice" {
		t.Errorf("expected alice, got %q", departed)
	}

	for _, addr := range reg.Members("room1") {
		if addr == "addr1" {
			t.Error("expected addr1 to be removed from room1")
		}
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	router, _, send, _ := newTestRouter()
	router.HandleEvent("addr1", roomEvent(t, EventCreateRoom, "alice", "room1"))
	send.broadcasts = nil

	router.Disconnect("addr1")
	router.Disconnect("addr1")

	if len(send.broadcasts) != 1 {
		t.Errorf("expected a single departure broadcast, got %d", len(send.broadcasts))
	}
}

func TestExplicitDisconnectEvent(t *testing.T) {
	router, reg, _, _ := newTestRouter()
	router.HandleEvent("addr1", roomEvent(t, EventCreateRoom, "alice", "room1"))

	router.HandleEvent("addr1", Envelope{Type: EventDisconnectUser})

	if _, ok := reg.UserByAddr("addr1"); ok {
		t.Error("expected alice to be unregistered")
	}
}

func TestMalformedPayloadsDoNotCrash(t *testing.T) {
	router, reg, send, _ := newTestRouter()

	bad := json.RawMessage(`{"not json`)
	for _, eventType := range []string{
		EventCreateRoom, EventJoinRoom, EventCallRequest, EventCallResponse, EventICECandidate,
	} {
		router.HandleEvent("addr1", Envelope{Type: eventType, Payload: bad})
	}
	router.HandleEvent("addr1", Envelope{Type: "no-such-event"})

	if reg.UserCount() != 0 {
		t.Error("expected no registrations from malformed input")
	}
	if len(send.sent) != 0 || len(send.broadcasts) != 0 {
		t.Error("expected no outbound messages from malformed input")
	}
}
