package signal

import (
	"encoding/json"
	"log"
	"time"

	"github.com/Mihijito/uvid-api/internal/journal"
	"github.com/Mihijito/uvid-api/internal/registry"
)

// Sender is the outbound half of the transport. Delivery is fire-and-forget:
// the router never learns whether a message arrived.
type Sender interface {
	// SendTo delivers an envelope to one address.
	SendTo(addr string, env Envelope)
	// Broadcast delivers an envelope to every member of a room except exclude.
	Broadcast(roomID, exclude string, env Envelope)
	// JoinRoom subscribes addr to room-scoped broadcasts.
	JoinRoom(roomID, addr string)
}

// Router translates transport events into registry operations and outbound
// messages. Peers are resolved by username, not address, so a client that
// reconnects and re-registers keeps receiving signaling under its name.
//
// Malformed or unresolvable input is dropped without feedback to the sender;
// nothing a single participant sends can fail another participant's session.
type Router struct {
	reg    *registry.Registry
	send   Sender
	events journal.Sink
}

// NewRouter creates a Router over the given registry and transport.
// The journal sink may be nil.
func NewRouter(reg *registry.Registry, send Sender, events journal.Sink) *Router {
	return &Router{
		reg:    reg,
		send:   send,
		events: events,
	}
}

// HandleEvent dispatches one decoded transport event from addr.
func (r *Router) HandleEvent(addr string, env Envelope) {
	switch env.Type {
	case EventCreateRoom:
		r.handleCreateRoom(addr, env.Payload)
	case EventJoinRoom:
		r.handleJoinRoom(addr, env.Payload)
	case EventCallRequest:
		r.handleCallRequest(addr, env.Payload)
	case EventCallResponse:
		r.handleCallResponse(addr, env.Payload)
	case EventICECandidate:
		r.handleCandidate(addr, env.Payload)
	case EventDisconnectUser:
		r.Disconnect(addr)
	default:
		log.Printf("signal: unknown event %q from %s", env.Type, addr)
	}
}

// handleCreateRoom registers the requester in the room and sends back the
// current member-username list. Unlike join-room it does not broadcast a
// user-joined announcement.
func (r *Router) handleCreateRoom(addr string, data []byte) {
	var p RoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		r.drop("", "malformed create-room payload")
		return
	}

	r.send.JoinRoom(p.RoomID, addr)
	r.reg.Join(p.Username, p.RoomID, addr)
	r.record(journal.Event{Kind: journal.KindJoin, RoomID: p.RoomID, Username: p.Username})
	log.Printf("signal: %s registered in room %s", p.Username, p.RoomID)

	r.sendUserList(addr, p.RoomID)
}

// handleJoinRoom registers the requester like create-room and additionally
// announces the new username to the rest of the room.
func (r *Router) handleJoinRoom(addr string, data []byte) {
	var p RoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		r.drop("", "malformed join-room payload")
		return
	}
	if p.Username == "" || p.RoomID == "" {
		r.drop(p.RoomID, "join-room missing username or roomId")
		return
	}

	r.send.JoinRoom(p.RoomID, addr)
	r.reg.Join(p.Username, p.RoomID, addr)
	r.record(journal.Event{Kind: journal.KindJoin, RoomID: p.RoomID, Username: p.Username})
	log.Printf("signal: %s joined room %s", p.Username, p.RoomID)

	r.sendUserList(addr, p.RoomID)

	env, err := newEnvelope(EventUserJoined, p.Username)
	if err != nil {
		return
	}
	r.send.Broadcast(p.RoomID, addr, env)
}

// handleCallRequest forwards an offer to the callee, resolved by username.
func (r *Router) handleCallRequest(addr string, data []byte) {
	var p CallRequest
	if err := json.Unmarshal(data, &p); err != nil {
		r.drop("", "malformed call-request payload")
		return
	}

	calleeAddr, ok := r.reg.AddrByUsername(p.Callee)
	if !ok {
		r.drop("", "call-request for unknown callee "+p.Callee)
		return
	}

	// The caller may be unregistered; the offer is still forwarded with an
	// empty caller username, matching the relay's historical behavior.
	caller, _ := r.reg.UserByAddr(addr)
	env, err := newEnvelope(EventCallOffer, CallOffer{
		CallerUsername: caller.Username,
		Offer:          p.Offer,
	})
	if err != nil {
		return
	}
	r.send.SendTo(calleeAddr, env)
}

// handleCallResponse forwards an answer back to the caller.
func (r *Router) handleCallResponse(addr string, data []byte) {
	var p CallResponse
	if err := json.Unmarshal(data, &p); err != nil {
		r.drop("", "malformed call-response payload")
		return
	}

	callerAddr, ok := r.reg.AddrByUsername(p.CallerUsername)
	if !ok {
		r.drop("", "call-response for unknown caller "+p.CallerUsername)
		return
	}

	callee, _ := r.reg.UserByAddr(addr)
	env, err := newEnvelope(EventCallAnswer, CallAnswer{
		CalleeUsername: callee.Username,
		Answer:         p.Answer,
	})
	if err != nil {
		return
	}
	r.send.SendTo(callerAddr, env)
}

// handleCandidate forwards an ICE candidate to the discoverer. Both sides
// must resolve: the discoverer by username and the sender by address, since
// the candidate is useless without knowing whose it is.
func (r *Router) handleCandidate(addr string, data []byte) {
	var p CandidateRequest
	if err := json.Unmarshal(data, &p); err != nil {
		r.drop("", "malformed ice-candidate payload")
		return
	}

	discovererAddr, ok := r.reg.AddrByUsername(p.Discoverer)
	if !ok {
		r.drop("", "ice candidate for unknown discoverer "+p.Discoverer)
		return
	}
	sender, ok := r.reg.UserByAddr(addr)
	if !ok {
		r.drop("", "ice candidate from unregistered sender")
		return
	}

	env, err := newEnvelope(EventNewICECandidate, Candidate{
		Correspondent: sender.Username,
		ICECandidate:  p.ICECandidate,
	})
	if err != nil {
		return
	}
	r.send.SendTo(discovererAddr, env)
}

// Disconnect unregisters addr and announces the departure to the rest of its
// room. Safe to call more than once per address; the second call finds no
// user and sends nothing.
func (r *Router) Disconnect(addr string) {
	user, ok := r.reg.Leave(addr)
	if !ok {
		return
	}
	r.record(journal.Event{Kind: journal.KindDisconnect, RoomID: user.RoomID, Username: user.Username})
	log.Printf("signal: %s left room %s", user.Username, user.RoomID)

	env, err := newEnvelope(EventUserDisconnected, user.Username)
	if err != nil {
		return
	}
	r.send.Broadcast(user.RoomID, addr, env)
}

// sendUserList sends the requester the room's current member usernames,
// including its own.
func (r *Router) sendUserList(addr, roomID string) {
	env, err := newEnvelope(EventInitUserList, r.reg.MemberUsernames(roomID))
	if err != nil {
		return
	}
	r.send.SendTo(addr, env)
}

func (r *Router) drop(roomID, detail string) {
	log.Printf("signal: dropped: %s", detail)
	r.record(journal.Event{Kind: journal.KindDrop, RoomID: roomID, Detail: detail})
}

func (r *Router) record(e journal.Event) {
	if r.events == nil {
		return
	}
	e.At = time.Now()
	r.events.Record(e)
}
