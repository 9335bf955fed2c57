package signal

import "encoding/json"

// Inbound event names.
const (
	EventCreateRoom     = "create-room"
	EventJoinRoom       = "join-room"
	EventCallRequest    = "call-request"
	EventCallResponse   = "call-response"
	EventICECandidate   = "ice-candidate-request"
	EventDisconnectUser = "disconnect-user"
)

// Outbound event names.
const (
	EventInitUserList     = "init-user-list"
	EventUserJoined       = "user-joined"
	EventUserDisconnected = "user-disconnected"
	EventCallOffer        = "call-offer"
	EventCallAnswer       = "call-answer"
	EventNewICECandidate  = "new-ice-candidate"
)

// Envelope is the JSON structure multiplexing all signaling messages over
// one WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RoomPayload is sent by a client to create or join a room.
type RoomPayload struct {
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
}

// CallRequest asks the relay to forward an offer to the named callee.
//
// Offers, answers and ICE candidates are opaque to the relay: it never
// interprets session descriptors, so they stay json.RawMessage end to end
// and are forwarded byte for byte.
type CallRequest struct {
	Callee string          `json:"callee"`
	Offer  json.RawMessage `json:"offer"`
}

// CallOffer is the forwarded offer, unicast to the callee.
type CallOffer struct {
	CallerUsername string          `json:"callerUsername"`
	Offer          json.RawMessage `json:"offer"`
}

// CallResponse asks the relay to forward an answer back to the caller.
type CallResponse struct {
	CallerUsername string          `json:"callerUsername"`
	Answer         json.RawMessage `json:"answer"`
}

// CallAnswer is the forwarded answer, unicast to the caller.
type CallAnswer struct {
	CalleeUsername string          `json:"calleeUsername"`
	Answer         json.RawMessage `json:"answer"`
}

// CandidateRequest asks the relay to forward an ICE candidate to the peer
// that should discover it.
type CandidateRequest struct {
	Discoverer   string          `json:"discoverer"`
	ICECandidate json.RawMessage `json:"iceCandidate"`
}

// Candidate is the forwarded ICE candidate, unicast to the discoverer.
type Candidate struct {
	Correspondent string          `json:"correspondent"`
	ICECandidate  json.RawMessage `json:"iceCandidate"`
}

// newEnvelope marshals payload and wraps it in an Envelope.
func newEnvelope(eventType string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, Payload: data}, nil
}
