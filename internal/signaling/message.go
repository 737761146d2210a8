// Package signaling implements the WebSocket exchange of SDP
// descriptions and ICE candidates between a host and a single guest.
// Payloads are opaque: this package moves them, it never parses them.
package signaling

// MessageType identifies the kind of signaling message.
type MessageType string

const (
	MsgTypeOffer     MessageType = "offer"
	MsgTypeAnswer    MessageType = "answer"
	MsgTypeCandidate MessageType = "candidate"
	MsgTypeBye       MessageType = "bye"
)

// Candidate carries one ICE candidate in signaled form.
type Candidate struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex"`
}

// Message is the JSON structure exchanged over the WebSocket.
type Message struct {
	Type      MessageType `json:"type"`
	SDP       string      `json:"sdp,omitempty"`
	Candidate *Candidate  `json:"candidate,omitempty"`
}
