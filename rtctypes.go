package crtc

import (
	"github.com/pion/webrtc/v3"
)

// SDPType categorizes a SessionDescription.
type SDPType int

const (
	SDPTypeOffer SDPType = iota
	SDPTypePranswer
	SDPTypeAnswer
	SDPTypeRollback
)

func (t SDPType) String() string {
	switch t {
	case SDPTypeOffer:
		return "offer"
	case SDPTypePranswer:
		return "pranswer"
	case SDPTypeAnswer:
		return "answer"
	case SDPTypeRollback:
		return "rollback"
	default:
		return "unknown"
	}
}

// SessionDescription is an SDP blob plus its type. The SDP text is
// opaque to this package; it is produced and consumed by the engine.
type SessionDescription struct {
	Type SDPType
	SDP  string
}

// ICECandidate is a gathered candidate in the form it is signaled in.
type ICECandidate struct {
	Candidate     string
	SDPMid        string
	SDPMLineIndex uint16
}

// ICEServer describes one STUN or TURN server.
type ICEServer struct {
	URLs           []string
	Username       string
	Credential     string
	CredentialType string
}

// ICETransportPolicy restricts which candidates the engine may use.
type ICETransportPolicy int

const (
	ICETransportPolicyAll ICETransportPolicy = iota
	ICETransportPolicyRelay
)

// BundlePolicy selects the engine's media bundling behavior.
type BundlePolicy int

const (
	BundlePolicyBalanced BundlePolicy = iota
	BundlePolicyMaxBundle
	BundlePolicyMaxCompat
)

// RTCPMuxPolicy selects RTP/RTCP multiplexing behavior.
type RTCPMuxPolicy int

const (
	RTCPMuxPolicyNegotiate RTCPMuxPolicy = iota
	RTCPMuxPolicyRequire
)

// Configuration parameterizes a PeerConnection.
type Configuration struct {
	ICEServers           []ICEServer
	ICETransportPolicy   ICETransportPolicy
	BundlePolicy         BundlePolicy
	RTCPMuxPolicy        RTCPMuxPolicy
	ICECandidatePoolSize uint8
}

// SignalingState mirrors the engine's signaling state machine.
type SignalingState int

const (
	SignalingStateStable SignalingState = iota
	SignalingStateHaveLocalOffer
	SignalingStateHaveLocalPranswer
	SignalingStateHaveRemoteOffer
	SignalingStateHaveRemotePranswer
	SignalingStateClosed
)

func (s SignalingState) String() string {
	switch s {
	case SignalingStateStable:
		return "stable"
	case SignalingStateHaveLocalOffer:
		return "have-local-offer"
	case SignalingStateHaveLocalPranswer:
		return "have-local-pranswer"
	case SignalingStateHaveRemoteOffer:
		return "have-remote-offer"
	case SignalingStateHaveRemotePranswer:
		return "have-remote-pranswer"
	case SignalingStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ICEConnectionState mirrors the engine's ICE connection state machine.
type ICEConnectionState int

const (
	ICEConnectionStateNew ICEConnectionState = iota
	ICEConnectionStateChecking
	ICEConnectionStateConnected
	ICEConnectionStateCompleted
	ICEConnectionStateFailed
	ICEConnectionStateDisconnected
	ICEConnectionStateClosed
)

func (s ICEConnectionState) String() string {
	switch s {
	case ICEConnectionStateNew:
		return "new"
	case ICEConnectionStateChecking:
		return "checking"
	case ICEConnectionStateConnected:
		return "connected"
	case ICEConnectionStateCompleted:
		return "completed"
	case ICEConnectionStateFailed:
		return "failed"
	case ICEConnectionStateDisconnected:
		return "disconnected"
	case ICEConnectionStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ICEGatheringState mirrors the engine's candidate gathering progress.
type ICEGatheringState int

const (
	ICEGatheringStateNew ICEGatheringState = iota
	ICEGatheringStateGathering
	ICEGatheringStateComplete
)

func (s ICEGatheringState) String() string {
	switch s {
	case ICEGatheringStateNew:
		return "new"
	case ICEGatheringStateGathering:
		return "gathering"
	case ICEGatheringStateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// OfferOptions tunes CreateOffer.
type OfferOptions struct {
	VoiceActivityDetection bool
	ICERestart             bool
}

// AnswerOptions tunes CreateAnswer.
type AnswerOptions struct {
	VoiceActivityDetection bool
}

// DataChannelInit configures CreateDataChannel. Negative numeric fields
// mean "unset"; Ordered defaults to true via NewDataChannelInit.
type DataChannelInit struct {
	ID                int
	MaxPacketLifeTime int
	MaxRetransmits    int
	Ordered           bool
	Negotiated        bool
	Protocol          string
}

// NewDataChannelInit returns the default channel configuration: ordered,
// non-negotiated, no retransmit limits.
func NewDataChannelInit() *DataChannelInit {
	return &DataChannelInit{
		ID:                -1,
		MaxPacketLifeTime: -1,
		MaxRetransmits:    -1,
		Ordered:           true,
	}
}

// DataChannelState mirrors the engine's channel lifecycle.
type DataChannelState int

const (
	DataChannelStateConnecting DataChannelState = iota
	DataChannelStateOpen
	DataChannelStateClosing
	DataChannelStateClosed
)

func (s DataChannelState) String() string {
	switch s {
	case DataChannelStateConnecting:
		return "connecting"
	case DataChannelStateOpen:
		return "open"
	case DataChannelStateClosing:
		return "closing"
	case DataChannelStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conversions between the veneer types and the engine's.

func (c Configuration) toEngine() webrtc.Configuration {
	servers := make([]webrtc.ICEServer, 0, len(c.ICEServers))
	for _, s := range c.ICEServers {
		server := webrtc.ICEServer{
			URLs:     s.URLs,
			Username: s.Username,
		}
		if s.Credential != "" {
			server.Credential = s.Credential
		}
		servers = append(servers, server)
	}

	cfg := webrtc.Configuration{
		ICEServers:           servers,
		ICECandidatePoolSize: c.ICECandidatePoolSize,
	}

	switch c.ICETransportPolicy {
	case ICETransportPolicyRelay:
		cfg.ICETransportPolicy = webrtc.ICETransportPolicyRelay
	default:
		cfg.ICETransportPolicy = webrtc.ICETransportPolicyAll
	}

	switch c.BundlePolicy {
	case BundlePolicyMaxBundle:
		cfg.BundlePolicy = webrtc.BundlePolicyMaxBundle
	case BundlePolicyMaxCompat:
		cfg.BundlePolicy = webrtc.BundlePolicyMaxCompat
	default:
		cfg.BundlePolicy = webrtc.BundlePolicyBalanced
	}

	switch c.RTCPMuxPolicy {
	case RTCPMuxPolicyNegotiate:
		cfg.RTCPMuxPolicy = webrtc.RTCPMuxPolicyNegotiate
	default:
		cfg.RTCPMuxPolicy = webrtc.RTCPMuxPolicyRequire
	}

	return cfg
}

func (d SessionDescription) toEngine() webrtc.SessionDescription {
	desc := webrtc.SessionDescription{SDP: d.SDP}
	switch d.Type {
	case SDPTypeAnswer:
		desc.Type = webrtc.SDPTypeAnswer
	case SDPTypePranswer:
		desc.Type = webrtc.SDPTypePranswer
	case SDPTypeRollback:
		desc.Type = webrtc.SDPTypeRollback
	default:
		desc.Type = webrtc.SDPTypeOffer
	}
	return desc
}

func descriptionFromEngine(desc webrtc.SessionDescription) SessionDescription {
	out := SessionDescription{SDP: desc.SDP}
	switch desc.Type {
	case webrtc.SDPTypeAnswer:
		out.Type = SDPTypeAnswer
	case webrtc.SDPTypePranswer:
		out.Type = SDPTypePranswer
	case webrtc.SDPTypeRollback:
		out.Type = SDPTypeRollback
	default:
		out.Type = SDPTypeOffer
	}
	return out
}

func candidateFromEngine(c *webrtc.ICECandidate) ICECandidate {
	init := c.ToJSON()
	out := ICECandidate{Candidate: init.Candidate}
	if init.SDPMid != nil {
		out.SDPMid = *init.SDPMid
	}
	if init.SDPMLineIndex != nil {
		out.SDPMLineIndex = *init.SDPMLineIndex
	}
	return out
}

func (c ICECandidate) toEngine() webrtc.ICECandidateInit {
	mid := c.SDPMid
	index := c.SDPMLineIndex
	return webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        &mid,
		SDPMLineIndex: &index,
	}
}

func signalingStateFromEngine(s webrtc.SignalingState) SignalingState {
	switch s {
	case webrtc.SignalingStateHaveLocalOffer:
		return SignalingStateHaveLocalOffer
	case webrtc.SignalingStateHaveLocalPranswer:
		return SignalingStateHaveLocalPranswer
	case webrtc.SignalingStateHaveRemoteOffer:
		return SignalingStateHaveRemoteOffer
	case webrtc.SignalingStateHaveRemotePranswer:
		return SignalingStateHaveRemotePranswer
	case webrtc.SignalingStateClosed:
		return SignalingStateClosed
	default:
		return SignalingStateStable
	}
}

func iceConnectionStateFromEngine(s webrtc.ICEConnectionState) ICEConnectionState {
	switch s {
	case webrtc.ICEConnectionStateChecking:
		return ICEConnectionStateChecking
	case webrtc.ICEConnectionStateConnected:
		return ICEConnectionStateConnected
	case webrtc.ICEConnectionStateCompleted:
		return ICEConnectionStateCompleted
	case webrtc.ICEConnectionStateFailed:
		return ICEConnectionStateFailed
	case webrtc.ICEConnectionStateDisconnected:
		return ICEConnectionStateDisconnected
	case webrtc.ICEConnectionStateClosed:
		return ICEConnectionStateClosed
	default:
		return ICEConnectionStateNew
	}
}

// The engine reports gathering progress through two parallel enums: the
// gatherer's own state in the change handler, the aggregate state from
// the connection accessor. Both collapse onto one veneer type.

func gathererStateFromEngine(s webrtc.ICEGathererState) ICEGatheringState {
	switch s {
	case webrtc.ICEGathererStateGathering:
		return ICEGatheringStateGathering
	case webrtc.ICEGathererStateComplete:
		return ICEGatheringStateComplete
	default:
		return ICEGatheringStateNew
	}
}

func iceGatheringStateFromEngine(s webrtc.ICEGatheringState) ICEGatheringState {
	switch s {
	case webrtc.ICEGatheringStateGathering:
		return ICEGatheringStateGathering
	case webrtc.ICEGatheringStateComplete:
		return ICEGatheringStateComplete
	default:
		return ICEGatheringStateNew
	}
}

func dataChannelStateFromEngine(s webrtc.DataChannelState) DataChannelState {
	switch s {
	case webrtc.DataChannelStateOpen:
		return DataChannelStateOpen
	case webrtc.DataChannelStateClosing:
		return DataChannelStateClosing
	case webrtc.DataChannelStateClosed:
		return DataChannelStateClosed
	default:
		return DataChannelStateConnecting
	}
}

func (d DataChannelInit) toEngine() *webrtc.DataChannelInit {
	init := &webrtc.DataChannelInit{}
	ordered := d.Ordered
	init.Ordered = &ordered
	if d.MaxPacketLifeTime >= 0 {
		v := uint16(d.MaxPacketLifeTime)
		init.MaxPacketLifeTime = &v
	}
	if d.MaxRetransmits >= 0 {
		v := uint16(d.MaxRetransmits)
		init.MaxRetransmits = &v
	}
	if d.Protocol != "" {
		p := d.Protocol
		init.Protocol = &p
	}
	if d.Negotiated {
		n := true
		init.Negotiated = &n
		if d.ID >= 0 {
			id := uint16(d.ID)
			init.ID = &id
		}
	}
	return init
}
