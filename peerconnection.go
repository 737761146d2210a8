package crtc

import (
	"errors"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v3"
)

// PeerConnection adapts the engine's peer connection to the
// promise-based surface. Negotiation operations run on their own
// goroutine and settle through the Loop; engine event handlers are
// marshalled onto the Loop before user code sees them, so no callback
// ever runs on an engine goroutine.
type PeerConnection struct {
	loop *Loop
	log  logging.LeveledLogger
	pc   *webrtc.PeerConnection

	handlerMu                   sync.Mutex
	onICECandidate              func(ICECandidate)
	onDataChannel               func(*DataChannel)
	onNegotiationNeeded         func()
	onSignalingStateChange      func(SignalingState)
	onICEConnectionStateChange  func(ICEConnectionState)
	onICEGatheringStateChange   func(ICEGatheringState)
	onICECandidatesGatheringEnd func()
}

// NewPeerConnection creates a peer connection backed by the engine.
// Every handler and every promise continuation produced by the returned
// connection is delivered through loop.
func NewPeerConnection(loop *Loop, config Configuration) (*PeerConnection, error) {
	return NewPeerConnectionWithLogger(loop, config, nil)
}

// NewPeerConnectionWithLogger is NewPeerConnection with an explicit
// logger factory.
func NewPeerConnectionWithLogger(loop *Loop, config Configuration, lf logging.LoggerFactory) (*PeerConnection, error) {
	if loop == nil {
		return nil, errors.New("crtc: nil loop")
	}
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}

	engine, err := webrtc.NewPeerConnection(config.toEngine())
	if err != nil {
		return nil, err
	}

	pc := &PeerConnection{
		loop: loop,
		log:  lf.NewLogger("crtc-pc"),
		pc:   engine,
	}
	pc.wireEngineHandlers()
	return pc, nil
}

// wireEngineHandlers installs the engine-side observers once; user
// handlers are looked up at dispatch time so late registration works.
func (pc *PeerConnection) wireEngineHandlers() {
	pc.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			pc.dispatch(func() {
				if h := pc.gatheringEndHandler(); h != nil {
					h()
				}
			})
			return
		}
		cand := candidateFromEngine(c)
		pc.dispatch(func() {
			if h := pc.candidateHandler(); h != nil {
				h(cand)
			}
		})
	})

	pc.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		ch := newDataChannel(pc.loop, dc, pc.log)
		pc.dispatch(func() {
			if h := pc.dataChannelHandler(); h != nil {
				h(ch)
			}
		})
	})

	pc.pc.OnNegotiationNeeded(func() {
		pc.dispatch(func() {
			if h := pc.negotiationNeededHandler(); h != nil {
				h()
			}
		})
	})

	pc.pc.OnSignalingStateChange(func(s webrtc.SignalingState) {
		state := signalingStateFromEngine(s)
		pc.dispatch(func() {
			if h := pc.signalingStateHandler(); h != nil {
				h(state)
			}
		})
	})

	pc.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		state := iceConnectionStateFromEngine(s)
		pc.dispatch(func() {
			if h := pc.iceConnectionStateHandler(); h != nil {
				h(state)
			}
		})
	})

	pc.pc.OnICEGatheringStateChange(func(s webrtc.ICEGathererState) {
		state := gathererStateFromEngine(s)
		pc.dispatch(func() {
			if h := pc.iceGatheringStateHandler(); h != nil {
				h(state)
			}
		})
	})
}

// dispatch marshals an engine callback onto the Loop. After the Loop is
// closed events are dropped; the veneer is shutting down anyway.
func (pc *PeerConnection) dispatch(fn func()) {
	if err := pc.loop.SetImmediate(fn); err != nil {
		pc.log.Warnf("dropping engine event: %v", err)
	}
}

// OnICECandidate sets the handler invoked for each gathered candidate.
func (pc *PeerConnection) OnICECandidate(h func(ICECandidate)) {
	pc.handlerMu.Lock()
	pc.onICECandidate = h
	pc.handlerMu.Unlock()
}

// OnICECandidatesGatheringEnd sets the handler invoked when the engine
// signals the end of candidate gathering.
func (pc *PeerConnection) OnICECandidatesGatheringEnd(h func()) {
	pc.handlerMu.Lock()
	pc.onICECandidatesGatheringEnd = h
	pc.handlerMu.Unlock()
}

// OnDataChannel sets the handler invoked when the remote peer opens a
// channel.
func (pc *PeerConnection) OnDataChannel(h func(*DataChannel)) {
	pc.handlerMu.Lock()
	pc.onDataChannel = h
	pc.handlerMu.Unlock()
}

// OnNegotiationNeeded sets the renegotiation handler.
func (pc *PeerConnection) OnNegotiationNeeded(h func()) {
	pc.handlerMu.Lock()
	pc.onNegotiationNeeded = h
	pc.handlerMu.Unlock()
}

// OnSignalingStateChange sets the signaling state handler.
func (pc *PeerConnection) OnSignalingStateChange(h func(SignalingState)) {
	pc.handlerMu.Lock()
	pc.onSignalingStateChange = h
	pc.handlerMu.Unlock()
}

// OnICEConnectionStateChange sets the ICE connection state handler.
func (pc *PeerConnection) OnICEConnectionStateChange(h func(ICEConnectionState)) {
	pc.handlerMu.Lock()
	pc.onICEConnectionStateChange = h
	pc.handlerMu.Unlock()
}

// OnICEGatheringStateChange sets the gathering state handler.
func (pc *PeerConnection) OnICEGatheringStateChange(h func(ICEGatheringState)) {
	pc.handlerMu.Lock()
	pc.onICEGatheringStateChange = h
	pc.handlerMu.Unlock()
}

func (pc *PeerConnection) candidateHandler() func(ICECandidate) {
	pc.handlerMu.Lock()
	defer pc.handlerMu.Unlock()
	return pc.onICECandidate
}

func (pc *PeerConnection) gatheringEndHandler() func() {
	pc.handlerMu.Lock()
	defer pc.handlerMu.Unlock()
	return pc.onICECandidatesGatheringEnd
}

func (pc *PeerConnection) dataChannelHandler() func(*DataChannel) {
	pc.handlerMu.Lock()
	defer pc.handlerMu.Unlock()
	return pc.onDataChannel
}

func (pc *PeerConnection) negotiationNeededHandler() func() {
	pc.handlerMu.Lock()
	defer pc.handlerMu.Unlock()
	return pc.onNegotiationNeeded
}

func (pc *PeerConnection) signalingStateHandler() func(SignalingState) {
	pc.handlerMu.Lock()
	defer pc.handlerMu.Unlock()
	return pc.onSignalingStateChange
}

func (pc *PeerConnection) iceConnectionStateHandler() func(ICEConnectionState) {
	pc.handlerMu.Lock()
	defer pc.handlerMu.Unlock()
	return pc.onICEConnectionStateChange
}

func (pc *PeerConnection) iceGatheringStateHandler() func(ICEGatheringState) {
	pc.handlerMu.Lock()
	defer pc.handlerMu.Unlock()
	return pc.onICEGatheringStateChange
}

// CreateOffer asks the engine for an SDP offer. The returned promise
// fulfills with the description or rejects with the engine's failure.
func (pc *PeerConnection) CreateOffer(options *OfferOptions) *Promise[SessionDescription] {
	var engineOpts *webrtc.OfferOptions
	if options != nil {
		engineOpts = &webrtc.OfferOptions{
			OfferAnswerOptions: webrtc.OfferAnswerOptions{
				VoiceActivityDetection: options.VoiceActivityDetection,
			},
			ICERestart: options.ICERestart,
		}
	}
	return NewPromise(pc.loop, func(resolve func(SessionDescription), reject ErrorCallback) {
		go func() {
			offer, err := pc.pc.CreateOffer(engineOpts)
			if err != nil {
				reject(Errorf("create offer: %v", err))
				return
			}
			resolve(descriptionFromEngine(offer))
		}()
	})
}

// CreateAnswer asks the engine for an SDP answer to the current remote
// offer.
func (pc *PeerConnection) CreateAnswer(options *AnswerOptions) *Promise[SessionDescription] {
	var engineOpts *webrtc.AnswerOptions
	if options != nil {
		engineOpts = &webrtc.AnswerOptions{
			OfferAnswerOptions: webrtc.OfferAnswerOptions{
				VoiceActivityDetection: options.VoiceActivityDetection,
			},
		}
	}
	return NewPromise(pc.loop, func(resolve func(SessionDescription), reject ErrorCallback) {
		go func() {
			answer, err := pc.pc.CreateAnswer(engineOpts)
			if err != nil {
				reject(Errorf("create answer: %v", err))
				return
			}
			resolve(descriptionFromEngine(answer))
		}()
	})
}

// SetLocalDescription applies desc to the engine.
func (pc *PeerConnection) SetLocalDescription(desc SessionDescription) *Promise[Void] {
	return NewPromise(pc.loop, func(resolve func(Void), reject ErrorCallback) {
		go func() {
			if err := pc.pc.SetLocalDescription(desc.toEngine()); err != nil {
				reject(Errorf("set local description: %v", err))
				return
			}
			resolve(Void{})
		}()
	})
}

// SetRemoteDescription applies the peer's description to the engine.
func (pc *PeerConnection) SetRemoteDescription(desc SessionDescription) *Promise[Void] {
	return NewPromise(pc.loop, func(resolve func(Void), reject ErrorCallback) {
		go func() {
			if err := pc.pc.SetRemoteDescription(desc.toEngine()); err != nil {
				reject(Errorf("set remote description: %v", err))
				return
			}
			resolve(Void{})
		}()
	})
}

// AddICECandidate feeds a signaled remote candidate to the engine.
func (pc *PeerConnection) AddICECandidate(candidate ICECandidate) *Promise[Void] {
	return NewPromise(pc.loop, func(resolve func(Void), reject ErrorCallback) {
		go func() {
			if err := pc.pc.AddICECandidate(candidate.toEngine()); err != nil {
				reject(Errorf("add ice candidate: %v", err))
				return
			}
			resolve(Void{})
		}()
	})
}

// CreateDataChannel opens a channel on this connection. A nil init uses
// the defaults from NewDataChannelInit.
func (pc *PeerConnection) CreateDataChannel(label string, init *DataChannelInit) (*DataChannel, error) {
	if init == nil {
		init = NewDataChannelInit()
	}
	dc, err := pc.pc.CreateDataChannel(label, init.toEngine())
	if err != nil {
		return nil, err
	}
	return newDataChannel(pc.loop, dc, pc.log), nil
}

// LocalDescription returns the description last applied locally, or nil.
func (pc *PeerConnection) LocalDescription() *SessionDescription {
	return descriptionPtrFromEngine(pc.pc.LocalDescription())
}

// RemoteDescription returns the peer's last applied description, or nil.
func (pc *PeerConnection) RemoteDescription() *SessionDescription {
	return descriptionPtrFromEngine(pc.pc.RemoteDescription())
}

// CurrentLocalDescription returns the negotiated local description.
func (pc *PeerConnection) CurrentLocalDescription() *SessionDescription {
	return descriptionPtrFromEngine(pc.pc.CurrentLocalDescription())
}

// CurrentRemoteDescription returns the negotiated remote description.
func (pc *PeerConnection) CurrentRemoteDescription() *SessionDescription {
	return descriptionPtrFromEngine(pc.pc.CurrentRemoteDescription())
}

// PendingLocalDescription returns the local description still being
// negotiated, or nil.
func (pc *PeerConnection) PendingLocalDescription() *SessionDescription {
	return descriptionPtrFromEngine(pc.pc.PendingLocalDescription())
}

// PendingRemoteDescription returns the remote description still being
// negotiated, or nil.
func (pc *PeerConnection) PendingRemoteDescription() *SessionDescription {
	return descriptionPtrFromEngine(pc.pc.PendingRemoteDescription())
}

func descriptionPtrFromEngine(desc *webrtc.SessionDescription) *SessionDescription {
	if desc == nil {
		return nil
	}
	out := descriptionFromEngine(*desc)
	return &out
}

// SignalingState returns the engine's signaling state.
func (pc *PeerConnection) SignalingState() SignalingState {
	return signalingStateFromEngine(pc.pc.SignalingState())
}

// ICEConnectionState returns the engine's ICE connection state.
func (pc *PeerConnection) ICEConnectionState() ICEConnectionState {
	return iceConnectionStateFromEngine(pc.pc.ICEConnectionState())
}

// ICEGatheringState returns the engine's gathering progress.
func (pc *PeerConnection) ICEGatheringState() ICEGatheringState {
	return iceGatheringStateFromEngine(pc.pc.ICEGatheringState())
}

// Close releases the engine connection. Events already marshalled onto
// the Loop still fire.
func (pc *PeerConnection) Close() error {
	return pc.pc.Close()
}
