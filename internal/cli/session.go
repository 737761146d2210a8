package cli

import (
	"context"
	"fmt"
	"net"

	"github.com/crtc-go/crtc"
	"github.com/crtc-go/crtc/internal/signaling"
	"github.com/sirupsen/logrus"
)

var defaultICEServers = []crtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
}

// session owns the dispatch loop, the peer connection and the
// signaling link for one CLI invocation.
type session struct {
	log  *logrus.Logger
	loop *crtc.Loop
	pc   *crtc.PeerConnection
	peer *signaling.Peer

	stopLoop context.CancelFunc
	loopDone chan struct{}

	// first data channel announced by the remote side
	channelCh chan *crtc.DataChannel
}

func newSession(log *logrus.Logger) (*session, error) {
	s := &session{
		log:       log,
		loopDone:  make(chan struct{}),
		channelCh: make(chan *crtc.DataChannel, 1),
	}
	s.loop = crtc.NewLoop(crtc.LoopOptions{
		OnError: func(e *crtc.Error) { log.Errorf("dispatch error: %s", e) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.stopLoop = cancel
	go func() {
		defer close(s.loopDone)
		_ = s.loop.Run(ctx)
	}()

	pc, err := crtc.NewPeerConnection(s.loop, crtc.Configuration{ICEServers: defaultICEServers})
	if err != nil {
		cancel()
		<-s.loopDone
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}
	s.pc = pc

	pc.OnDataChannel(func(ch *crtc.DataChannel) {
		select {
		case s.channelCh <- ch:
		default:
		}
	})
	pc.OnICEConnectionStateChange(func(state crtc.ICEConnectionState) {
		log.Debugf("ice connection state: %s", state)
	})
	pc.OnSignalingStateChange(func(state crtc.SignalingState) {
		log.Debugf("signaling state: %s", state)
	})
	return s, nil
}

// host starts the signaling server, prints the join link and blocks
// until a guest connects, then drives the offer side of negotiation.
func (s *session) host(ctx context.Context, addr string) error {
	server := signaling.NewServer()
	port, err := server.Start(addr)
	if err != nil {
		return err
	}
	defer server.Close()

	fmt.Printf("waiting for a peer, share this link:\n\n  %s\n\n", server.URL(linkHost(addr), port))

	peer, err := server.WaitForGuest(ctx)
	if err != nil {
		return err
	}
	s.peer = peer
	s.log.Info("peer joined")

	s.forwardLocalCandidates()
	go s.pumpSignaling()

	offer, cerr := s.pc.CreateOffer(nil).Await(ctx)
	if cerr != nil {
		return fmt.Errorf("failed to create offer: %s", cerr)
	}
	if _, cerr := s.pc.SetLocalDescription(offer).Await(ctx); cerr != nil {
		return fmt.Errorf("failed to set local description: %s", cerr)
	}
	return s.peer.Send(signaling.Message{Type: signaling.MsgTypeOffer, SDP: offer.SDP})
}

// join dials the host's link and drives the answer side of negotiation.
func (s *session) join(ctx context.Context, url string) error {
	peer, err := signaling.Dial(ctx, url)
	if err != nil {
		return err
	}
	s.peer = peer
	s.log.Info("connected to host")

	s.forwardLocalCandidates()
	go s.pumpSignaling()
	return nil
}

func (s *session) forwardLocalCandidates() {
	s.pc.OnICECandidate(func(c crtc.ICECandidate) {
		msg := signaling.Message{
			Type: signaling.MsgTypeCandidate,
			Candidate: &signaling.Candidate{
				Candidate:     c.Candidate,
				SDPMid:        c.SDPMid,
				SDPMLineIndex: c.SDPMLineIndex,
			},
		}
		if err := s.peer.Send(msg); err != nil {
			s.log.Debugf("failed to send candidate: %v", err)
		}
	})
}

func (s *session) pumpSignaling() {
	for {
		msg, err := s.peer.Recv()
		if err != nil {
			s.log.Debugf("signaling link closed: %v", err)
			return
		}
		switch msg.Type {
		case signaling.MsgTypeOffer:
			s.handleRemoteOffer(msg.SDP)
		case signaling.MsgTypeAnswer:
			desc := crtc.SessionDescription{Type: crtc.SDPTypeAnswer, SDP: msg.SDP}
			s.pc.SetRemoteDescription(desc).Catch(s.reportError("set remote description"))
		case signaling.MsgTypeCandidate:
			if msg.Candidate == nil {
				continue
			}
			s.pc.AddICECandidate(crtc.ICECandidate{
				Candidate:     msg.Candidate.Candidate,
				SDPMid:        msg.Candidate.SDPMid,
				SDPMLineIndex: msg.Candidate.SDPMLineIndex,
			}).Catch(s.reportError("add ice candidate"))
		case signaling.MsgTypeBye:
			s.log.Info("peer left")
			return
		}
	}
}

func (s *session) handleRemoteOffer(sdp string) {
	desc := crtc.SessionDescription{Type: crtc.SDPTypeOffer, SDP: sdp}
	s.pc.SetRemoteDescription(desc).Then(func(crtc.Void) {
		s.pc.CreateAnswer(nil).Then(func(answer crtc.SessionDescription) {
			s.pc.SetLocalDescription(answer).Then(func(crtc.Void) {
				reply := signaling.Message{Type: signaling.MsgTypeAnswer, SDP: answer.SDP}
				if err := s.peer.Send(reply); err != nil {
					s.log.Errorf("failed to send answer: %v", err)
				}
			}).Catch(s.reportError("set local description"))
		}).Catch(s.reportError("create answer"))
	}).Catch(s.reportError("set remote description"))
}

func (s *session) reportError(op string) crtc.ErrorCallback {
	return func(e *crtc.Error) { s.log.Errorf("%s failed: %s", op, e) }
}

// waitForChannel blocks until the remote side announces a data channel.
func (s *session) waitForChannel(ctx context.Context) (*crtc.DataChannel, error) {
	select {
	case ch := <-s.channelCh:
		return ch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// waitForOpen blocks until ch reaches the open state.
func waitForOpen(ctx context.Context, ch *crtc.DataChannel) error {
	opened := make(chan struct{})
	ch.OnOpen(func() { close(opened) })
	if ch.ReadyState() == crtc.DataChannelStateOpen {
		return nil
	}
	select {
	case <-opened:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *session) close() {
	if s.peer != nil {
		_ = s.peer.Send(signaling.Message{Type: signaling.MsgTypeBye})
		_ = s.peer.Close()
	}
	_ = s.pc.Close()
	s.stopLoop()
	<-s.loopDone
	_ = s.loop.Close()
}

// linkHost picks the hostname to embed in the join link. A wildcard
// listen address is not dialable, so fall back to localhost.
func linkHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil || host == "" || host == "0.0.0.0" || host == "::" {
		return "localhost"
	}
	return host
}
