package crtc

import (
	"context"
	"testing"
	"time"
)

// gatherComplete registers a gathering-end watch on pc and returns a
// channel closed when the engine reports it.
func gatherComplete(pc *PeerConnection) <-chan struct{} {
	done := make(chan struct{})
	pc.OnICECandidatesGatheringEnd(func() { close(done) })
	return done
}

func awaitVoid(t *testing.T, ctx context.Context, name string, p *Promise[Void]) {
	t.Helper()
	if _, err := p.Await(ctx); err != nil {
		t.Fatalf("%s failed: %v", name, err)
	}
}

// Full non-trickle handshake between two in-process connections, with a
// text and a binary round trip over the resulting channel.
func TestPeerConnectionDataChannelRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	loop := NewLoop(LoopOptions{})
	defer func() { _ = loop.Close() }()
	go func() { _ = loop.Run(ctx) }()

	offerer, err := NewPeerConnection(loop, Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection offerer failed: %v", err)
	}
	defer func() { _ = offerer.Close() }()

	answerer, err := NewPeerConnection(loop, Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection answerer failed: %v", err)
	}
	defer func() { _ = answerer.Close() }()

	// The answerer echoes every message back on whatever channel the
	// offerer opens.
	answerer.OnDataChannel(func(dc *DataChannel) {
		dc.OnMessage(func(payload *ArrayBuffer, binary bool) {
			if binary {
				if err := dc.Send(payload); err != nil {
					t.Errorf("echo Send failed: %v", err)
				}
				return
			}
			if err := dc.SendText(payload.String()); err != nil {
				t.Errorf("echo SendText failed: %v", err)
			}
		})
	})

	dc, err := offerer.CreateDataChannel("echo", nil)
	if err != nil {
		t.Fatalf("CreateDataChannel failed: %v", err)
	}
	if dc.Label() != "echo" {
		t.Fatalf("unexpected label %q", dc.Label())
	}

	opened := make(chan struct{})
	dc.OnOpen(func() { close(opened) })

	echoes := make(chan string, 4)
	binaries := make(chan []byte, 4)
	dc.OnMessage(func(payload *ArrayBuffer, binary bool) {
		if binary {
			binaries <- payload.Data()
		} else {
			echoes <- payload.String()
		}
	})

	// Non-trickle negotiation: gather everything, then swap complete
	// descriptions.
	offererGathered := gatherComplete(offerer)
	answererGathered := gatherComplete(answerer)

	offer, perr := offerer.CreateOffer(nil).Await(ctx)
	if perr != nil {
		t.Fatalf("CreateOffer failed: %v", perr)
	}
	if offer.Type != SDPTypeOffer || offer.SDP == "" {
		t.Fatalf("malformed offer: type %v, %d sdp bytes", offer.Type, len(offer.SDP))
	}
	awaitVoid(t, ctx, "SetLocalDescription(offer)", offerer.SetLocalDescription(offer))
	select {
	case <-offererGathered:
	case <-ctx.Done():
		t.Fatal("timeout gathering offerer candidates")
	}

	awaitVoid(t, ctx, "SetRemoteDescription(offer)",
		answerer.SetRemoteDescription(*offerer.LocalDescription()))

	answer, perr := answerer.CreateAnswer(nil).Await(ctx)
	if perr != nil {
		t.Fatalf("CreateAnswer failed: %v", perr)
	}
	if answer.Type != SDPTypeAnswer {
		t.Fatalf("expected answer type, got %v", answer.Type)
	}
	awaitVoid(t, ctx, "SetLocalDescription(answer)", answerer.SetLocalDescription(answer))
	select {
	case <-answererGathered:
	case <-ctx.Done():
		t.Fatal("timeout gathering answerer candidates")
	}

	awaitVoid(t, ctx, "SetRemoteDescription(answer)",
		offerer.SetRemoteDescription(*answerer.LocalDescription()))

	select {
	case <-opened:
	case <-ctx.Done():
		t.Fatal("timeout waiting for data channel open")
	}

	if err := dc.SendText("ping"); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	select {
	case got := <-echoes:
		if got != "ping" {
			t.Fatalf("expected %q, got %q", "ping", got)
		}
	case <-ctx.Done():
		t.Fatal("timeout waiting for text echo")
	}

	payload := NewArrayBufferFromBytes([]byte{1, 2, 3, 4})
	if err := dc.Send(payload); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	select {
	case got := <-binaries:
		if len(got) != 4 || got[0] != 1 || got[3] != 4 {
			t.Fatalf("unexpected binary echo %v", got)
		}
	case <-ctx.Done():
		t.Fatal("timeout waiting for binary echo")
	}
}

func TestPeerConnectionDescriptionsAndStates(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	loop := NewLoop(LoopOptions{})
	defer func() { _ = loop.Close() }()
	go func() { _ = loop.Run(ctx) }()

	pc, err := NewPeerConnection(loop, Configuration{
		ICEServers: []ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
	})
	if err != nil {
		t.Fatalf("NewPeerConnection failed: %v", err)
	}
	defer func() { _ = pc.Close() }()

	if pc.SignalingState() != SignalingStateStable {
		t.Fatalf("expected stable, got %v", pc.SignalingState())
	}
	if pc.LocalDescription() != nil {
		t.Fatal("expected nil local description before negotiation")
	}
	if pc.ICEGatheringState() != ICEGatheringStateNew {
		t.Fatalf("expected new gathering state, got %v", pc.ICEGatheringState())
	}

	if _, err := pc.CreateDataChannel("state", nil); err != nil {
		t.Fatalf("CreateDataChannel failed: %v", err)
	}

	offer, perr := pc.CreateOffer(nil).Await(ctx)
	if perr != nil {
		t.Fatalf("CreateOffer failed: %v", perr)
	}
	awaitVoid(t, ctx, "SetLocalDescription", pc.SetLocalDescription(offer))

	if pc.SignalingState() != SignalingStateHaveLocalOffer {
		t.Fatalf("expected have-local-offer, got %v", pc.SignalingState())
	}
	if pc.LocalDescription() == nil {
		t.Fatal("expected local description after SetLocalDescription")
	}
	if pc.PendingLocalDescription() == nil {
		t.Fatal("expected pending local description mid-negotiation")
	}
}

func TestPeerConnectionStateChangeHandlersRunOnLoop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	loop := NewLoop(LoopOptions{})
	defer func() { _ = loop.Close() }()
	go func() { _ = loop.Run(ctx) }()

	pc, err := NewPeerConnection(loop, Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection failed: %v", err)
	}
	defer func() { _ = pc.Close() }()

	signaling := make(chan SignalingState, 8)
	pc.OnSignalingStateChange(func(s SignalingState) { signaling <- s })

	if _, err := pc.CreateDataChannel("s", nil); err != nil {
		t.Fatalf("CreateDataChannel failed: %v", err)
	}
	offer, perr := pc.CreateOffer(nil).Await(ctx)
	if perr != nil {
		t.Fatalf("CreateOffer failed: %v", perr)
	}
	awaitVoid(t, ctx, "SetLocalDescription", pc.SetLocalDescription(offer))

	select {
	case s := <-signaling:
		if s != SignalingStateHaveLocalOffer {
			t.Fatalf("expected have-local-offer, got %v", s)
		}
	case <-ctx.Done():
		t.Fatal("timeout waiting for signaling state change")
	}
}
