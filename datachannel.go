package crtc

import (
	"errors"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v3"
)

// DataChannel adapts the engine's data channel. Outbound payloads are
// taken from ArrayBuffers; inbound payloads are copied into freshly
// owned ArrayBuffers before delivery, since the engine reuses its read
// buffers. All handlers run on the Loop.
type DataChannel struct {
	loop *Loop
	log  logging.LeveledLogger
	dc   *webrtc.DataChannel

	handlerMu           sync.Mutex
	onOpen              func()
	onClose             func()
	onMessage           func(*ArrayBuffer, bool)
	onError             ErrorCallback
	onBufferedAmountLow func()
}

func newDataChannel(loop *Loop, dc *webrtc.DataChannel, log logging.LeveledLogger) *DataChannel {
	ch := &DataChannel{loop: loop, log: log, dc: dc}

	dc.OnOpen(func() {
		ch.dispatch(func() {
			if h := ch.openHandler(); h != nil {
				h()
			}
		})
	})

	dc.OnClose(func() {
		ch.dispatch(func() {
			if h := ch.closeHandler(); h != nil {
				h()
			}
		})
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		payload := NewArrayBufferFromBytes(msg.Data)
		binary := !msg.IsString
		ch.dispatch(func() {
			if h := ch.messageHandler(); h != nil {
				h(payload, binary)
			}
		})
	})

	dc.OnError(func(err error) {
		wrapped := Errorf("data channel %q: %v", dc.Label(), err)
		ch.dispatch(func() {
			if h := ch.errorHandler(); h != nil {
				h(wrapped)
			}
		})
	})

	dc.OnBufferedAmountLow(func() {
		ch.dispatch(func() {
			if h := ch.bufferedAmountLowHandler(); h != nil {
				h()
			}
		})
	})

	return ch
}

func (ch *DataChannel) dispatch(fn func()) {
	if err := ch.loop.SetImmediate(fn); err != nil {
		ch.log.Warnf("dropping channel event: %v", err)
	}
}

// OnOpen sets the handler invoked once the channel's transport is live.
func (ch *DataChannel) OnOpen(h func()) {
	ch.handlerMu.Lock()
	ch.onOpen = h
	ch.handlerMu.Unlock()
}

// OnClose sets the handler invoked when the channel shuts down.
func (ch *DataChannel) OnClose(h func()) {
	ch.handlerMu.Lock()
	ch.onClose = h
	ch.handlerMu.Unlock()
}

// OnMessage sets the handler for inbound payloads. binary reports
// whether the payload was sent as binary rather than text.
func (ch *DataChannel) OnMessage(h func(payload *ArrayBuffer, binary bool)) {
	ch.handlerMu.Lock()
	ch.onMessage = h
	ch.handlerMu.Unlock()
}

// OnError sets the channel failure handler.
func (ch *DataChannel) OnError(h ErrorCallback) {
	ch.handlerMu.Lock()
	ch.onError = h
	ch.handlerMu.Unlock()
}

// OnBufferedAmountLow sets the handler fired when the send buffer drains
// below the configured threshold.
func (ch *DataChannel) OnBufferedAmountLow(h func()) {
	ch.handlerMu.Lock()
	ch.onBufferedAmountLow = h
	ch.handlerMu.Unlock()
}

func (ch *DataChannel) openHandler() func() {
	ch.handlerMu.Lock()
	defer ch.handlerMu.Unlock()
	return ch.onOpen
}

func (ch *DataChannel) closeHandler() func() {
	ch.handlerMu.Lock()
	defer ch.handlerMu.Unlock()
	return ch.onClose
}

func (ch *DataChannel) messageHandler() func(*ArrayBuffer, bool) {
	ch.handlerMu.Lock()
	defer ch.handlerMu.Unlock()
	return ch.onMessage
}

func (ch *DataChannel) errorHandler() ErrorCallback {
	ch.handlerMu.Lock()
	defer ch.handlerMu.Unlock()
	return ch.onError
}

func (ch *DataChannel) bufferedAmountLowHandler() func() {
	ch.handlerMu.Lock()
	defer ch.handlerMu.Unlock()
	return ch.onBufferedAmountLow
}

// ID returns the negotiated stream id, or -1 before negotiation.
func (ch *DataChannel) ID() int {
	if id := ch.dc.ID(); id != nil {
		return int(*id)
	}
	return -1
}

// Label returns the channel's label.
func (ch *DataChannel) Label() string { return ch.dc.Label() }

// Protocol returns the negotiated subprotocol.
func (ch *DataChannel) Protocol() string { return ch.dc.Protocol() }

// Ordered reports whether delivery order is guaranteed.
func (ch *DataChannel) Ordered() bool { return ch.dc.Ordered() }

// Negotiated reports whether the channel was negotiated out of band.
func (ch *DataChannel) Negotiated() bool { return ch.dc.Negotiated() }

// MaxPacketLifeTime returns the retransmission window in milliseconds,
// or -1 when unset.
func (ch *DataChannel) MaxPacketLifeTime() int {
	if v := ch.dc.MaxPacketLifeTime(); v != nil {
		return int(*v)
	}
	return -1
}

// MaxRetransmits returns the retransmission limit, or -1 when unset.
func (ch *DataChannel) MaxRetransmits() int {
	if v := ch.dc.MaxRetransmits(); v != nil {
		return int(*v)
	}
	return -1
}

// BufferedAmount returns the bytes queued by the engine for sending.
func (ch *DataChannel) BufferedAmount() uint64 { return ch.dc.BufferedAmount() }

// BufferedAmountLowThreshold returns the low-watermark for
// OnBufferedAmountLow.
func (ch *DataChannel) BufferedAmountLowThreshold() uint64 {
	return ch.dc.BufferedAmountLowThreshold()
}

// SetBufferedAmountLowThreshold sets the low-watermark for
// OnBufferedAmountLow.
func (ch *DataChannel) SetBufferedAmountLowThreshold(threshold uint64) {
	ch.dc.SetBufferedAmountLowThreshold(threshold)
}

// ReadyState returns the channel lifecycle state.
func (ch *DataChannel) ReadyState() DataChannelState {
	return dataChannelStateFromEngine(ch.dc.ReadyState())
}

// Send queues the buffer's bytes as a binary message.
func (ch *DataChannel) Send(payload *ArrayBuffer) error {
	if payload == nil {
		return errors.New("crtc: nil payload")
	}
	return ch.dc.Send(payload.Data())
}

// SendText queues text as a string message.
func (ch *DataChannel) SendText(text string) error {
	return ch.dc.SendText(text)
}

// Close shuts the channel down. Events already marshalled onto the Loop
// still fire.
func (ch *DataChannel) Close() error { return ch.dc.Close() }
