// Package crtc is a web-API-flavored veneer over the pion/webrtc engine.
//
// It exposes the browser vocabulary (Promise, ArrayBuffer, TypedArray,
// PeerConnection, DataChannel) on top of a cooperative dispatch queue
// (Loop). The engine does the actual work: ICE negotiation, SDP parsing,
// DTLS, SCTP framing and media transport all belong to pion. This package
// only adapts types, converts enums, marshals engine callbacks onto the
// Loop and manages the lifetime of objects it does not own.
//
// All user callbacks (promise continuations, peer connection and data
// channel handlers) run on the Loop, never on an engine goroutine and
// never on the call stack that triggered them.
package crtc
