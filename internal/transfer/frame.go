package transfer

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// FrameType is the first byte of every frame on the wire.
type FrameType byte

const (
	FrameManifest FrameType = 1
	FrameChunk    FrameType = 2
	FrameDone     FrameType = 3
)

var errShortFrame = errors.New("transfer: short frame")

// Done closes a transfer: the receiver reports whether the assembled
// file matched the manifest hash.
type Done struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// EncodeManifest renders a manifest frame.
func EncodeManifest(m Manifest) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return append([]byte{byte(FrameManifest)}, payload...), nil
}

// EncodeChunk renders a chunk frame: type, 4-byte big-endian index,
// data.
func EncodeChunk(index uint32, data []byte) []byte {
	frame := make([]byte, 5+len(data))
	frame[0] = byte(FrameChunk)
	binary.BigEndian.PutUint32(frame[1:5], index)
	copy(frame[5:], data)
	return frame
}

// EncodeDone renders a completion frame.
func EncodeDone(d Done) ([]byte, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode done frame: %w", err)
	}
	return append([]byte{byte(FrameDone)}, payload...), nil
}

// DecodeFrame splits a frame into its type and payload.
func DecodeFrame(frame []byte) (FrameType, []byte, error) {
	if len(frame) < 1 {
		return 0, nil, errShortFrame
	}
	return FrameType(frame[0]), frame[1:], nil
}

// DecodeManifest parses a manifest payload.
func DecodeManifest(payload []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(payload, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return m, nil
}

// DecodeChunk parses a chunk payload into index and data. The data
// slice aliases the payload.
func DecodeChunk(payload []byte) (uint32, []byte, error) {
	if len(payload) < 4 {
		return 0, nil, errShortFrame
	}
	return binary.BigEndian.Uint32(payload[:4]), payload[4:], nil
}

// DecodeDone parses a completion payload.
func DecodeDone(payload []byte) (Done, error) {
	var d Done
	if err := json.Unmarshal(payload, &d); err != nil {
		return Done{}, fmt.Errorf("failed to decode done frame: %w", err)
	}
	return d, nil
}
