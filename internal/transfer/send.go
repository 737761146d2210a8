package transfer

import (
	"context"
	"fmt"
	"os"

	"github.com/crtc-go/crtc"
)

// Send-side backpressure watermarks: pause when the engine's send
// buffer exceeds the high mark, resume once it drains below the low
// mark.
const (
	highWaterMark = 256 * 1024
	lowWaterMark  = 64 * 1024
)

// Channel is the slice of the data channel surface the sender needs.
// *crtc.DataChannel satisfies it.
type Channel interface {
	Send(payload *crtc.ArrayBuffer) error
	BufferedAmount() uint64
	SetBufferedAmountLowThreshold(threshold uint64)
	OnBufferedAmountLow(h func())
}

// Send streams the file at path over ch: manifest first, then every
// chunk in order. progress, if non-nil, is called after each chunk with
// cumulative bytes sent. Send blocks until all chunks are queued or ctx
// is cancelled; completion is confirmed separately by the receiver's
// done frame.
func Send(ctx context.Context, ch Channel, path string, progress func(sent, total int64)) (Manifest, error) {
	manifest, err := BuildManifest(path)
	if err != nil {
		return Manifest{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	ready := make(chan struct{}, 1)
	ch.SetBufferedAmountLowThreshold(lowWaterMark)
	ch.OnBufferedAmountLow(func() {
		select {
		case ready <- struct{}{}:
		default:
		}
	})

	frame, err := EncodeManifest(manifest)
	if err != nil {
		return Manifest{}, err
	}
	if err := ch.Send(crtc.NewArrayBufferFromBytes(frame)); err != nil {
		return Manifest{}, fmt.Errorf("failed to send manifest: %w", err)
	}

	var sent int64
	for index := 0; index < manifest.TotalChunks; index++ {
		if ch.BufferedAmount() > highWaterMark {
			select {
			case <-ready:
			case <-ctx.Done():
				return Manifest{}, ctx.Err()
			}
		}

		data, err := ReadChunk(f, manifest, index)
		if err != nil {
			return Manifest{}, fmt.Errorf("failed to read chunk %d: %w", index, err)
		}
		if err := ch.Send(crtc.NewArrayBufferFromBytes(EncodeChunk(uint32(index), data))); err != nil {
			return Manifest{}, fmt.Errorf("failed to send chunk %d: %w", index, err)
		}

		sent += int64(len(data))
		if progress != nil {
			progress(sent, manifest.Size)
		}
	}

	return manifest, nil
}
