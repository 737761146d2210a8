package transfer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Receiver assembles an inbound transfer. Frames are handed to
// HandleFrame in arrival order from a single goroutine (the Loop, when
// fed by a data channel message handler).
type Receiver struct {
	dir      string
	manifest Manifest
	file     *os.File
	received int
	done     bool

	// OnProgress, if set, is called after each chunk with cumulative
	// bytes received.
	OnProgress func(received, total int64)
}

// NewReceiver writes incoming files into dir.
func NewReceiver(dir string) *Receiver {
	return &Receiver{dir: dir}
}

// Manifest returns the transfer's manifest once it has arrived.
func (r *Receiver) Manifest() Manifest { return r.manifest }

// HandleFrame consumes one wire frame. It returns a non-nil done result
// once the transfer completes, verified against the manifest hash. The
// caller sends the result back to the sender as the completion frame.
func (r *Receiver) HandleFrame(frame []byte) (*Done, error) {
	typ, payload, err := DecodeFrame(frame)
	if err != nil {
		return nil, err
	}

	switch typ {
	case FrameManifest:
		return r.handleManifest(payload)
	case FrameChunk:
		return r.handleChunk(payload)
	default:
		return nil, fmt.Errorf("transfer: unexpected frame type %d", typ)
	}
}

func (r *Receiver) handleManifest(payload []byte) (*Done, error) {
	if r.file != nil {
		return nil, errors.New("transfer: duplicate manifest")
	}
	manifest, err := DecodeManifest(payload)
	if err != nil {
		return nil, err
	}
	if manifest.ChunkSize <= 0 || manifest.Size < 0 {
		return nil, errors.New("transfer: malformed manifest")
	}

	// The manifest name is untrusted; keep only its base name.
	path := filepath.Join(r.dir, filepath.Base(manifest.Name))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	r.manifest = manifest
	r.file = f

	// An empty file has no chunks to wait for.
	if manifest.TotalChunks == 0 {
		return r.finish()
	}
	return nil, nil
}

func (r *Receiver) handleChunk(payload []byte) (*Done, error) {
	if r.file == nil {
		return nil, errors.New("transfer: chunk before manifest")
	}
	if r.done {
		return nil, errors.New("transfer: chunk after completion")
	}

	index, data, err := DecodeChunk(payload)
	if err != nil {
		return nil, err
	}
	if int(index) >= r.manifest.TotalChunks || len(data) != r.manifest.ChunkLength(int(index)) {
		return nil, fmt.Errorf("transfer: bad chunk %d (%d bytes)", index, len(data))
	}

	if err := WriteChunk(r.file, r.manifest, int(index), data); err != nil {
		return nil, fmt.Errorf("failed to write chunk %d: %w", index, err)
	}
	r.received++
	if r.OnProgress != nil {
		r.OnProgress(int64(r.received-1)*int64(r.manifest.ChunkSize)+int64(len(data)), r.manifest.Size)
	}

	if r.received < r.manifest.TotalChunks {
		return nil, nil
	}
	return r.finish()
}

// finish verifies the assembled file against the manifest hash.
func (r *Receiver) finish() (*Done, error) {
	r.done = true

	if err := r.file.Sync(); err != nil {
		return nil, err
	}
	if _, err := r.file.Seek(0, 0); err != nil {
		return nil, err
	}
	hash, err := HashReader(r.file)
	if err != nil {
		return nil, err
	}
	if cerr := r.file.Close(); cerr != nil {
		return nil, cerr
	}

	if hash != r.manifest.Hash {
		return &Done{OK: false, Reason: "hash mismatch"}, nil
	}
	return &Done{OK: true}, nil
}

// Close releases the partially written file, if any.
func (r *Receiver) Close() error {
	if r.file != nil && !r.done {
		return r.file.Close()
	}
	return nil
}
