// Package transfer moves a file across a data channel in fixed-size
// chunks: a manifest frame describing the file, then one frame per
// chunk, then a completion frame back from the receiver. Integrity is
// checked with a whole-file SHA-256.
package transfer

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MaxChunkSize keeps every frame comfortably under the SCTP message
// limit.
const MaxChunkSize = 32 * 1024

// Manifest describes the file being offered.
type Manifest struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ChunkSize   int    `json:"chunkSize"`
	TotalChunks int    `json:"totalChunks"`
	Hash        string `json:"hash"`
}

// BuildManifest hashes the file at path and fills in its chunk geometry.
func BuildManifest(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	hash, err := HashReader(f)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return Manifest{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ChunkSize:   MaxChunkSize,
		TotalChunks: CalculateTotalChunks(info.Size(), MaxChunkSize),
		Hash:        hash,
	}, nil
}

// HashReader returns the hex SHA-256 of everything in r.
func HashReader(r io.Reader) (string, error) {
	hash := sha256.New()
	if _, err := io.Copy(hash, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

// CalculateTotalChunks returns how many chunkSize chunks cover fileSize.
func CalculateTotalChunks(fileSize, chunkSize int64) int {
	if chunkSize <= 0 {
		return 0
	}
	return int((fileSize + chunkSize - 1) / chunkSize)
}

// ChunkLength returns the byte length of chunk index within the
// manifest's geometry.
func (m Manifest) ChunkLength(index int) int {
	if index < 0 || index >= m.TotalChunks {
		return 0
	}
	if index == m.TotalChunks-1 {
		if rem := int(m.Size % int64(m.ChunkSize)); rem != 0 {
			return rem
		}
	}
	return m.ChunkSize
}

// ReadChunk reads chunk index from r using the manifest geometry.
func ReadChunk(r io.ReaderAt, m Manifest, index int) ([]byte, error) {
	data := make([]byte, m.ChunkLength(index))
	_, err := r.ReadAt(data, int64(index)*int64(m.ChunkSize))
	if err != nil && err != io.EOF {
		return nil, err
	}
	return data, nil
}

// WriteChunk writes chunk index at its offset in w.
func WriteChunk(w io.WriterAt, m Manifest, index int, data []byte) error {
	_, err := w.WriteAt(data, int64(index)*int64(m.ChunkSize))
	return err
}
