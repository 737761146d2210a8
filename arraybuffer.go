package crtc

// ArrayBuffer owns a contiguous byte region whose length is fixed at
// construction. It is the one mutable shared resource of the binding
// surface: any number of TypedArray views may alias its bytes
// concurrently, with no internal synchronization. Mutating a buffer
// while another goroutine reads it through a view is a data race the
// caller must guard against.
type ArrayBuffer struct {
	data []byte
}

// NewArrayBuffer allocates a zeroed buffer of byteLength bytes. A
// negative length yields an empty buffer.
func NewArrayBuffer(byteLength int) *ArrayBuffer {
	if byteLength < 0 {
		byteLength = 0
	}
	return &ArrayBuffer{data: make([]byte, byteLength)}
}

// NewArrayBufferFromBytes allocates a buffer initialized with a copy of
// data.
func NewArrayBufferFromBytes(data []byte) *ArrayBuffer {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &ArrayBuffer{data: buf}
}

// NewArrayBufferFromString allocates a buffer holding the bytes of text.
func NewArrayBufferFromString(text string) *ArrayBuffer {
	return &ArrayBuffer{data: []byte(text)}
}

// ByteLength returns the fixed length of the owned region.
func (a *ArrayBuffer) ByteLength() int { return len(a.data) }

// Data exposes the owned bytes without copying. Mutations are visible to
// every view aliasing this buffer.
func (a *ArrayBuffer) Data() []byte { return a.data }

// Slice returns a new, independently owned buffer holding a defensive
// copy of [begin, end), clamped to the buffer bounds. end == 0 means "to
// the end". Later mutation of either buffer leaves the other untouched.
func (a *ArrayBuffer) Slice(begin, end int) *ArrayBuffer {
	if begin < 0 {
		begin = 0
	}
	if end <= 0 || end > len(a.data) {
		end = len(a.data)
	}
	if begin >= end {
		return NewArrayBuffer(0)
	}
	return NewArrayBufferFromBytes(a.data[begin:end])
}

// String returns the buffer contents as text.
func (a *ArrayBuffer) String() string { return string(a.data) }
