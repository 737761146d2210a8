package crtc

import "unsafe"

// Element enumerates the fixed-width numeric types a TypedArray may view
// a buffer as.
type Element interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 |
		~int64 | ~uint64 | ~float32 | ~float64
}

// TypedArray is a non-owning typed window over an ArrayBuffer. The view
// reinterprets the buffer's bytes in place: writes through one view are
// visible through every other view and through the buffer itself. The
// view keeps the buffer alive but never copies it.
//
// Construction degrades to an empty view instead of failing: a byte
// range that is not an exact multiple of the element size, or that falls
// outside the buffer, yields Length() == 0 and Data() == nil. The same
// policy applies to element access: out-of-range Get returns the zero
// element and out-of-range Set is a no-op. Callers cannot distinguish a
// real zero element from the out-of-range fallback, the way JavaScript
// typed arrays behave.
type TypedArray[T Element] struct {
	buffer     *ArrayBuffer
	data       []T
	byteOffset int
	byteLength int
}

// NewTypedArray allocates a fresh zeroed buffer holding length elements
// and returns a view over all of it.
func NewTypedArray[T Element](length int) TypedArray[T] {
	if length < 0 {
		length = 0
	}
	var zero T
	buf := NewArrayBuffer(length * int(unsafe.Sizeof(zero)))
	return NewTypedArrayView[T](buf, 0, 0)
}

// NewTypedArrayFromSlice copies src into a freshly owned buffer and
// returns a view over it. The view does not alias src.
func NewTypedArrayFromSlice[T Element](src []T) TypedArray[T] {
	ta := NewTypedArray[T](len(src))
	copy(ta.data, src)
	return ta
}

// NewTypedArrayView creates a zero-copy view over buffer starting at
// byteOffset. byteLength == 0 means "to the end of the buffer". A nil
// buffer is replaced by an empty one.
func NewTypedArrayView[T Element](buffer *ArrayBuffer, byteOffset, byteLength int) TypedArray[T] {
	if buffer == nil {
		buffer = NewArrayBuffer(0)
	}
	ta := TypedArray[T]{buffer: buffer}

	if byteLength == 0 {
		byteLength = buffer.ByteLength()
	}
	byteLength -= byteOffset

	var zero T
	size := int(unsafe.Sizeof(zero))
	if byteOffset < 0 || byteLength <= 0 ||
		byteOffset+byteLength > buffer.ByteLength() ||
		byteLength%size != 0 {
		return ta
	}

	ta.byteOffset = byteOffset
	ta.byteLength = byteLength
	ta.data = unsafe.Slice((*T)(unsafe.Pointer(&buffer.data[byteOffset])), byteLength/size)
	return ta
}

// Length returns the element count of the view.
func (ta TypedArray[T]) Length() int { return len(ta.data) }

// ByteOffset returns the view's starting offset within the buffer.
func (ta TypedArray[T]) ByteOffset() int { return ta.byteOffset }

// ByteLength returns the view's extent in bytes.
func (ta TypedArray[T]) ByteLength() int { return ta.byteLength }

// Buffer returns the viewed ArrayBuffer.
func (ta TypedArray[T]) Buffer() *ArrayBuffer { return ta.buffer }

// Data exposes the viewed elements without copying, or nil for an empty
// view.
func (ta TypedArray[T]) Data() []T { return ta.data }

// Get returns the element at index, or the zero element when index is
// out of range.
func (ta TypedArray[T]) Get(index int) T {
	if index >= 0 && index < len(ta.data) {
		return ta.data[index]
	}
	var zero T
	return zero
}

// Set stores value at index; out-of-range indexes are ignored.
func (ta TypedArray[T]) Set(index int, value T) {
	if index >= 0 && index < len(ta.data) {
		ta.data[index] = value
	}
}

// Slice returns an independently owned copy of the buffer bytes covering
// elements [begin, end), as a new ArrayBuffer. Indexes are in elements,
// measured from the start of the buffer; end == 0 means "to the end".
func (ta TypedArray[T]) Slice(begin, end int) *ArrayBuffer {
	if len(ta.data) == 0 {
		return NewArrayBuffer(0)
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	return ta.buffer.Slice(begin*size, end*size)
}

// Named aliases matching the JavaScript view types.
type (
	Int8Array   = TypedArray[int8]
	Uint8Array  = TypedArray[uint8]
	Int16Array  = TypedArray[int16]
	Uint16Array = TypedArray[uint16]
	Int32Array  = TypedArray[int32]
	Uint32Array = TypedArray[uint32]
)
