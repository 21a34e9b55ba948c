package contenthash

import (
	"encoding/binary"
	"hash"
)

const (
	quickXorSize  = 20  // digest bytes (160 bits)
	quickXorShift = 11  // bits the insertion point advances per input byte
	quickXorWidth = 160 // circular buffer width in bits
)

// quickXor is OneDrive's QuickXorHash: every input byte is XORed into a
// circular 160-bit buffer at a bit offset that advances by 11 per byte,
// and the total length is XORed into the last 8 bytes of the digest.
//
// The buffer is little-endian, so bit k lives in byte k/8. A byte landing
// at offset k covers at most two adjacent buffer bytes, and since the width
// is a whole number of bytes the second one wraps to index 0.
type quickXor struct {
	buf    [quickXorSize]byte
	offset int
	length uint64
}

// NewQuickXor returns a hash.Hash computing the QuickXorHash.
func NewQuickXor() hash.Hash {
	return &quickXor{}
}

func (q *quickXor) Write(p []byte) (int, error) {
	off := q.offset

	for _, b := range p {
		i, bit := off/8, off%8
		v := uint16(b) << bit

		q.buf[i] ^= byte(v)
		q.buf[(i+1)%quickXorSize] ^= byte(v >> 8)

		off += quickXorShift
		if off >= quickXorWidth {
			off -= quickXorWidth
		}
	}

	q.offset = off
	q.length += uint64(len(p))

	return len(p), nil
}

func (q *quickXor) Sum(b []byte) []byte {
	out := q.buf

	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], q.length)

	for i, x := range n {
		out[quickXorSize-8+i] ^= x
	}

	return append(b, out[:]...)
}

func (q *quickXor) Reset()         { *q = quickXor{} }
func (q *quickXor) Size() int      { return quickXorSize }
func (q *quickXor) BlockSize() int { return 64 }
