package contenthash

import (
	"crypto/sha256"
	"hash"
)

// dropboxBlockSize is the block length of the Dropbox content hash (4 MiB).
const dropboxBlockSize = 4 * 1024 * 1024

// dropboxHash is the Dropbox content_hash: the SHA-256 of the concatenated
// SHA-256 digests of each 4 MiB block of the input.
type dropboxHash struct {
	block  hash.Hash
	filled int
	sums   []byte
}

// NewDropbox returns a hash.Hash computing the Dropbox content hash.
func NewDropbox() hash.Hash {
	return &dropboxHash{block: sha256.New()}
}

func (d *dropboxHash) Write(p []byte) (int, error) {
	n := len(p)

	for len(p) > 0 {
		take := min(len(p), dropboxBlockSize-d.filled)
		d.block.Write(p[:take]) //nolint:errcheck // hash writes never fail

		d.filled += take
		p = p[take:]

		if d.filled == dropboxBlockSize {
			d.sums = d.block.Sum(d.sums)
			d.block.Reset()
			d.filled = 0
		}
	}

	return n, nil
}

func (d *dropboxHash) Sum(b []byte) []byte {
	sums := d.sums
	if d.filled > 0 {
		sums = d.block.Sum(append([]byte(nil), sums...))
	}

	total := sha256.Sum256(sums)

	return append(b, total[:]...)
}

func (d *dropboxHash) Reset() {
	d.block.Reset()
	d.filled = 0
	d.sums = d.sums[:0]
}

func (d *dropboxHash) Size() int      { return sha256.Size }
func (d *dropboxHash) BlockSize() int { return sha256.BlockSize }
