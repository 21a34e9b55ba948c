package contenthash

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudboss/cloudboss/internal/cloud"
)

func counting(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}

	return b
}

func TestQuickXor_KnownDigests(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"empty", nil, "AAAAAAAAAAAAAAAAAAAAAAAAAAA="},
		{"hello", []byte("hello"), "aCgDG9jwBgAAAAAABQAAAAAAAAA="},
		{"hello world", []byte("hello world"), "aCgDG9jwBhDc4Q1yawMZAAAAAAA="},
		{"zeros", make([]byte, 1000), "AAAAAAAAAAAAAAAA6AMAAAAAAAA="},
		{"ones", bytes.Repeat([]byte{0xFF}, 1000), "Yxvb2MY2trGNbWxj89jYOc5xjnM="},
		{"counting", counting(1024), "h7xr2dbCayZCQYR9KKhlwDuT4UI="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := QuickXor(bytes.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuickXor_SplitWrites(t *testing.T) {
	input := counting(1024)

	whole := NewQuickXor()
	whole.Write(input) //nolint:errcheck

	split := NewQuickXor()
	for _, n := range []int{1, 7, 64, 13, 128, 159, 160, 161} {
		split.Write(input[:n]) //nolint:errcheck
		input = input[n:]
	}
	split.Write(input) //nolint:errcheck

	assert.Equal(t, whole.Sum(nil), split.Sum(nil))
}

func TestQuickXor_SumDoesNotChangeState(t *testing.T) {
	h := NewQuickXor()
	h.Write([]byte("hello")) //nolint:errcheck

	first := h.Sum(nil)
	assert.Equal(t, first, h.Sum(nil))

	h.Write([]byte(" world")) //nolint:errcheck
	assert.NotEqual(t, first, h.Sum(nil))

	h.Reset()
	assert.Equal(t, make([]byte, quickXorSize), h.Sum(nil))
	assert.Equal(t, quickXorSize, h.Size())
}

func TestDropbox_KnownDigests(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"empty", nil, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"hello world", []byte("hello world"), "bc62d4b80d9e36da29c16c5d4d9f11731f36052c72401a76c23c0fb5a9b74423"},
		{"one block", bytes.Repeat([]byte("a"), dropboxBlockSize), "907a506cf5e706bda5c7a29b43c9c65d8344bd2fa2f22339b359c214812af5a1"},
		{"block plus one", bytes.Repeat([]byte("a"), dropboxBlockSize+1), "5f858b62ccd88447586305aec6fd53c96747cfebf527cbba129a6dfed47d9624"},
		{"two blocks plus", bytes.Repeat([]byte("a"), 2*dropboxBlockSize+5), "71de3e55c54361d9bd11806037eab0a15b4a1876ccb9f52bd6a87e4a4badbf0d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Dropbox(bytes.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDropbox_SumMidBlockKeepsState(t *testing.T) {
	h := NewDropbox()
	h.Write(bytes.Repeat([]byte("a"), dropboxBlockSize)) //nolint:errcheck
	h.Write([]byte("a"))                                 //nolint:errcheck

	first := h.Sum(nil)
	assert.Equal(t, first, h.Sum(nil))

	want, err := Dropbox(bytes.NewReader(bytes.Repeat([]byte("a"), dropboxBlockSize+1)))
	require.NoError(t, err)
	assert.Equal(t, want, hex.EncodeToString(first))
}

func TestVerify(t *testing.T) {
	good, err := QuickXor(strings.NewReader("data"))
	require.NoError(t, err)

	require.NoError(t, Verify("/f", good, strings.NewReader("data"), QuickXor))
	require.NoError(t, Verify("/f", "", strings.NewReader("data"), QuickXor), "missing digest is accepted")

	err = Verify("/f", good, strings.NewReader("other"), QuickXor)
	var ce *cloud.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, cloud.CodeGeneric, ce.Code)
	assert.Contains(t, err.Error(), "content hash mismatch for /f")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestVerify_ReadError(t *testing.T) {
	err := Verify("/f", "x", io.MultiReader(strings.NewReader("a"), failingReader{}), Dropbox)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}
