package bandwidth

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidLimit(t *testing.T) {
	_, err := New("fast/s", nil)
	assert.Error(t, err)
}

func TestNew_UnlimitedIsNil(t *testing.T) {
	l, err := New("0", nil)
	require.NoError(t, err)
	assert.Nil(t, l)

	// Nil limiter passes readers and writers through untouched.
	r := strings.NewReader("x")
	assert.Same(t, io.Reader(r), l.WrapReader(context.Background(), r))

	var buf bytes.Buffer
	assert.Same(t, io.Writer(&buf), l.WrapWriter(context.Background(), &buf))
}

func TestLimiter_CopiesAllBytes(t *testing.T) {
	l, err := New("1MB/s", nil)
	require.NoError(t, err)
	require.NotNil(t, l)

	payload := strings.Repeat("a", 4096)

	var out bytes.Buffer
	n, err := io.Copy(l.WrapWriter(context.Background(), &out), l.WrapReader(context.Background(), strings.NewReader(payload)))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, out.String())
}

func TestLimiter_CanceledContext(t *testing.T) {
	l, err := New("1KB/s", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Larger than the burst so the limiter must wait.
	_, err = io.Copy(io.Discard, l.WrapReader(ctx, strings.NewReader(strings.Repeat("a", 10_000))))
	assert.ErrorIs(t, err, context.Canceled)
}
