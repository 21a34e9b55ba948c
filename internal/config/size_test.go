package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"", 0},
		{"0", 0},
		{"512", 512},
		{"10B", 10},
		{"1KB", 1000},
		{"1KiB", 1024},
		{"1.5MB", 1_500_000},
		{"2MiB", 2 * 1024 * 1024},
		{"1GB", 1_000_000_000},
		{"1TiB", 1024 * 1024 * 1024 * 1024},
		{" 3 kb ", 3000},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSize_Invalid(t *testing.T) {
	for _, in := range []string{"abc", "-5", "-1MB", "MB"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseSize(in)
			assert.Error(t, err)
		})
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"0", 0},
		{"100KB/s", 100_000},
		{"5MiB/s", 5 * 1024 * 1024},
		{"1mb/S", 1_000_000},
		{"2048", 2048},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseRate("fast/s")
	assert.Error(t, err)
}

func TestEditDistance(t *testing.T) {
	assert.Equal(t, 0, editDistance("abc", "abc"))
	assert.Equal(t, 1, editDistance("log_leve", "log_level"))
	assert.Equal(t, 3, editDistance("", "abc"))
	assert.Equal(t, 3, editDistance("kitten", "sitting"))
	assert.Equal(t, "log_level", suggest("LOG_LEVL", knownGlobalKeys))
	assert.Equal(t, "", suggest("completely_different", knownGlobalKeys))
}
