// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package waveform

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBlock(t *testing.T) {
	payload := bytes.Repeat([]byte{0x80}, 1000)

	tests := []struct {
		name    string
		raw     []byte
		want    []byte
		wantErr error
	}{
		{
			name: "four digit length",
			raw:  append([]byte("#41000"), payload...),
			want: payload,
		},
		{
			name: "trailing terminator ignored",
			raw:  append(append([]byte("#41000"), payload...), '\n'),
			want: payload,
		},
		{
			name: "single digit length",
			raw:  []byte("#15hello"),
			want: []byte("hello"),
		},
		{
			name: "empty payload",
			raw:  []byte("#10"),
			want: []byte{},
		},
		{
			name:    "insufficient payload",
			raw:     []byte("#410"),
			wantErr: ErrLengthMismatch,
		},
		{
			name:    "payload shorter than declared",
			raw:     append([]byte("#41000"), payload[:999]...),
			wantErr: ErrLengthMismatch,
		},
		{
			name:    "missing marker",
			raw:     append([]byte("41000"), payload...),
			wantErr: ErrBadHeader,
		},
		{
			name:    "ascii response instead of block",
			raw:     []byte("1.25E-3\n"),
			wantErr: ErrBadHeader,
		},
		{
			name:    "indefinite length form",
			raw:     []byte("#0abc\n"),
			wantErr: ErrBadHeader,
		},
		{
			name:    "non digit count",
			raw:     []byte("#x12"),
			wantErr: ErrBadHeader,
		},
		{
			name:    "non digit length",
			raw:     []byte("#21a0123456789"),
			wantErr: ErrBadHeader,
		},
		{
			name:    "empty",
			raw:     nil,
			wantErr: ErrLengthMismatch,
		},
		{
			name:    "marker only",
			raw:     []byte("#"),
			wantErr: ErrLengthMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBlock(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseHeader(t *testing.T) {
	headerLen, dataLen, err := ParseHeader([]byte("#6002500"))
	require.NoError(t, err)
	assert.Equal(t, 8, headerLen)
	assert.Equal(t, 2500, dataLen)

	_, _, err = ParseHeader([]byte("#60025"))
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestEncodeBlock_RoundTripRandom(t *testing.T) {
	seed := time.Now().UnixNano()
	if s := os.Getenv("FUZZ_SEED"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			seed = v
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	rng := rand.New(rand.NewSource(seed))

	for i := 0; i < 200; i++ {
		data := make([]byte, rng.Intn(20000))
		rng.Read(data)

		block := EncodeBlock(data)
		require.Equal(t, byte('#'), block[0])

		got, err := DecodeBlock(block)
		require.NoError(t, err)
		require.Equal(t, data, got)

		if len(data) > 0 {
			_, err = DecodeBlock(block[:len(block)-1])
			require.ErrorIs(t, err, ErrLengthMismatch)
		}
	}
}
