// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package silica

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		parts   []string
		want    []byte
		wantErr bool
	}{
		{name: "single token", parts: []string{"12FC"}, want: []byte{0x12, 0xFC}},
		{name: "joined tokens", parts: []string{"8000", "C000"}, want: []byte{0x80, 0x00, 0xC0, 0x00}},
		{name: "inner whitespace", parts: []string{"AB CD\tEF"}, want: []byte{0xAB, 0xCD, 0xEF}},
		{name: "lower case", parts: []string{"abcdef"}, want: []byte{0xAB, 0xCD, 0xEF}},
		{name: "pairs across tokens", parts: []string{"AB", "CD EF"}, want: []byte{0xAB, 0xCD, 0xEF}},
		{name: "pair split across tokens", parts: []string{"A", "B"}, wantErr: true},
		{name: "service code split across tokens", parts: []string{"1", "23B"}, wantErr: true},
		{name: "service code split by space", parts: []string{"1 23B"}, wantErr: true},
		{name: "odd digit count", parts: []string{"ABC"}, wantErr: true},
		{name: "non hex", parts: []string{"ZZ"}, wantErr: true},
		{name: "prefixed", parts: []string{"0x12"}, wantErr: true},
		{name: "empty", parts: []string{""}, wantErr: true},
		{name: "no tokens", parts: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := DecodeHex(tt.parts...)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidHex)
				assert.True(t, IsValidation(err))
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatHex(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "AB CD", FormatHex([]byte{0xAB, 0xCD}))
	assert.Equal(t, "00", FormatHex([]byte{0x00}))
	assert.Equal(t, "(empty)", FormatHex(nil))
}

func TestFormatHexRoundTrip(t *testing.T) {
	t.Parallel()

	data := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF}
	decoded, err := DecodeHex(FormatHex(data))
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}
