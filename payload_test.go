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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapPairs(t *testing.T) {
	t.Parallel()

	got, err := SwapPairs([]byte{0x10, 0x0B, 0x20, 0x0B})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0B, 0x10, 0x0B, 0x20}, got)

	empty, err := SwapPairs(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = SwapPairs([]byte{0x01, 0x02, 0x03})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadParamLength)
}

func TestSwapPairsIsSelfInverse(t *testing.T) {
	t.Parallel()

	inputs := [][]byte{
		{},
		{0xAA, 0xBB},
		{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07},
		bytes.Repeat([]byte{0x12, 0x34}, 8),
	}
	for _, in := range inputs {
		original := append([]byte{}, in...)

		once, err := SwapPairs(in)
		require.NoError(t, err)
		assert.Len(t, once, len(in))

		twice, err := SwapPairs(once)
		require.NoError(t, err)
		assert.Equal(t, original, twice)
		assert.Equal(t, original, in, "input must not be modified")
	}
}

func TestBuildWritePayload(t *testing.T) {
	t.Parallel()

	idm := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF}
	pmm := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	raw := bytes.Repeat([]byte{0x5A}, BlockSize)

	tests := []struct {
		wantErr error
		name    string
		cmd     Command
		param   []byte
		want    []byte
	}{
		{
			name:  "idm gets default pmm",
			cmd:   IDmCommand(),
			param: idm,
			want:  append(append([]byte{}, idm...), DefaultPMm...),
		},
		{
			name:  "idm with pmm",
			cmd:   IDmCommand(),
			param: append(append([]byte{}, idm...), pmm...),
			want:  append(append([]byte{}, idm...), pmm...),
		},
		{name: "idm too short", cmd: IDmCommand(), param: idm[:4], wantErr: ErrBadParamLength},
		{name: "idm 12 bytes", cmd: IDmCommand(), param: make([]byte, 12), wantErr: ErrBadParamLength},
		{
			name:  "single system code",
			cmd:   SystemCodeCommand(),
			param: []byte{0x12, 0xFC},
			want:  append([]byte{0x12, 0xFC}, make([]byte, 14)...),
		},
		{
			name:  "two system codes",
			cmd:   SystemCodeCommand(),
			param: []byte{0x80, 0x00, 0xC0, 0x00},
			want:  append([]byte{0x80, 0x00, 0xC0, 0x00}, make([]byte, 12)...),
		},
		{
			name:  "ser 123B",
			cmd:   ServiceCodeCommand(),
			param: []byte{0x12, 0x3B},
			want:  append([]byte{0x3B, 0x12}, make([]byte, 14)...),
		},
		{name: "odd system code", cmd: SystemCodeCommand(), param: []byte{0x12, 0xFC, 0x00}, wantErr: ErrBadParamLength},
		{name: "five system codes", cmd: SystemCodeCommand(), param: make([]byte, 10), wantErr: ErrBadParamLength},
		{name: "no system code", cmd: SystemCodeCommand(), param: []byte{}, wantErr: ErrBadParamLength},
		{
			name:  "service codes are swapped",
			cmd:   ServiceCodeCommand(),
			param: []byte{0x10, 0x0B, 0x20, 0x0B},
			want:  append([]byte{0x0B, 0x10, 0x0B, 0x20}, make([]byte, 12)...),
		},
		{
			name:  "four service codes",
			cmd:   ServiceCodeCommand(),
			param: []byte{0x10, 0x0B, 0x20, 0x0B, 0x30, 0x0B, 0x40, 0x0B},
			want: append([]byte{0x0B, 0x10, 0x0B, 0x20, 0x0B, 0x30, 0x0B, 0x40},
				make([]byte, 8)...),
		},
		{name: "odd service code", cmd: ServiceCodeCommand(), param: []byte{0x10}, wantErr: ErrBadParamLength},
		{name: "five service codes", cmd: ServiceCodeCommand(), param: make([]byte, 10), wantErr: ErrBadParamLength},
		{name: "raw block", cmd: RawBlockCommand(3), param: raw, want: raw},
		{name: "raw block short", cmd: RawBlockCommand(3), param: raw[:15], wantErr: ErrBadParamLength},
		{name: "raw block long", cmd: RawBlockCommand(3), param: append(raw, 0x00), wantErr: ErrBadParamLength},
		{name: "raw block out of range", cmd: RawBlockCommand(12), param: raw, wantErr: ErrBlockOutOfRange},
		{name: "error log", cmd: ErrorLogCommand(), param: raw, wantErr: ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := BuildWritePayload(tt.cmd, tt.param)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.NotEmpty(t, Message(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, BlockSize)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildWritePayloadMessages(t *testing.T) {
	t.Parallel()

	_, err := BuildWritePayload(ServiceCodeCommand(), []byte{0x10, 0x0B, 0x20})
	assert.Equal(t, "Service codes must be in 2-byte pairs", Message(err))

	_, err = BuildWritePayload(SystemCodeCommand(), make([]byte, 10))
	assert.Equal(t, "System code must be between 1 and 4 2-byte pairs", Message(err))

	_, err = BuildWritePayload(ServiceCodeCommand(), make([]byte, 10))
	assert.Equal(t, "Number of service codes must be between 1 and 4", Message(err))

	_, err = BuildWritePayload(IDmCommand(), []byte{0x01})
	assert.Equal(t, "IDm must be 8 bytes, PMm optional 8 bytes (total 16 bytes)", Message(err))
}
