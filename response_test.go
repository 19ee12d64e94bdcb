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

var testIDm = []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF}

func TestDecodeBlock(t *testing.T) {
	t.Parallel()

	block := bytes.Repeat([]byte{0x11}, BlockSize)
	raw := append([]byte{0x01}, block...)
	original := append([]byte{}, raw...)

	res, err := Decode(ShapeBlock, raw)
	require.NoError(t, err)
	assert.Equal(t, block, res.Block)
	assert.Nil(t, res.MAC)
	assert.Equal(t, block, res.Bytes())
	assert.Equal(t, original, raw)

	res.Block[0] = 0xFF
	assert.Equal(t, original, raw, "result must not alias the input")
}

func TestDecodeBlockIgnoresTrailingBytes(t *testing.T) {
	t.Parallel()

	raw := append([]byte{0x01}, bytes.Repeat([]byte{0x22}, BlockSize+4)...)
	res, err := Decode(ShapeBlock, raw)
	require.NoError(t, err)
	assert.Len(t, res.Block, BlockSize)
}

func TestDecodeBlockWithMAC(t *testing.T) {
	t.Parallel()

	block := bytes.Repeat([]byte{0xAA}, BlockSize)
	mac := bytes.Repeat([]byte{0xBB}, BlockSize)
	raw := append(append([]byte{0x02}, block...), mac...)

	res, err := Decode(ShapeBlockWithMAC, raw)
	require.NoError(t, err)
	assert.Equal(t, block, res.Block)
	assert.Equal(t, mac, res.MAC)
	assert.Equal(t, append(append([]byte{}, block...), mac...), res.Bytes())
}

func TestDecodeErrorLog(t *testing.T) {
	t.Parallel()

	// Saved rejected read: length, code, IDm, service count, service, block count, element.
	saved := append([]byte{0x10, 0x06}, testIDm...)
	saved = append(saved, 0x01, 0x34, 0x12, 0x01, 0x80, 0x00)
	log := make([]byte, 2*BlockSize)
	copy(log, saved)
	raw := append([]byte{0x02}, log...)

	res, err := Decode(ShapeErrorLog, raw)
	require.NoError(t, err)
	assert.Equal(t, saved[1:], res.LastError)
	assert.Len(t, res.LastError, 15)

	code, ok := res.LastErrorCode()
	assert.True(t, ok)
	assert.Equal(t, byte(0x06), code)
	assert.Equal(t, testIDm, res.LastErrorIDm())
	assert.Equal(t, "06 01 23 45 67 89 AB CD EF 01 34 12 01 80 00", FormatHex(res.Bytes()))
}

func TestDecodeErrorLogLengthPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
		raw  []byte
	}{
		{name: "status 3 AB CD EF", raw: []byte{0x00, 0x03, 0xAB, 0xCD, 0xEF}, want: "AB CD"},
		{name: "length covers remainder", raw: []byte{0x00, 0x04, 0xAB, 0xCD, 0xEF}, want: "AB CD EF"},
		{name: "length 2", raw: []byte{0x00, 0x02, 0xAB, 0xCD, 0xEF}, want: "AB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := Decode(ShapeErrorLog, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, FormatHex(res.LastError))
		})
	}
}

func TestDecodeErrorLogShortLengths(t *testing.T) {
	t.Parallel()

	for _, length := range []byte{0x00, 0x01} {
		raw := append([]byte{0x02, length}, make([]byte, 31)...)
		res, err := Decode(ShapeErrorLog, raw)
		require.NoError(t, err)
		assert.Empty(t, res.LastError)
		_, ok := res.LastErrorCode()
		assert.False(t, ok)
		assert.Nil(t, res.LastErrorIDm())
	}
}

func TestDecodeTruncated(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		raw   []byte
		shape ResponseShape
	}{
		{name: "empty block", shape: ShapeBlock, raw: nil},
		{name: "short block", shape: ShapeBlock, raw: append([]byte{0x01}, make([]byte, 15)...)},
		{name: "status only", shape: ShapeBlock, raw: []byte{0x01}},
		{name: "short mac", shape: ShapeBlockWithMAC, raw: append([]byte{0x02}, make([]byte, 31)...)},
		{name: "empty error log", shape: ShapeErrorLog, raw: []byte{0x02}},
		{name: "length beyond remainder", shape: ShapeErrorLog, raw: []byte{0x02, 0x05, 0x06, 0x01}},
		{name: "length beyond both blocks", shape: ShapeErrorLog, raw: append([]byte{0x02, 0x40}, make([]byte, 31)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := Decode(tt.shape, tt.raw)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrTruncatedResponse)
			assert.True(t, IsProtocol(err))
		})
	}
}

func TestResultViews(t *testing.T) {
	t.Parallel()

	pmm := []byte{0x00, 0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	did := &Result{Shape: ShapeBlock, Block: append(append([]byte{}, testIDm...), pmm...)}
	assert.Equal(t, testIDm, did.IDm())
	assert.Equal(t, pmm, did.PMm())

	sys := &Result{Shape: ShapeBlock, Block: append([]byte{0x80, 0x00, 0x12, 0xFC}, make([]byte, 12)...)}
	assert.Equal(t, []uint16{0x8000, 0x12FC}, sys.SystemCodes())

	payload, err := BuildWritePayload(ServiceCodeCommand(), []byte{0x10, 0x0B, 0x20, 0x0B})
	require.NoError(t, err)
	ser := &Result{Shape: ShapeBlock, Block: payload}
	assert.Equal(t, []uint16{0x100B, 0x200B}, ser.ServiceCodes())

	empty := &Result{Shape: ShapeBlock, Block: make([]byte, BlockSize)}
	assert.Empty(t, empty.SystemCodes())

	none := &Result{Shape: ShapeErrorLog}
	assert.Nil(t, none.IDm())
	assert.Nil(t, none.SystemCodes())
}
