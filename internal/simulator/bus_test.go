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

package simulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-silica/internal/frame"
)

func TestI2CConn(t *testing.T) {
	t.Parallel()

	sim := NewVirtualPN532(nil)
	c := NewI2CConn(sim)

	status := make([]byte, 1)
	require.NoError(t, c.Tx(nil, status))
	assert.Equal(t, byte(0x00), status[0])

	out, err := frame.Command(CmdGetFirmwareVersion, nil)
	require.NoError(t, err)
	require.NoError(t, c.Tx(out, nil))

	require.NoError(t, c.Tx(nil, status))
	assert.Equal(t, byte(i2cReady), status[0])

	ack := make([]byte, 1+len(frame.AckFrame))
	require.NoError(t, c.Tx(nil, ack))
	assert.Equal(t, frame.AckFrame, ack[1:])

	res := make([]byte, 32)
	require.NoError(t, c.Tx(nil, res))
	assert.Equal(t, byte(i2cReady), res[0])
	f, _, err := frame.Parse(res[1:])
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x32, 0x01, 0x06, 0x07}, f.Payload())
}

func TestSPIConn(t *testing.T) {
	t.Parallel()

	sim := NewVirtualPN532(nil)
	c := NewSPIConn(sim)

	status := make([]byte, 2)
	require.NoError(t, c.Tx([]byte{reverse(spiStatRead), 0x00}, status))
	assert.Equal(t, byte(0x00), status[1])

	out, err := frame.Command(CmdGetFirmwareVersion, nil)
	require.NoError(t, err)
	w := []byte{reverse(spiDataWrite)}
	for _, b := range out {
		w = append(w, reverse(b))
	}
	require.NoError(t, c.Tx(w, make([]byte, len(w))))

	require.NoError(t, c.Tx([]byte{reverse(spiStatRead), 0x00}, status))
	assert.Equal(t, reverse(i2cReady), status[1])

	r := make([]byte, 1+len(frame.AckFrame))
	require.NoError(t, c.Tx(append([]byte{reverse(spiDataRead)}, make([]byte, len(frame.AckFrame))...), r))
	for i := range r[1:] {
		r[1+i] = reverse(r[1+i])
	}
	assert.Equal(t, frame.AckFrame, r[1:])
}

func TestReverse(t *testing.T) {
	t.Parallel()

	assert.Equal(t, byte(0x80), reverse(0x01))
	assert.Equal(t, byte(0x40), reverse(0x02))
	assert.Equal(t, byte(0xC0), reverse(0x03))
	for b := range 256 {
		assert.Equal(t, byte(b), reverse(reverse(byte(b))))
	}
}
