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

func send(t *testing.T, sim *VirtualPN532, cmd byte, args ...byte) []byte {
	t.Helper()
	out, err := frame.Command(cmd, args)
	require.NoError(t, err)
	_, err = sim.Write(out)
	require.NoError(t, err)

	buf := make([]byte, 512)
	n, err := sim.Read(buf)
	require.NoError(t, err)
	return buf[:n]
}

func payload(t *testing.T, raw []byte) []byte {
	t.Helper()
	require.GreaterOrEqual(t, len(raw), len(frame.AckFrame))
	require.Equal(t, frame.AckFrame, raw[:len(frame.AckFrame)])
	f, _, err := frame.Parse(raw[len(frame.AckFrame):])
	require.NoError(t, err)
	return f.Payload()
}

func TestVirtualPN532_Firmware(t *testing.T) {
	t.Parallel()

	sim := NewVirtualPN532(nil)
	got := payload(t, send(t, sim, CmdGetFirmwareVersion))
	assert.Equal(t, []byte{0x03, 0x32, 0x01, 0x06, 0x07}, got)
	assert.Equal(t, []byte{CmdGetFirmwareVersion}, sim.Commands())
}

func TestVirtualPN532_PollAndExchange(t *testing.T) {
	t.Parallel()

	card := NewCard(testIDm, testPMm)
	sim := NewVirtualPN532(card)

	poll := []byte{0x01, 0x01, 0x00, 0x88, 0xB4, 0x01, 0x00}

	// polling before SAM configuration finds nothing
	assert.Equal(t, []byte{0x4B, 0x00}, payload(t, send(t, sim, CmdInListPassiveTarget, poll...)))

	assert.Equal(t, []byte{0x15}, payload(t, send(t, sim, CmdSAMConfiguration, 0x01, 0x14, 0x01)))

	got := payload(t, send(t, sim, CmdInListPassiveTarget, poll...))
	require.Len(t, got, 3+20)
	assert.Equal(t, []byte{0x4B, 0x01, 0x01, 0x14, 0x01}, got[:5])
	assert.Equal(t, testIDm, got[5:13])

	got = payload(t, send(t, sim, CmdInDataExchange, append([]byte{0x01}, readPacket(0x00)...)...))
	assert.Equal(t, []byte{0x41, 0x00}, got[:2])
	assert.Equal(t, byte(0x1D), got[2])

	assert.Equal(t, []byte{0x53, 0x00}, payload(t, send(t, sim, CmdInRelease, 0x00)))

	// released target cannot be addressed
	got = payload(t, send(t, sim, CmdInDataExchange, append([]byte{0x01}, readPacket(0x00)...)...))
	assert.Equal(t, []byte{0x41, statusContext}, got)
}

func TestVirtualPN532_SilentCard(t *testing.T) {
	t.Parallel()

	sim := NewVirtualPN532(NewCard(testIDm, testPMm))
	send(t, sim, CmdSAMConfiguration, 0x01, 0x14, 0x01)
	send(t, sim, CmdInListPassiveTarget, 0x01, 0x01, 0x00, 0xFF, 0xFF, 0x00, 0x00)
	sim.SilenceCard(true)

	got := payload(t, send(t, sim, CmdInDataExchange, append([]byte{0x01}, readPacket(0x00)...)...))
	assert.Equal(t, []byte{0x41, statusTimeout}, got)
}

func TestVirtualPN532_ErrorFrame(t *testing.T) {
	t.Parallel()

	sim := NewVirtualPN532(nil)
	got := payload(t, send(t, sim, 0x60))
	assert.Equal(t, []byte{frame.ErrorTFI, 0x81}, got)
}

func TestVirtualPN532_CorruptAndNack(t *testing.T) {
	t.Parallel()

	sim := NewVirtualPN532(nil)
	sim.CorruptNextResponse()

	raw := send(t, sim, CmdGetFirmwareVersion)
	_, _, err := frame.Parse(raw[len(frame.AckFrame):])
	require.ErrorIs(t, err, frame.ErrDataChecksum)

	_, err = sim.Write(frame.NackFrame)
	require.NoError(t, err)
	buf := make([]byte, 64)
	n, err := sim.Read(buf)
	require.NoError(t, err)
	f, _, err := frame.Parse(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x32, 0x01, 0x06, 0x07}, f.Payload())
}

func TestVirtualPN532_DropAck(t *testing.T) {
	t.Parallel()

	sim := NewVirtualPN532(nil)
	sim.DropNextACK()
	raw := send(t, sim, CmdGetFirmwareVersion)
	f, _, err := frame.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, frame.KindInformation, f.Kind)
}

func TestVirtualPN532_Closed(t *testing.T) {
	t.Parallel()

	sim := NewVirtualPN532(nil)
	require.NoError(t, sim.Close())
	_, err := sim.Write([]byte{0x00})
	require.ErrorIs(t, err, ErrClosed)
	_, err = sim.Read(make([]byte, 4))
	require.ErrorIs(t, err, ErrClosed)
}

func TestFragmentedPort(t *testing.T) {
	t.Parallel()

	sim := NewVirtualPN532(nil)
	port := NewFragmentedPort(sim, FragmentConfig{Seed: 42})

	out, err := frame.Command(CmdGetFirmwareVersion, nil)
	require.NoError(t, err)
	_, err = port.Write(out)
	require.NoError(t, err)

	var got []byte
	buf := make([]byte, 64)
	for range 100 {
		n, err := port.Read(buf)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		got = append(got, buf[:n]...)
	}
	require.Equal(t, frame.AckFrame, got[:len(frame.AckFrame)])
	f, _, err := frame.Parse(got[len(frame.AckFrame):])
	require.NoError(t, err)
	assert.Equal(t, byte(0x03), f.Payload()[0])
}
