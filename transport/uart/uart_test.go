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

package uart_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-silica/internal/simulator"
	"github.com/ZaparooProject/go-silica/pn532"
	"github.com/ZaparooProject/go-silica/transport/uart"
)

var (
	testIDm = []byte{0x02, 0xFE, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	testPMm = []byte{0x00, 0xF1, 0x00, 0x00, 0x00, 0x01, 0x43, 0x00}
)

func newTransport(t *testing.T, port uart.Port) *uart.Transport {
	t.Helper()
	tr, err := uart.NewWithPort(port, "sim")
	require.NoError(t, err)
	require.NoError(t, tr.SetTimeout(200*time.Millisecond))
	return tr
}

func TestTransport_FirmwareVersion(t *testing.T) {
	t.Parallel()

	tr := newTransport(t, simulator.NewVirtualPN532(nil))
	res, err := tr.SendCommand(context.Background(), 0x02, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x32, 0x01, 0x06, 0x07}, res)
	assert.Equal(t, pn532.TransportUART, tr.Type())
}

func TestTransport_DeviceRoundTrip(t *testing.T) {
	t.Parallel()

	card := simulator.NewCard(testIDm, testPMm)
	block := bytes.Repeat([]byte{0x5A}, 16)
	card.SetBlock(0, block)

	sim := simulator.NewVirtualPN532(card)
	dev, err := pn532.New(newTransport(t, simulator.NewFragmentedPort(sim, simulator.FragmentConfig{Seed: 7})))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, dev.Init(ctx))
	assert.Equal(t, "PN532 v1.6", dev.FirmwareVersion().String())

	pol, err := dev.PollFeliCa(ctx, pn532.BrTyFeliCa212, 0x88B4)
	require.NoError(t, err)
	assert.Equal(t, testIDm, pol[2:10])

	read := append([]byte{0x10, 0x06}, testIDm...)
	read = append(read, 0x01, 0x0F, 0x09, 0x01, 0x80, 0x00)
	res, err := dev.DataExchange(ctx, read)
	require.NoError(t, err)
	require.Len(t, res, 29)
	assert.Equal(t, block, res[13:])

	require.NoError(t, dev.Close())
	assert.False(t, dev.Transport().IsConnected())
}

func TestTransport_RecoversCorruptedResponse(t *testing.T) {
	t.Parallel()

	sim := simulator.NewVirtualPN532(nil)
	tr := newTransport(t, sim)
	sim.CorruptNextResponse()

	res, err := tr.SendCommand(context.Background(), 0x02, nil)
	require.NoError(t, err)
	assert.Equal(t, byte(0x03), res[0])
}

func TestTransport_NACKRetriesExhausted(t *testing.T) {
	t.Parallel()

	sim := simulator.NewVirtualPN532(nil)
	tr := newTransport(t, sim)
	sim.CorruptResponses(true)

	_, err := tr.SendCommand(context.Background(), 0x02, nil)
	require.ErrorIs(t, err, pn532.ErrNACKReceived)
	require.ErrorIs(t, err, pn532.ErrFrameCorrupted)
	assert.True(t, pn532.IsRetryable(err))

	sim.CorruptResponses(false)
	_, err = tr.SendCommand(context.Background(), 0x02, nil)
	require.NoError(t, err)
}

func TestTransport_NoACK(t *testing.T) {
	t.Parallel()

	sim := simulator.NewVirtualPN532(nil)
	tr := newTransport(t, sim)
	sim.DropNextACK()

	_, err := tr.SendCommand(context.Background(), 0x02, nil)
	require.ErrorIs(t, err, pn532.ErrNoACK)
	assert.True(t, pn532.IsRetryable(err))
	require.NotNil(t, pn532.GetTrace(err))

	// the next command goes through
	_, err = tr.SendCommand(context.Background(), 0x02, nil)
	require.NoError(t, err)
}

func TestTransport_ErrorFrame(t *testing.T) {
	t.Parallel()

	tr := newTransport(t, simulator.NewVirtualPN532(nil))
	res, err := tr.SendCommand(context.Background(), 0x60, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7F, 0x81}, res)
}

func TestTransport_ContextCancelled(t *testing.T) {
	t.Parallel()

	tr := newTransport(t, simulator.NewVirtualPN532(nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.SendCommand(ctx, 0x02, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestTransport_Closed(t *testing.T) {
	t.Parallel()

	sim := simulator.NewVirtualPN532(nil)
	tr := newTransport(t, sim)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.False(t, tr.IsConnected())

	_, err := tr.SendCommand(context.Background(), 0x02, nil)
	require.ErrorIs(t, err, pn532.ErrTransportClosed)
	assert.True(t, pn532.IsFatal(err))
}

func TestTransport_DataTooLarge(t *testing.T) {
	t.Parallel()

	tr := newTransport(t, simulator.NewVirtualPN532(nil))
	_, err := tr.SendCommand(context.Background(), 0x40, make([]byte, 300))
	require.ErrorIs(t, err, pn532.ErrDataTooLarge)
}
