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

// Package i2c implements the PN532 host link over I2C using periph.io.
package i2c

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ZaparooProject/go-silica/internal/frame"
	"github.com/ZaparooProject/go-silica/internal/syncutil"
	"github.com/ZaparooProject/go-silica/pn532"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// Address is the fixed 7-bit I2C address of the PN532.
	Address = 0x24

	ready        = 0x01
	maxClockFreq = 400 * physic.KiloHertz

	maxNackRetries = 3
	maxReadyDelay  = 16 * time.Millisecond
)

// readSize covers the largest normal information frame.
const readSize = frame.MaxDataLength + frame.Overhead

// Transport implements pn532.Transport over I2C.
type Transport struct {
	dev     conn.Conn
	bus     io.Closer
	busName string
	mu      syncutil.Mutex
	timeout time.Duration
	closed  bool
}

// parsePath strips an optional ":address" suffix from a bus path such as
// "/dev/i2c-1:0x24" or "1".
func parsePath(path string) string {
	bus, _, _ := strings.Cut(path, ":")
	return bus
}

// New opens busName through the periph registry and addresses the PN532 on
// it.
func New(busName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(parsePath(busName))
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}
	// not every adapter supports setting the clock
	_ = bus.SetSpeed(maxClockFreq)

	t := NewWithConn(&i2c.Dev{Addr: Address, Bus: bus}, busName)
	t.bus = bus
	return t, nil
}

// NewWithConn uses dev as the PN532 I2C target.
func NewWithConn(dev conn.Conn, busName string) *Transport {
	return &Transport{
		dev:     dev,
		busName: busName,
		timeout: pn532.DefaultTimeout,
	}
}

// SendCommand writes the command frame, then polls the ready byte for the
// ACK and the response.
func (t *Transport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, pn532.ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	trace := pn532.NewTraceBuffer("I2C", t.busName, 16)

	res, err := t.exchange(ctx, deadline, trace, cmd, args)
	if err != nil {
		return nil, trace.WrapError(err)
	}
	return res, nil
}

func (t *Transport) exchange(
	ctx context.Context, deadline time.Time, trace *pn532.TraceBuffer, cmd byte, args []byte,
) ([]byte, error) {
	out, err := frame.Command(cmd, args)
	if err != nil {
		return nil, pn532.NewDataTooLargeError("sendFrame", t.busName)
	}
	if err := t.write(trace, out, fmt.Sprintf("Cmd 0x%02X", cmd)); err != nil {
		return nil, err
	}

	if err := t.waitReady(ctx, deadline); err != nil {
		if errors.Is(err, pn532.ErrTransportTimeout) {
			trace.RecordTimeout("no ACK")
			return nil, pn532.NewNoACKError("waitAck", t.busName)
		}
		return nil, err
	}
	ack := make([]byte, len(frame.AckFrame))
	if err := t.read(ack); err != nil {
		return nil, err
	}
	trace.RecordRX(ack, "ACK")
	if !bytes.Equal(ack, frame.AckFrame) {
		return nil, pn532.NewNoACKError("waitAck", t.busName)
	}

	for nacks := 0; ; {
		if err := t.waitReady(ctx, deadline); err != nil {
			trace.RecordTimeout("response")
			return nil, err
		}
		buf := make([]byte, readSize)
		if err := t.read(buf); err != nil {
			return nil, err
		}

		f, n, err := frame.Parse(buf)
		if err == nil {
			trace.RecordRX(buf[:n], "Response")
			if err := t.write(trace, frame.AckFrame, "ACK"); err != nil {
				return nil, err
			}
			return f.Payload(), nil
		}

		trace.RecordRX(buf[:min(len(buf), 16)], err.Error())
		nacks++
		if nacks > maxNackRetries {
			return nil, pn532.NewNACKExhaustedError("receiveFrame", t.busName, maxNackRetries)
		}
		if err := t.write(trace, frame.NackFrame, "NACK"); err != nil {
			return nil, err
		}
	}
}

func (t *Transport) write(trace *pn532.TraceBuffer, data []byte, note string) error {
	trace.RecordTX(data, note)
	if err := t.dev.Tx(data, nil); err != nil {
		return fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err)
	}
	return nil
}

// read performs one read transaction and strips the status byte.
func (t *Transport) read(buf []byte) error {
	tmp := make([]byte, 1+len(buf))
	if err := t.dev.Tx(nil, tmp); err != nil {
		return fmt.Errorf("%w: %w", pn532.ErrTransportRead, err)
	}
	if tmp[0]&ready == 0 {
		return pn532.NewTransportNotReadyError("read", t.busName)
	}
	copy(buf, tmp[1:])
	return nil
}

// waitReady polls the status byte with exponential backoff until the PN532
// has data for the host.
func (t *Transport) waitReady(ctx context.Context, deadline time.Time) error {
	delay := time.Millisecond
	status := make([]byte, 1)
	for {
		if err := t.dev.Tx(nil, status); err != nil {
			return fmt.Errorf("%w: %w", pn532.ErrTransportRead, err)
		}
		if status[0]&ready != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return pn532.NewTimeoutError("waitReady", t.busName)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(2*delay, maxReadyDelay)
	}
}

// SetTimeout sets the default response timeout.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close releases the bus.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.bus != nil {
		if err := t.bus.Close(); err != nil {
			return fmt.Errorf("failed to close I2C bus: %w", err)
		}
	}
	return nil
}

// IsConnected returns true until Close is called.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportI2C
}

var _ pn532.Transport = (*Transport)(nil)
