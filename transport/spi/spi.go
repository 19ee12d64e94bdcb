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

// Package spi implements the PN532 host link over SPI using periph.io. The
// PN532 shifts bytes LSB first; the bus runs MSB first and every byte is
// bit reversed in software.
package spi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ZaparooProject/go-silica/internal/frame"
	"github.com/ZaparooProject/go-silica/internal/syncutil"
	"github.com/ZaparooProject/go-silica/pn532"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	opStatRead  = 0x02
	opDataWrite = 0x01
	opDataRead  = 0x03
	ready       = 0x01

	defaultFreq = 1 * physic.MegaHertz
	// CPOL=0, CPHA=0
	mode = spi.Mode0

	maxNackRetries = 3
	pollDelay      = 2 * time.Millisecond
)

const readSize = frame.MaxDataLength + frame.Overhead

// Transport implements pn532.Transport over SPI.
type Transport struct {
	conn     conn.Conn
	port     io.Closer
	portName string
	mu       syncutil.Mutex
	timeout  time.Duration
	closed   bool
}

// New opens portName through the periph registry at 1 MHz, mode 0.
func New(portName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}
	c, err := port.Connect(defaultFreq, mode, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}

	t := NewWithConn(c, portName)
	t.port = port
	t.wakeup()
	return t, nil
}

// NewWithConn uses c as the SPI connection to the PN532.
func NewWithConn(c conn.Conn, portName string) *Transport {
	return &Transport{
		conn:     c,
		portName: portName,
		timeout:  pn532.DefaultTimeout,
	}
}

// wakeup toggles chip select once; the PN532 leaves power down on it.
func (t *Transport) wakeup() {
	time.Sleep(time.Millisecond)
	_ = t.conn.Tx([]byte{0x00}, nil)
	time.Sleep(time.Millisecond)
}

func reverseBit(b byte) byte {
	var out byte
	for range 8 {
		out = out<<1 | b&1
		b >>= 1
	}
	return out
}

func reverseBytes(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = reverseBit(b)
	}
	return out
}

// SendCommand writes the command frame, then polls the status register for
// the ACK and the response.
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
	trace := pn532.NewTraceBuffer("SPI", t.portName, 16)

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
		return nil, pn532.NewDataTooLargeError("sendFrame", t.portName)
	}
	if err := t.write(trace, out, fmt.Sprintf("Cmd 0x%02X", cmd)); err != nil {
		return nil, err
	}

	if err := t.waitReady(ctx, deadline); err != nil {
		if errors.Is(err, pn532.ErrTransportTimeout) {
			trace.RecordTimeout("no ACK")
			return nil, pn532.NewNoACKError("waitAck", t.portName)
		}
		return nil, err
	}
	ack, err := t.read(len(frame.AckFrame))
	if err != nil {
		return nil, err
	}
	trace.RecordRX(ack, "ACK")
	if !bytes.Equal(ack, frame.AckFrame) {
		return nil, pn532.NewNoACKError("waitAck", t.portName)
	}

	for nacks := 0; ; {
		if err := t.waitReady(ctx, deadline); err != nil {
			trace.RecordTimeout("response")
			return nil, err
		}
		buf, err := t.read(readSize)
		if err != nil {
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

		trace.RecordRX(buf[:16], err.Error())
		nacks++
		if nacks > maxNackRetries {
			return nil, pn532.NewNACKExhaustedError("receiveFrame", t.portName, maxNackRetries)
		}
		if err := t.write(trace, frame.NackFrame, "NACK"); err != nil {
			return nil, err
		}
	}
}

func (t *Transport) write(trace *pn532.TraceBuffer, data []byte, note string) error {
	trace.RecordTX(data, note)
	w := append([]byte{reverseBit(opDataWrite)}, reverseBytes(data)...)
	if err := t.conn.Tx(w, make([]byte, len(w))); err != nil {
		return fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err)
	}
	return nil
}

func (t *Transport) read(n int) ([]byte, error) {
	w := make([]byte, 1+n)
	w[0] = reverseBit(opDataRead)
	r := make([]byte, len(w))
	if err := t.conn.Tx(w, r); err != nil {
		return nil, fmt.Errorf("%w: %w", pn532.ErrTransportRead, err)
	}
	return reverseBytes(r[1:]), nil
}

func (t *Transport) waitReady(ctx context.Context, deadline time.Time) error {
	w := []byte{reverseBit(opStatRead), 0x00}
	r := make([]byte, 2)
	for {
		if err := t.conn.Tx(w, r); err != nil {
			return fmt.Errorf("SPI status read failed: %w", err)
		}
		if reverseBit(r[1])&ready != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return pn532.NewTimeoutError("waitReady", t.portName)
		}

		timer := time.NewTimer(pollDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// SetTimeout sets the default response timeout.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close releases the SPI port.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.port != nil {
		if err := t.port.Close(); err != nil {
			return fmt.Errorf("failed to close SPI port: %w", err)
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
	return pn532.TransportSPI
}

var _ pn532.Transport = (*Transport)(nil)
