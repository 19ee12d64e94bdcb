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

// Package uart implements the PN532 host link over a serial port (HSU mode,
// 115200 8N1), as used by most USB-serial PN532 boards.
package uart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/ZaparooProject/go-silica/internal/frame"
	"github.com/ZaparooProject/go-silica/internal/syncutil"
	"github.com/ZaparooProject/go-silica/pn532"
	"go.bug.st/serial"
)

const (
	baudRate = 115200

	// ackScanLimit bounds how many bytes are read while looking for ACK.
	ackScanLimit = 32
	// maxNackRetries bounds NACK requested resends of a corrupted response.
	maxNackRetries = 3
	// wakeDelay lets the chip settle between ACK and response polling.
	wakeDelay = 6 * time.Millisecond
)

// wakeupSequence takes the PN532 out of power down in HSU mode.
var wakeupSequence = []byte{
	0x55, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// Port is the subset of serial.Port used by the transport.
type Port interface {
	io.ReadWriter
	Close() error
	SetReadTimeout(t time.Duration) error
	Drain() error
	ResetInputBuffer() error
}

// Transport implements pn532.Transport over a serial port.
type Transport struct {
	port     Port
	portName string
	mu       syncutil.Mutex
	timeout  time.Duration
	closed   bool
}

// pollInterval is the serial read timeout. Reads return empty after it so
// the transport can check deadlines. Windows drivers need a longer one.
func pollInterval() time.Duration {
	if runtime.GOOS == "windows" {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// New opens portName at 115200 8N1.
func New(portName string) (*Transport, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}
	t, err := NewWithPort(port, portName)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return t, nil
}

// NewWithPort wraps an already open port.
func NewWithPort(port Port, portName string) (*Transport, error) {
	if err := port.SetReadTimeout(pollInterval()); err != nil {
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}
	return &Transport{
		port:     port,
		portName: portName,
		timeout:  pn532.DefaultTimeout,
	}, nil
}

// SendCommand sends cmd and waits for ACK and the response frame. The wait
// ends at the context deadline, or after the transport timeout when the
// context has none.
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
	ex := &exchange{
		t:        t,
		ctx:      ctx,
		deadline: deadline,
		trace:    pn532.NewTraceBuffer("UART", t.portName, 16),
	}

	res, err := ex.run(cmd, args)
	if err != nil {
		return nil, ex.trace.WrapError(err)
	}
	return res, nil
}

// SetTimeout sets the default response timeout.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close closes the serial port.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("UART close failed: %w", err)
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
	return pn532.TransportUART
}

// exchange holds the state of one command/response round trip.
type exchange struct {
	ctx      context.Context
	t        *Transport
	trace    *pn532.TraceBuffer
	deadline time.Time
	pending  []byte
}

func (ex *exchange) run(cmd byte, args []byte) ([]byte, error) {
	out, err := frame.Command(cmd, args)
	if err != nil {
		return nil, pn532.NewDataTooLargeError("sendFrame", ex.t.portName)
	}

	_ = ex.t.port.ResetInputBuffer()
	if err := ex.write(wakeupSequence, "wakeup"); err != nil {
		return nil, err
	}
	if err := ex.write(out, fmt.Sprintf("Cmd 0x%02X", cmd)); err != nil {
		return nil, err
	}
	if err := ex.waitAck(); err != nil {
		return nil, err
	}

	time.Sleep(wakeDelay)

	res, err := ex.receive(cmd)
	if err != nil {
		return nil, err
	}
	if err := ex.write(frame.AckFrame, "ACK"); err != nil {
		return nil, err
	}
	return res, nil
}

func (ex *exchange) write(data []byte, note string) error {
	ex.trace.RecordTX(data, note)
	n, err := ex.t.port.Write(data)
	if err != nil {
		return fmt.Errorf("UART write failed: %w", err)
	}
	if n != len(data) {
		return pn532.NewTransportWriteError("write", ex.t.portName)
	}
	return drain(ex.t.port)
}

// waitAck reads until an ACK frame arrives. Bytes that precede the ACK are
// kept: some firmware sends the response frame first.
func (ex *exchange) waitAck() error {
	var window []byte
	scanned := 0
	buf := make([]byte, 1)
	for scanned < ackScanLimit {
		n, err := ex.read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			scanned++
			continue
		}
		window = append(window, buf[0])
		if len(window) < len(frame.AckFrame) {
			continue
		}
		if bytes.Equal(window, frame.AckFrame) {
			ex.trace.RecordRX(frame.AckFrame, "ACK")
			return nil
		}
		ex.pending = append(ex.pending, window[0])
		window = window[1:]
		scanned++
	}
	ex.trace.RecordTimeout("no ACK")
	return pn532.NewNoACKError("waitAck", ex.t.portName)
}

// receive reads the response frame, asking for a resend on checksum errors.
func (ex *exchange) receive(cmd byte) ([]byte, error) {
	buf := ex.pending
	ex.pending = nil
	chunk := make([]byte, 64)

	for nacks := 0; ; {
		f, consumed, err := frame.Parse(buf)
		switch {
		case err == nil && f.Kind == frame.KindInformation && f.TFI != frame.Pn532ToHost:
			buf = buf[consumed:]
			continue
		case err == nil && (f.Kind == frame.KindInformation || f.Kind == frame.KindError):
			ex.trace.RecordRX(buf[:consumed], "Response")
			return f.Payload(), nil
		case err == nil:
			// stray ACK/NACK
			buf = buf[consumed:]
			continue
		case errors.Is(err, frame.ErrIncomplete):
		default:
			ex.trace.RecordRX(buf, err.Error())
			nacks++
			if nacks > maxNackRetries {
				return nil, pn532.NewNACKExhaustedError("receiveFrame", ex.t.portName, maxNackRetries)
			}
			buf = nil
			if err := ex.write(frame.NackFrame, "NACK"); err != nil {
				return nil, err
			}
			continue
		}

		n, err := ex.read(chunk)
		if err != nil {
			if cmd == 0x4A && isTimeout(err) {
				// Some clones stay silent when InListPassiveTarget finds
				// nothing instead of reporting zero targets.
				return []byte{0x4B, 0x00}, nil
			}
			return nil, err
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		buf = append(buf, chunk[:n]...)
	}
}

// read performs one port read, failing once the exchange deadline or the
// context ends.
func (ex *exchange) read(p []byte) (int, error) {
	if err := ex.ctx.Err(); err != nil {
		return 0, err
	}
	if time.Now().After(ex.deadline) {
		ex.trace.RecordTimeout("read")
		return 0, pn532.NewTimeoutError("read", ex.t.portName)
	}
	n, err := ex.t.port.Read(p)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", pn532.ErrTransportRead, err)
	}
	return n, nil
}

func isTimeout(err error) bool {
	return errors.Is(err, pn532.ErrTransportTimeout)
}

// drain flushes the output buffer, retrying interrupted system calls.
func drain(port Port) error {
	delay := 2 * time.Millisecond
	var err error
	for range 3 {
		if err = port.Drain(); err == nil || !isInterruptedSystemCall(err) {
			break
		}
		time.Sleep(delay)
		delay *= 2
	}
	if err != nil {
		return fmt.Errorf("UART drain failed: %w", err)
	}
	return nil
}

func isInterruptedSystemCall(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "interrupted system call") || strings.Contains(msg, "eintr")
}

var _ pn532.Transport = (*Transport)(nil)
