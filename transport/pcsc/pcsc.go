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

// Package pcsc drives a PN532 embedded in a PC/SC reader such as the ACS
// ACR122U. Commands travel as pseudo-APDUs through the reader's escape
// channel, which works with no card in the field.
package pcsc

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-silica/internal/syncutil"
	"github.com/ZaparooProject/go-silica/pn532"
	"github.com/ebfe/scard"
	"go.uber.org/multierr"
)

const (
	hostToPn532 = 0xD4
	pn532ToHost = 0xD5
	errorTFI    = 0x7F

	// maxCommandLen is the largest Lc of the pseudo-APDU.
	maxCommandLen = 0xFF
)

var (
	pseudoAPDUHeader = []byte{0xFF, 0x00, 0x00, 0x00}
	statusOK         = []byte{0x90, 0x00}
)

// Card is the part of *scard.Card used by the transport.
type Card interface {
	Control(ioctl uint32, in []byte) ([]byte, error)
	Disconnect(d scard.Disposition) error
}

// Transport implements pn532.Transport over PC/SC.
type Transport struct {
	card    Card
	release func() error
	reader  string
	mu      syncutil.Mutex
	timeout time.Duration
	closed  bool
}

// New connects to reader in direct mode.
func New(reader string) (*Transport, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("failed to establish PC/SC context: %w", err)
	}
	card, err := ctx.Connect(reader, scard.ShareDirect, scard.ProtocolUndefined)
	if err != nil {
		_ = ctx.Release()
		return nil, fmt.Errorf("failed to connect to reader %s: %w", reader, err)
	}

	t := NewWithCard(card, reader)
	t.release = ctx.Release
	return t, nil
}

// NewWithCard wraps an already connected card handle.
func NewWithCard(card Card, reader string) *Transport {
	return &Transport{
		card:    card,
		reader:  reader,
		timeout: pn532.DefaultTimeout,
	}
}

// buildAPDU wraps a PN532 command in the reader's direct transmit
// pseudo-APDU: FF 00 00 00 Lc D4 cmd args.
func buildAPDU(cmd byte, args []byte) ([]byte, error) {
	lc := 2 + len(args)
	if lc > maxCommandLen {
		return nil, pn532.ErrDataTooLarge
	}
	apdu := make([]byte, 0, len(pseudoAPDUHeader)+1+lc)
	apdu = append(apdu, pseudoAPDUHeader...)
	apdu = append(apdu, byte(lc), hostToPn532, cmd)
	return append(apdu, args...), nil
}

// parseResponse strips the status word and the D5 TFI. Some firmware
// revisions omit the status word on the escape channel.
func parseResponse(res []byte) ([]byte, error) {
	switch {
	case bytes.HasSuffix(res, statusOK):
		res = res[:len(res)-2]
	case len(res) >= 2 && res[0] != pn532ToHost:
		sw := res[len(res)-2:]
		return nil, fmt.Errorf("%w: reader status %02X %02X", pn532.ErrCommunicationFailed, sw[0], sw[1])
	}

	switch {
	case len(res) >= 2 && res[0] == pn532ToHost:
		return res[1:], nil
	case len(res) >= 1 && res[0] == errorTFI:
		return []byte{errorTFI, 0x81}, nil
	default:
		return nil, pn532.ErrInvalidResponse
	}
}

// SendCommand sends cmd through the escape channel.
func (t *Transport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, pn532.ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trace := pn532.NewTraceBuffer("PCSC", t.reader, 4)
	apdu, err := buildAPDU(cmd, args)
	if err != nil {
		return nil, pn532.NewDataTooLargeError("SendCommand", t.reader)
	}

	trace.RecordTX(apdu, fmt.Sprintf("Cmd 0x%02X", cmd))
	res, err := t.card.Control(escapeIoctl, apdu)
	if err != nil {
		return nil, trace.WrapError(pn532.NewTransportError("Control", t.reader,
			fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient))
	}
	trace.RecordRX(res, "Response")

	payload, err := parseResponse(res)
	if err != nil {
		return nil, trace.WrapError(err)
	}
	return payload, nil
}

// SetTimeout records the timeout. The reader enforces its own.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close disconnects from the reader and releases the context.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	var err error
	if derr := t.card.Disconnect(scard.LeaveCard); derr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to disconnect from %s: %w", t.reader, derr))
	}
	if t.release != nil {
		if rerr := t.release(); rerr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to release PC/SC context: %w", rerr))
		}
	}
	return err
}

// IsConnected returns true until Close is called.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportPCSC
}

var _ pn532.Transport = (*Transport)(nil)
