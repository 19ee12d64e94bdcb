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

// Package felica talks to a FeliCa (NFC Type 3) tag through a PN532. Tag
// implements silica.Commander, framing each block command with the tag's
// IDm and checking the response before the codec decodes it.
package felica

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	silica "github.com/ZaparooProject/go-silica"
)

// FeliCa command codes used outside the block codec.
const (
	cmdRequestResponse   = 0x04
	cmdRequestSystemCode = 0x0C
)

// headerLen is the length byte, response code and IDm.
const headerLen = 2 + idLen

// ErrMalformedResponse reports a response that does not belong to the
// command sent. It is reported as a rejected command.
var ErrMalformedResponse = errors.New("malformed response")

// StatusError carries non-zero status flags.
type StatusError struct {
	Flag1 byte
	Flag2 byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %02X %02X: %s", e.Flag1, e.Flag2, e.Meaning())
}

// Meaning describes Flag2 the way the tag firmware uses it.
func (e *StatusError) Meaning() string {
	switch e.Flag2 {
	case 0xA1:
		return "service count out of range"
	case 0xA2:
		return "block count out of range"
	case 0xA6:
		return "illegal service code or block list"
	case 0xA8:
		return "illegal block number"
	default:
		return "unknown error"
	}
}

// Unwrap lets errors.Is match silica.ErrCommandRejected.
func (*StatusError) Unwrap() error {
	return silica.ErrCommandRejected
}

// Exchanger sends a FeliCa packet, length byte included, to the selected
// target and returns its response packet.
type Exchanger interface {
	DataExchange(ctx context.Context, packet []byte) ([]byte, error)
}

// Tag is a FeliCa tag selected by polling.
type Tag struct {
	ex         Exchanger
	idm        []byte
	pmm        []byte
	systemCode uint16
	hasSystem  bool
}

// NewTag returns a tag for the polling response pol, reached through ex.
func NewTag(ex Exchanger, pol *PollingResponse) *Tag {
	return &Tag{
		ex:         ex,
		idm:        append([]byte(nil), pol.IDm...),
		pmm:        append([]byte(nil), pol.PMm...),
		systemCode: pol.SystemCode,
		hasSystem:  pol.HasSystemCode,
	}
}

// IDm returns the manufacture ID the tag answered polling with.
func (t *Tag) IDm() []byte { return append([]byte(nil), t.idm...) }

// PMm returns the manufacture parameters.
func (t *Tag) PMm() []byte { return append([]byte(nil), t.pmm...) }

// SystemCode returns the system code reported at polling.
func (t *Tag) SystemCode() (uint16, bool) { return t.systemCode, t.hasSystem }

func (t *Tag) String() string {
	s := fmt.Sprintf("Type3Tag IDm=%X PMm=%X", t.idm, t.pmm)
	if t.hasSystem {
		s += fmt.Sprintf(" SYS=%04X", t.systemCode)
	}
	return s
}

// SendCommand implements silica.Commander for commands answered with
// status flags, such as Read and Write Without Encryption.
func (t *Tag) SendCommand(ctx context.Context, code byte, frame []byte, timeout time.Duration) ([]byte, error) {
	body, err := t.exchange(ctx, code, frame, timeout)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: %w: no status flags", silica.ErrCommandRejected, ErrMalformedResponse)
	}
	if body[0] != 0 || body[1] != 0 {
		return nil, &StatusError{Flag1: body[0], Flag2: body[1]}
	}
	return body[2:], nil
}

// RequestResponse returns the tag's current mode.
func (t *Tag) RequestResponse(ctx context.Context, timeout time.Duration) (byte, error) {
	body, err := t.exchange(ctx, cmdRequestResponse, nil, timeout)
	if err != nil {
		return 0, err
	}
	if len(body) != 1 {
		return 0, fmt.Errorf("%w: %w: mode", silica.ErrCommandRejected, ErrMalformedResponse)
	}
	return body[0], nil
}

// RequestSystemCode lists the system codes the tag answers to.
func (t *Tag) RequestSystemCode(ctx context.Context, timeout time.Duration) ([]uint16, error) {
	body, err := t.exchange(ctx, cmdRequestSystemCode, nil, timeout)
	if err != nil {
		return nil, err
	}
	if len(body) < 1 || len(body) != 1+2*int(body[0]) {
		return nil, fmt.Errorf("%w: %w: system code list", silica.ErrCommandRejected, ErrMalformedResponse)
	}
	codes := make([]uint16, body[0])
	for i := range codes {
		codes[i] = binary.BigEndian.Uint16(body[1+2*i:])
	}
	return codes, nil
}

// exchange sends [LEN, code, IDm, frame] and returns the response after its
// echoed IDm.
func (t *Tag) exchange(ctx context.Context, code byte, frame []byte, timeout time.Duration) ([]byte, error) {
	if len(frame) > 0xFF-headerLen {
		return nil, fmt.Errorf("%w: command of %d bytes", silica.ErrCommandRejected, headerLen+len(frame))
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	packet := make([]byte, 0, headerLen+len(frame))
	packet = append(packet, byte(headerLen+len(frame)), code)
	packet = append(packet, t.idm...)
	packet = append(packet, frame...)

	logger().Debugf("tx % X", packet)
	res, err := t.ex.DataExchange(ctx, packet)
	if err != nil {
		return nil, err
	}
	logger().Debugf("rx % X", res)

	switch {
	case len(res) < headerLen || int(res[0]) != len(res):
		return nil, fmt.Errorf("%w: %w: length", silica.ErrCommandRejected, ErrMalformedResponse)
	case res[1] != code+1:
		return nil, fmt.Errorf("%w: %w: response code %02X to command %02X",
			silica.ErrCommandRejected, ErrMalformedResponse, res[1], code)
	case !bytes.Equal(res[2:headerLen], t.idm):
		return nil, fmt.Errorf("%w: %w: IDm %X", silica.ErrCommandRejected, ErrMalformedResponse, res[2:headerLen])
	}
	return res[headerLen:], nil
}

var _ silica.Commander = (*Tag)(nil)
