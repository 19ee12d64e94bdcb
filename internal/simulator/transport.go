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
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-silica/internal/frame"
	"github.com/ZaparooProject/go-silica/pn532"
)

// Transport is a pn532.Transport that frames every command into a
// VirtualPN532 and decodes its answer, without any real I/O.
type Transport struct {
	sim       *VirtualPN532
	timeout   time.Duration
	connected bool
}

// NewTransport returns a transport talking to sim.
func NewTransport(sim *VirtualPN532) *Transport {
	return &Transport{sim: sim, timeout: time.Second, connected: true}
}

// SendCommand implements pn532.Transport.
func (t *Transport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !t.connected {
		return nil, pn532.ErrTransportClosed
	}

	out, err := frame.Command(cmd, args)
	if err != nil {
		return nil, pn532.NewDataTooLargeError("SendCommand", "sim")
	}
	if _, err := t.sim.Write(out); err != nil {
		return nil, fmt.Errorf("write failed: %w", err)
	}

	buf := make([]byte, 512)
	n, err := t.sim.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	buf = buf[:n]
	if !bytes.HasPrefix(buf, frame.AckFrame) {
		return nil, pn532.NewNoACKError("waitAck", "sim")
	}

	f, _, err := frame.Parse(buf[len(frame.AckFrame):])
	switch {
	case errors.Is(err, frame.ErrIncomplete):
		return nil, pn532.NewTimeoutError("receiveFrame", "sim")
	case err != nil:
		return nil, pn532.NewFrameCorruptedError("receiveFrame", "sim")
	}
	return f.Payload(), nil
}

// Close implements pn532.Transport.
func (t *Transport) Close() error {
	t.connected = false
	return nil
}

// SetTimeout implements pn532.Transport.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.timeout = timeout
	return nil
}

// IsConnected implements pn532.Transport.
func (t *Transport) IsConnected() bool {
	return t.connected
}

// Type implements pn532.Transport.
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportMock
}

var _ pn532.Transport = (*Transport)(nil)
