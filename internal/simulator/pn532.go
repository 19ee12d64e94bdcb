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
	"errors"
	"time"

	"github.com/ZaparooProject/go-silica/internal/frame"
	"github.com/ZaparooProject/go-silica/internal/syncutil"
)

// PN532 command codes understood by the simulator.
const (
	CmdGetFirmwareVersion  = 0x02
	CmdSAMConfiguration    = 0x14
	CmdRFConfiguration     = 0x32
	CmdInDataExchange      = 0x40
	CmdInListPassiveTarget = 0x4A
	CmdInRelease           = 0x52
)

// PN532 status codes returned by the simulator.
const (
	statusOK      = 0x00
	statusTimeout = 0x01
	statusContext = 0x27
)

// ErrClosed is returned by I/O on a closed simulator.
var ErrClosed = errors.New("simulator closed")

// VirtualPN532 simulates a PN532 at the host link frame level. Bytes written
// to it are decoded as frames; ACKs and responses are queued for Read.
type VirtualPN532 struct {
	card         *Card
	lastResponse []byte
	rx           bytes.Buffer
	tx           bytes.Buffer
	commands     []byte
	mu           syncutil.Mutex
	selected     byte
	samDone      bool
	closed       bool
	corruptNext  bool
	corruptAll   bool
	dropNextACK  bool
	silentCard   bool
}

// NewVirtualPN532 returns a simulator with card in the field. card may be nil.
func NewVirtualPN532(card *Card) *VirtualPN532 {
	return &VirtualPN532{card: card}
}

// SetCard places card in the field, or removes it when nil.
func (v *VirtualPN532) SetCard(card *Card) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.card = card
	v.selected = 0
}

// CorruptNextResponse flips the data checksum of the next response frame.
// The intact frame is sent when the host answers with NACK.
func (v *VirtualPN532) CorruptNextResponse() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.corruptNext = true
}

// CorruptResponses flips the data checksum of every response frame,
// NACK requested resends included, until turned off.
func (v *VirtualPN532) CorruptResponses(on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.corruptAll = on
}

// DropNextACK suppresses the ACK for the next command frame.
func (v *VirtualPN532) DropNextACK() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropNextACK = true
}

// SilenceCard makes InDataExchange time out as if the card left the field.
func (v *VirtualPN532) SilenceCard(silent bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.silentCard = silent
}

// Commands returns the command codes processed so far.
func (v *VirtualPN532) Commands() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), v.commands...)
}

// Write feeds host bytes into the simulator.
func (v *VirtualPN532) Write(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, ErrClosed
	}
	v.rx.Write(p)
	v.processFrames()
	return len(p), nil
}

// Read returns queued bytes. It returns 0, nil when nothing is pending, like
// a serial port whose read timeout expired.
func (v *VirtualPN532) Read(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, ErrClosed
	}
	if v.tx.Len() == 0 {
		return 0, nil
	}
	n, _ := v.tx.Read(p)
	return n, nil
}

// Pending reports how many response bytes wait to be read.
func (v *VirtualPN532) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tx.Len()
}

// Close marks the simulator closed.
func (v *VirtualPN532) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}

// SetReadTimeout is a no-op; reads never block.
func (*VirtualPN532) SetReadTimeout(time.Duration) error { return nil }

// Drain is a no-op; writes are processed synchronously.
func (*VirtualPN532) Drain() error { return nil }

// ResetInputBuffer discards unread response bytes.
func (v *VirtualPN532) ResetInputBuffer() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tx.Reset()
	return nil
}

func (v *VirtualPN532) processFrames() {
	for v.rx.Len() > 0 {
		f, n, err := frame.Parse(v.rx.Bytes())
		if errors.Is(err, frame.ErrIncomplete) {
			return
		}
		v.rx.Next(n)
		if err != nil {
			continue
		}

		switch f.Kind {
		case frame.KindAck:
		case frame.KindNack:
			if v.corruptAll {
				v.tx.Write(corrupted(v.lastResponse))
				continue
			}
			v.tx.Write(v.lastResponse)
		case frame.KindInformation:
			if f.TFI != frame.HostToPn532 || len(f.Data) == 0 {
				v.tx.Write(frame.ErrFrame)
				continue
			}
			v.respond(f.Data[0], f.Data[1:])
		}
	}
}

func (v *VirtualPN532) respond(cmd byte, args []byte) {
	if v.dropNextACK {
		v.dropNextACK = false
	} else {
		v.tx.Write(frame.AckFrame)
	}

	payload := v.process(cmd, args)
	if payload == nil {
		v.lastResponse = frame.ErrFrame
		v.tx.Write(frame.ErrFrame)
		return
	}
	out, err := frame.Response(payload[0], payload[1:])
	if err != nil {
		out = frame.ErrFrame
	}
	v.lastResponse = out
	if v.corruptNext || v.corruptAll {
		v.corruptNext = false
		v.tx.Write(corrupted(out))
		return
	}
	v.tx.Write(out)
}

func corrupted(out []byte) []byte {
	bad := append([]byte(nil), out...)
	bad[len(bad)-2]++
	return bad
}

// Process executes one command and returns the response payload: the
// response code and its data. It returns nil for commands the simulator
// does not implement, which the wire level reports as an error frame.
func (v *VirtualPN532) Process(cmd byte, args []byte) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.process(cmd, args)
}

func (v *VirtualPN532) process(cmd byte, args []byte) []byte {
	v.commands = append(v.commands, cmd)
	res := []byte{cmd + 1}

	switch cmd {
	case CmdGetFirmwareVersion:
		return append(res, 0x32, 0x01, 0x06, 0x07)
	case CmdSAMConfiguration:
		if len(args) < 1 {
			return nil
		}
		v.samDone = true
		return res
	case CmdRFConfiguration:
		return res
	case CmdInListPassiveTarget:
		return append(res, v.listPassiveTarget(args)...)
	case CmdInDataExchange:
		return append(res, v.dataExchange(args)...)
	case CmdInRelease:
		v.selected = 0
		return append(res, statusOK)
	default:
		return nil
	}
}

// listPassiveTarget handles FeliCa polling: args are MaxTg, BrTy and the
// polling payload without its length byte.
func (v *VirtualPN532) listPassiveTarget(args []byte) []byte {
	if len(args) < 7 || (args[1] != 0x01 && args[1] != 0x02) || v.card == nil || !v.samDone {
		return []byte{0x00}
	}
	pol := v.card.Poll(uint16(args[3])<<8|uint16(args[4]), args[5])
	if pol == nil {
		return []byte{0x00}
	}
	v.selected = 1
	return append([]byte{0x01, v.selected}, pol...)
}

func (v *VirtualPN532) dataExchange(args []byte) []byte {
	if len(args) < 2 || v.selected == 0 || args[0] != v.selected {
		return []byte{statusContext}
	}
	if v.card == nil || v.silentCard {
		return []byte{statusTimeout}
	}
	res := v.card.Handle(args[1:])
	if res == nil {
		return []byte{statusTimeout}
	}
	return append([]byte{statusOK}, res...)
}
