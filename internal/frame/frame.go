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

package frame

import (
	"bytes"
	"errors"
	"fmt"
)

// Parse errors
var (
	// ErrIncomplete means more bytes are needed before a frame can be decoded.
	ErrIncomplete = errors.New("incomplete frame")
	// ErrLengthChecksum means LEN+LCS did not sum to zero.
	ErrLengthChecksum = errors.New("length checksum mismatch")
	// ErrDataChecksum means TFI+PD+DCS did not sum to zero.
	ErrDataChecksum = errors.New("data checksum mismatch")
	// ErrTooLarge means the payload does not fit a normal frame.
	ErrTooLarge = errors.New("frame data too large")
	// ErrExtended means the peer sent an extended frame.
	ErrExtended = errors.New("extended frames are not supported")
)

// Kind classifies a decoded frame.
type Kind int

const (
	// KindInformation is a normal frame carrying TFI and data.
	KindInformation Kind = iota
	// KindAck acknowledges the previous frame.
	KindAck
	// KindNack asks the peer to resend its last frame.
	KindNack
	// KindError is the application level syntax error frame.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindInformation:
		return "information"
	case KindAck:
		return "ACK"
	case KindNack:
		return "NACK"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Frame is one decoded frame.
type Frame struct {
	// Data is the packet data after the TFI byte.
	Data []byte
	Kind Kind
	TFI  byte
}

// Payload returns what a transport hands to the device layer: the data of
// an information frame, or 0x7F followed by the error code for an error
// frame. The error frame itself carries no code; it is reported as 0x81,
// the chip's "invalid command" status.
func (f Frame) Payload() []byte {
	if f.Kind == KindError {
		return []byte{ErrorTFI, 0x81}
	}
	return f.Data
}

// Build encodes an information frame with the given TFI.
func Build(tfi byte, data []byte) ([]byte, error) {
	n := len(data) + 1
	if n > MaxDataLength {
		return nil, ErrTooLarge
	}

	out := make([]byte, 0, n+Overhead)
	out = append(out, Preamble, StartCode1, StartCode2, byte(n), complement(byte(n)), tfi)
	out = append(out, data...)
	sum := tfi + CalculateChecksum(data)
	return append(out, complement(sum), Postamble), nil
}

// Command encodes a host command frame: D4, cmd, args.
func Command(cmd byte, args []byte) ([]byte, error) {
	data := make([]byte, 0, len(args)+1)
	data = append(data, cmd)
	data = append(data, args...)
	return Build(HostToPn532, data)
}

// Response encodes a PN532 response frame: D5, code, data.
func Response(code byte, data []byte) ([]byte, error) {
	payload := make([]byte, 0, len(data)+1)
	payload = append(payload, code)
	payload = append(payload, data...)
	return Build(Pn532ToHost, payload)
}

// Parse decodes the first frame in buf. Bytes before the start code are
// skipped. It returns the frame and the number of bytes consumed, including
// the postamble when present. ErrIncomplete is returned until buf holds a
// whole frame.
func Parse(buf []byte) (Frame, int, error) {
	start := bytes.Index(buf, []byte{StartCode1, StartCode2})
	if start < 0 {
		return Frame{}, 0, ErrIncomplete
	}
	off := start + 2
	if len(buf) < off+2 {
		return Frame{}, 0, ErrIncomplete
	}

	length, lcs := buf[off], buf[off+1]
	switch {
	case length == 0x00 && lcs == 0xFF:
		return Frame{Kind: KindAck}, consumed(buf, off+2), nil
	case length == 0xFF && lcs == 0x00:
		return Frame{Kind: KindNack}, consumed(buf, off+2), nil
	case length == 0xFF && lcs == 0xFF:
		return Frame{}, off + 2, ErrExtended
	case length+lcs != 0:
		return Frame{}, off + 2, ErrLengthChecksum
	case length == 0:
		return Frame{}, off + 2, ErrLengthChecksum
	}

	body := off + 2
	end := body + int(length)
	if len(buf) < end+1 {
		return Frame{}, 0, ErrIncomplete
	}
	if CalculateChecksum(buf[body:end])+buf[end] != 0 {
		return Frame{}, end + 1, ErrDataChecksum
	}

	tfi := buf[body]
	if tfi == ErrorTFI && length == 1 {
		return Frame{Kind: KindError, TFI: tfi}, consumed(buf, end+1), nil
	}
	data := make([]byte, int(length)-1)
	copy(data, buf[body+1:end])
	return Frame{Kind: KindInformation, TFI: tfi, Data: data}, consumed(buf, end+1), nil
}

func consumed(buf []byte, n int) int {
	if n < len(buf) && buf[n] == Postamble {
		return n + 1
	}
	return n
}
