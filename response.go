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

package silica

import "fmt"

// ResponseShape selects how a response body is decoded.
type ResponseShape int

const (
	// ShapeBlock is a single 16-byte block.
	ShapeBlock ResponseShape = iota
	// ShapeBlockWithMAC is a data block followed by the MAC_A block.
	ShapeBlockWithMAC
	// ShapeErrorLog is the length-prefixed copy of the last rejected command.
	ShapeErrorLog
)

func (s ResponseShape) String() string {
	switch s {
	case ShapeBlock:
		return "block"
	case ShapeBlockWithMAC:
		return "block+mac"
	case ShapeErrorLog:
		return "error-log"
	default:
		return fmt.Sprintf("ResponseShape(%d)", int(s))
	}
}

// Result is a decoded read response. Only the fields of its Shape are set.
type Result struct {
	Block     []byte
	MAC       []byte
	LastError []byte
	Shape     ResponseShape
}

// Decode parses a read response body. Byte 0 (the block count echoed by the
// tag) is always dropped. raw is never modified and the result never aliases it.
func Decode(shape ResponseShape, raw []byte) (*Result, error) {
	if len(raw) == 0 {
		return nil, newTruncatedError("Decode", 1, 0)
	}
	rest := raw[1:]

	switch shape {
	case ShapeBlock:
		if len(rest) < BlockSize {
			return nil, newTruncatedError("Decode", BlockSize, len(rest))
		}
		return &Result{Shape: shape, Block: clone(rest[:BlockSize])}, nil

	case ShapeBlockWithMAC:
		if len(rest) < 2*BlockSize {
			return nil, newTruncatedError("Decode", 2*BlockSize, len(rest))
		}
		return &Result{
			Shape: shape,
			Block: clone(rest[:BlockSize]),
			MAC:   clone(rest[BlockSize : 2*BlockSize]),
		}, nil

	case ShapeErrorLog:
		if len(rest) == 0 {
			return nil, newTruncatedError("Decode", 1, 0)
		}
		length := int(rest[0])
		if length > len(rest) {
			return nil, newTruncatedError("Decode", length, len(rest))
		}
		if length <= 1 {
			return &Result{Shape: shape, LastError: []byte{}}, nil
		}
		return &Result{Shape: shape, LastError: clone(rest[1:length])}, nil

	default:
		return nil, fmt.Errorf("decode: unknown response shape %d", int(shape))
	}
}

// Bytes returns the decoded payload: the block, the block followed by its
// MAC, or the last error command.
func (r *Result) Bytes() []byte {
	switch r.Shape {
	case ShapeBlockWithMAC:
		return append(clone(r.Block), r.MAC...)
	case ShapeErrorLog:
		return clone(r.LastError)
	default:
		return clone(r.Block)
	}
}

// IDm returns the first 8 bytes of a D_ID or ID block.
func (r *Result) IDm() []byte {
	if len(r.Block) < BlockSize {
		return nil
	}
	return clone(r.Block[:8])
}

// PMm returns the last 8 bytes of a D_ID block.
func (r *Result) PMm() []byte {
	if len(r.Block) < BlockSize {
		return nil
	}
	return clone(r.Block[8:BlockSize])
}

// SystemCodes returns the configured system codes of a SYS_C block. The list
// ends at the first empty (0000) slot.
func (r *Result) SystemCodes() []uint16 {
	return codeList(r.Block, MaxSystemCodes, false)
}

// ServiceCodes returns the configured service codes of a SER_C block in the
// order they were written. The tag stores each code byte-swapped.
func (r *Result) ServiceCodes() []uint16 {
	return codeList(r.Block, MaxServiceCodes, true)
}

// LastErrorCode returns the command code of the logged command.
func (r *Result) LastErrorCode() (byte, bool) {
	if len(r.LastError) == 0 {
		return 0, false
	}
	return r.LastError[0], true
}

// LastErrorIDm returns the IDm the logged command was addressed to.
func (r *Result) LastErrorIDm() []byte {
	if len(r.LastError) < 9 {
		return nil
	}
	return clone(r.LastError[1:9])
}

func codeList(block []byte, maxCodes int, swapped bool) []uint16 {
	if len(block) < 2*maxCodes {
		return nil
	}
	codes := make([]uint16, 0, maxCodes)
	for i := range maxCodes {
		hi, lo := block[2*i], block[2*i+1]
		if hi == 0 && lo == 0 {
			break
		}
		if swapped {
			hi, lo = lo, hi
		}
		codes = append(codes, uint16(hi)<<8|uint16(lo))
	}
	return codes
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
