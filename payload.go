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

// DefaultPMm is appended to an IDm written without an explicit PMm.
var DefaultPMm = []byte{0x00, 0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// MaxSystemCodes and MaxServiceCodes bound the code lists a tag stores.
const (
	MaxSystemCodes  = 4
	MaxServiceCodes = 4
)

// SwapPairs reverses the bytes of every 2-byte pair, keeping pair order.
// Applying it twice yields the input.
func SwapPairs(data []byte) ([]byte, error) {
	if len(data)%2 != 0 {
		return nil, newValidationError("SwapPairs", ErrBadParamLength, "codes must be in 2-byte pairs")
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += 2 {
		out[i], out[i+1] = data[i+1], data[i]
	}
	return out, nil
}

// BuildWritePayload turns a user parameter into the 16-byte payload for a
// write of cmd, applying the block's length policy and transformations.
func BuildWritePayload(cmd Command, param []byte) ([]byte, error) {
	switch cmd.Kind {
	case KindRawBlock:
		if !cmd.Writable() {
			return nil, newValidationError("BuildWritePayload", ErrBlockOutOfRange,
				"Block number must be between 0 and %d", MaxRawWriteBlock)
		}
		if len(param) != BlockSize {
			return nil, newValidationError("BuildWritePayload", ErrBadParamLength,
				"Data must be exactly %d bytes for raw write", BlockSize)
		}
		return padBlock(param), nil

	case KindIDm:
		switch len(param) {
		case 8:
			return padBlock(append(append([]byte{}, param...), DefaultPMm...)), nil
		case BlockSize:
			return padBlock(param), nil
		default:
			return nil, newValidationError("BuildWritePayload", ErrBadParamLength,
				"IDm must be 8 bytes, PMm optional 8 bytes (total 16 bytes)")
		}

	case KindSystemCode:
		if err := checkCodeList(param, MaxSystemCodes, "System codes",
			"System code must be between 1 and %d 2-byte pairs"); err != nil {
			return nil, err
		}
		return padBlock(param), nil

	case KindServiceCode:
		if err := checkCodeList(param, MaxServiceCodes, "Service codes",
			"Number of service codes must be between 1 and %d"); err != nil {
			return nil, err
		}
		swapped, err := SwapPairs(param)
		if err != nil {
			return nil, err
		}
		return padBlock(swapped), nil

	default:
		return nil, newValidationError("BuildWritePayload", ErrUnknownCommand, "%s is read-only", cmd.Kind)
	}
}

func checkCodeList(param []byte, maxCodes int, what, countMsg string) error {
	if len(param)%2 != 0 {
		return newValidationError("BuildWritePayload", ErrBadParamLength, "%s must be in 2-byte pairs", what)
	}
	if len(param) == 0 || len(param) > 2*maxCodes {
		return newValidationError("BuildWritePayload", ErrBadParamLength, countMsg, maxCodes)
	}
	return nil
}

// padBlock copies data into a fresh zero-filled block.
func padBlock(data []byte) []byte {
	block := make([]byte, BlockSize)
	copy(block, data)
	return block
}
