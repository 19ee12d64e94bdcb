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

// FeliCa command codes carried by the frames below.
const (
	CommandRead  byte = 0x06 // Read Without Encryption
	CommandWrite byte = 0x08 // Write Without Encryption
)

// Frame layout:
//
//	[svc count][svc lo][svc hi][blk count][80 blk]...[payload]
//
// 0x80 marks a 2-byte block list element.
const (
	serviceCount     = 0x01
	blockListElement = 0x80
)

var (
	wildcardService = [2]byte{0xFF, 0xFF}
	idService       = [2]byte{0x00, 0x00}
)

// BuildReadFrame returns the frame reading block b through the wildcard service.
func BuildReadFrame(b BlockAddress) []byte {
	return []byte{serviceCount, wildcardService[0], wildcardService[1], 1, blockListElement, byte(b)}
}

// BuildReadPairFrame returns the frame reading blocks b and c in one command.
func BuildReadPairFrame(b, c BlockAddress) []byte {
	return []byte{
		serviceCount, wildcardService[0], wildcardService[1], 2,
		blockListElement, byte(b), blockListElement, byte(c),
	}
}

// BuildDeviceIDReadFrame returns the frame reading the ID block, which the
// tag serves through service 0000 rather than the wildcard.
func BuildDeviceIDReadFrame() []byte {
	return []byte{serviceCount, idService[0], idService[1], 1, blockListElement, byte(BlockDeviceID)}
}

// BuildWriteFrame returns the frame writing payload to block b.
func BuildWriteFrame(b BlockAddress, payload []byte) ([]byte, error) {
	if len(payload) != BlockSize {
		return nil, newValidationError("BuildWriteFrame", ErrBadPayloadLength,
			"data must be exactly %d bytes, got %d", BlockSize, len(payload))
	}
	frame := make([]byte, 0, 6+BlockSize)
	frame = append(frame, serviceCount, wildcardService[0], wildcardService[1], 1, blockListElement, byte(b))
	return append(frame, payload...), nil
}

// ReadFrame returns the read frame for the command.
func (c Command) ReadFrame() []byte {
	if c.Kind == KindDeviceID {
		return BuildDeviceIDReadFrame()
	}
	if companion, ok := c.Companion(); ok {
		return BuildReadPairFrame(c.Address(), companion)
	}
	return BuildReadFrame(c.Address())
}

// WriteFrame validates param against the command's policy and returns the
// complete write frame.
func (c Command) WriteFrame(param []byte) ([]byte, error) {
	payload, err := BuildWritePayload(c, param)
	if err != nil {
		return nil, err
	}
	return BuildWriteFrame(c.Address(), payload)
}
