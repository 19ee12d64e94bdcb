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

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// DecodeHex joins the given tokens with spaces and decodes them. Whitespace
// may separate hex pairs but never split one. It never returns a partial
// result.
func DecodeHex(parts ...string) ([]byte, error) {
	fields := strings.Fields(strings.Join(parts, " "))
	if len(fields) == 0 {
		return nil, newValidationError("DecodeHex", ErrInvalidHex, "no hex parameter given")
	}

	var data []byte
	for _, field := range fields {
		decoded, err := hex.DecodeString(field)
		if err != nil {
			return nil, &ValidationError{
				Op:  "DecodeHex",
				Err: fmt.Errorf("%w: %w", ErrInvalidHex, err),
				Msg: fmt.Sprintf("invalid hex parameter %q", strings.Join(parts, " ")),
			}
		}
		data = append(data, decoded...)
	}
	return data, nil
}

// FormatHex renders data as upper-case, space separated hex pairs.
func FormatHex(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	var sb strings.Builder
	sb.Grow(len(data) * 3)
	for i, b := range data {
		if i > 0 {
			_ = sb.WriteByte(' ')
		}
		_, _ = fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}
