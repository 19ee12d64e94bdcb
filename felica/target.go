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

package felica

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-silica/pn532"
)

// ErrUnknownTarget is returned by ParseTarget for anything but 212F or 424F.
var ErrUnknownTarget = errors.New("unknown target")

// Target is a FeliCa bitrate to poll at.
type Target int

const (
	// Target212F polls at 212 kbps.
	Target212F Target = iota
	// Target424F polls at 424 kbps.
	Target424F
)

// ParseTarget accepts "212F" or "424F", in any case.
func ParseTarget(s string) (Target, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "212F":
		return Target212F, nil
	case "424F":
		return Target424F, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTarget, s)
	}
}

func (t Target) String() string {
	switch t {
	case Target212F:
		return "212F"
	case Target424F:
		return "424F"
	default:
		return fmt.Sprintf("Target(%d)", int(t))
	}
}

// BrTy returns the PN532 baud rate and modulation type byte.
func (t Target) BrTy() byte {
	if t == Target424F {
		return pn532.BrTyFeliCa424
	}
	return pn532.BrTyFeliCa212
}
