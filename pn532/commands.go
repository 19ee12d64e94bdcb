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

package pn532

// PN532 Command codes
const (
	cmdGetFirmwareVersion  = 0x02
	cmdSamConfiguration    = 0x14
	cmdRFConfiguration     = 0x32
	cmdInDataExchange      = 0x40
	cmdInListPassiveTarget = 0x4A
	cmdInRelease           = 0x52
)

// Response TFI payload marker for a PN532 error frame.
const errorFrameMarker = 0x7F

// Baud rate and modulation for InListPassiveTarget (BrTy)
const (
	BrTyISO14443A byte = 0x00
	BrTyFeliCa212 byte = 0x01
	BrTyFeliCa424 byte = 0x02
)

// RF configuration items
const (
	rfItemMaxRetries = 0x05
)

// DefaultPassiveActivationRetries bounds InListPassiveTarget to about one
// second. 0xFF would retry forever and can wedge the chip.
const DefaultPassiveActivationRetries byte = 0x0A
