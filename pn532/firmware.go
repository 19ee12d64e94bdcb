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

import "fmt"

// FirmwareVersion contains PN532 firmware information
type FirmwareVersion struct {
	Version          string
	IC               byte
	SupportIso14443a bool
	SupportIso14443b bool
	SupportIso18092  bool
}

func (f *FirmwareVersion) String() string {
	return fmt.Sprintf("PN5%02X v%s", f.IC, f.Version)
}

// parseFirmwareVersion decodes a GetFirmwareVersion response:
// [0x03, IC, Ver, Rev, Support].
func parseFirmwareVersion(res []byte) (*FirmwareVersion, error) {
	if len(res) < 5 || res[0] != cmdGetFirmwareVersion+1 {
		return nil, fmt.Errorf("unexpected firmware version response: % X", res)
	}
	if res[1] != 0x32 {
		return nil, fmt.Errorf("unexpected IC: %x", res[1])
	}
	return &FirmwareVersion{
		IC:               res[1],
		Version:          fmt.Sprintf("%d.%d", res[2], res[3]),
		SupportIso14443a: res[4]&0x01 == 0x01,
		SupportIso14443b: res[4]&0x02 == 0x02,
		SupportIso18092:  res[4]&0x04 == 0x04,
	}, nil
}
