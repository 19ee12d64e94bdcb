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

// BlockSize is the size of every SiliCa block payload.
const BlockSize = 16

// MaxRawWriteBlock is the highest user data block accepted by the write path.
const MaxRawWriteBlock = 11

// BlockAddress is a one-byte block number on the tag.
type BlockAddress uint8

// System blocks.
const (
	BlockRC           BlockAddress = 0x80
	BlockMACPlain     BlockAddress = 0x81
	BlockDeviceID     BlockAddress = 0x82
	BlockIDm          BlockAddress = 0x83
	BlockServiceCode  BlockAddress = 0x84
	BlockSystemCode   BlockAddress = 0x85
	BlockCKV          BlockAddress = 0x86
	BlockCK           BlockAddress = 0x87
	BlockMC           BlockAddress = 0x88
	BlockWCNT         BlockAddress = 0x90
	BlockMAC          BlockAddress = 0x91
	BlockState        BlockAddress = 0x92
	BlockErrorLog     BlockAddress = 0xE0
	BlockErrorLogNext BlockAddress = 0xE1
)

var blockNames = map[BlockAddress]string{
	BlockRC:           "RC",
	BlockMACPlain:     "MAC",
	BlockDeviceID:     "ID",
	BlockIDm:          "D_ID",
	BlockServiceCode:  "SER_C",
	BlockSystemCode:   "SYS_C",
	BlockCKV:          "CKV",
	BlockCK:           "CK",
	BlockMC:           "MC",
	BlockWCNT:         "WCNT",
	BlockMAC:          "MAC_A",
	BlockState:        "STATE",
	BlockErrorLog:     "ERR0",
	BlockErrorLogNext: "ERR1",
}

// Name returns the conventional name of a system block, or an empty string
// for user data blocks.
func (b BlockAddress) Name() string {
	return blockNames[b]
}

func (b BlockAddress) String() string {
	if name := b.Name(); name != "" {
		return fmt.Sprintf("%02Xh (%s)", byte(b), name)
	}
	return fmt.Sprintf("%02Xh", byte(b))
}
