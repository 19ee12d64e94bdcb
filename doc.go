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

// Package silica encodes and decodes the block commands understood by SiliCa,
// a JIS X 6319-4 (FeliCa, NFC Type 3) compatible tag.
//
// A SiliCa tag exposes 16-byte blocks addressed by a one-byte block number:
//
//	00h-0Bh  user data (writable)
//	0Ch-0Fh  always zero
//	82h      ID     IDm + DFC, read through service 0000
//	83h      D_ID   IDm + PMm
//	84h      SER_C  service codes, each stored byte-swapped
//	85h      SYS_C  system codes
//	91h      MAC_A  read paired with a data block
//	E0h-E1h  copy of the last rejected command, length-prefixed
//
// The package is pure: ParseReadCommand and ParseWriteCommand resolve user
// tokens to a Command, Command.ReadFrame and Command.WriteFrame build the
// frame bodies of Read/Write Without Encryption, and Decode parses the
// response body. Read and Write tie these to a Commander, which is
// implemented by felica.Tag for real readers.
//
// Example:
//
//	cmd, err := silica.ParseWriteCommand("ser")
//	if err != nil {
//	    return err
//	}
//	param, err := silica.DecodeHex("100B", "200B")
//	if err != nil {
//	    return err
//	}
//	if err := silica.Write(ctx, tag, cmd, param); err != nil {
//	    return err
//	}
package silica
