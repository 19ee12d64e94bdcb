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
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies what a command addresses on the tag.
type Kind int

const (
	// KindRawBlock addresses a numbered block directly.
	KindRawBlock Kind = iota
	// KindIDm addresses the IDm/PMm block (D_ID, 83h).
	KindIDm
	// KindSystemCode addresses the system code list (SYS_C, 85h).
	KindSystemCode
	// KindServiceCode addresses the service code list (SER_C, 84h).
	KindServiceCode
	// KindErrorLog addresses the last-error blocks E0h and E1h.
	KindErrorLog
	// KindDeviceID addresses the ID block (82h), read through service 0000.
	KindDeviceID
	// KindMAC reads a block together with the MAC_A block (91h).
	KindMAC
)

var kindNames = [...]string{
	KindRawBlock:    "raw",
	KindIDm:         "idm",
	KindSystemCode:  "sys",
	KindServiceCode: "ser",
	KindErrorLog:    "err",
	KindDeviceID:    "dfc",
	KindMAC:         "mac",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Command is a resolved block command. Block is only meaningful for
// KindRawBlock and KindMAC; the other kinds have a fixed address.
type Command struct {
	Kind  Kind
	Block BlockAddress
}

// RawBlockCommand returns a command addressing block b directly.
func RawBlockCommand(b BlockAddress) Command {
	return Command{Kind: KindRawBlock, Block: b}
}

// MACCommand returns a command reading block b together with MAC_A.
func MACCommand(b BlockAddress) Command {
	return Command{Kind: KindMAC, Block: b}
}

// IDmCommand addresses the IDm/PMm block.
func IDmCommand() Command { return Command{Kind: KindIDm} }

// SystemCodeCommand addresses the system code block.
func SystemCodeCommand() Command { return Command{Kind: KindSystemCode} }

// ServiceCodeCommand addresses the service code block.
func ServiceCodeCommand() Command { return Command{Kind: KindServiceCode} }

// ErrorLogCommand addresses the last-error block pair.
func ErrorLogCommand() Command { return Command{Kind: KindErrorLog} }

// DeviceIDCommand addresses the ID block.
func DeviceIDCommand() Command { return Command{Kind: KindDeviceID} }

// Address returns the primary block number of the command.
func (c Command) Address() BlockAddress {
	switch c.Kind {
	case KindIDm:
		return BlockIDm
	case KindSystemCode:
		return BlockSystemCode
	case KindServiceCode:
		return BlockServiceCode
	case KindErrorLog:
		return BlockErrorLog
	case KindDeviceID:
		return BlockDeviceID
	default:
		return c.Block
	}
}

// Companion returns the second block of a paired read.
func (c Command) Companion() (BlockAddress, bool) {
	switch c.Kind {
	case KindErrorLog:
		return BlockErrorLogNext, true
	case KindMAC:
		return BlockMAC, true
	default:
		return 0, false
	}
}

// Shape returns the layout of the response to a read of this command.
func (c Command) Shape() ResponseShape {
	switch c.Kind {
	case KindErrorLog:
		return ShapeErrorLog
	case KindMAC:
		return ShapeBlockWithMAC
	default:
		return ShapeBlock
	}
}

// Writable reports whether the write path accepts the command.
func (c Command) Writable() bool {
	switch c.Kind {
	case KindRawBlock:
		return c.Block <= MaxRawWriteBlock
	case KindIDm, KindSystemCode, KindServiceCode:
		return true
	default:
		return false
	}
}

func (c Command) String() string {
	switch c.Kind {
	case KindRawBlock:
		return fmt.Sprintf("block %02Xh", byte(c.Block))
	case KindMAC:
		return fmt.Sprintf("mac %02Xh", byte(c.Block))
	default:
		return fmt.Sprintf("%s (%02Xh)", c.Kind, byte(c.Address()))
	}
}

// ParseWriteCommand resolves a write command token. Decimal tokens name user
// data blocks 0 to 11; the prefixes idm, sys and ser name system blocks.
func ParseWriteCommand(token string) (Command, error) {
	command := strings.ToLower(strings.TrimSpace(token))
	if command == "" {
		return Command{}, newValidationError("ParseWriteCommand", ErrUnknownCommand, "no command given")
	}

	if isDecimal(command) {
		block, err := strconv.Atoi(command)
		if err != nil || block < 0 || block > MaxRawWriteBlock {
			return Command{}, newValidationError("ParseWriteCommand", ErrBlockOutOfRange,
				"Block number must be between 0 and %d", MaxRawWriteBlock)
		}
		return RawBlockCommand(BlockAddress(block)), nil
	}

	if cmd, ok := parsePrefix(command); ok {
		return cmd, nil
	}

	if _, ok := parseAlias(command); ok {
		return Command{}, newValidationError("ParseWriteCommand", ErrUnknownCommand,
			"%s is read-only", command)
	}

	return Command{}, newValidationError("ParseWriteCommand", ErrUnknownCommand, "Unknown command: %s", command)
}

// ParseReadCommand resolves a read command token. Besides the write path
// names it accepts err, dfc/id, mac/mac_a and any plain hex block number 00
// to FF. mac takes the block to authenticate as its only extra argument;
// every other command takes none.
func ParseReadCommand(token string, args ...string) (Command, error) {
	command := strings.ToLower(strings.TrimSpace(token))
	if command == "" {
		return Command{}, newValidationError("ParseReadCommand", ErrUnknownCommand, "no command given")
	}

	if kind, ok := parseAlias(command); ok && kind == KindMAC {
		if len(args) == 0 {
			return Command{}, newValidationError("ParseReadCommand", ErrMissingParam,
				"%s needs a block number", command)
		}
		if len(args) > 1 {
			return Command{}, unexpectedArgs(command, args[1:])
		}
		block, err := parseHexBlock(args[0])
		if err != nil {
			return Command{}, err
		}
		return MACCommand(block), nil
	}
	if len(args) > 0 {
		return Command{}, unexpectedArgs(command, args)
	}

	if kind, ok := parseAlias(command); ok {
		return Command{Kind: kind}, nil
	}

	if cmd, ok := parsePrefix(command); ok {
		return cmd, nil
	}

	block, err := parseHexBlock(command)
	if err != nil {
		return Command{}, newValidationError("ParseReadCommand", ErrUnknownCommand, "Unknown command: %s", command)
	}
	return RawBlockCommand(block), nil
}

func unexpectedArgs(command string, extra []string) *ValidationError {
	return newValidationError("ParseReadCommand", ErrUnknownCommand,
		"%s takes no argument %s", command, strings.Join(extra, " "))
}

func parseAlias(command string) (Kind, bool) {
	switch command {
	case "err":
		return KindErrorLog, true
	case "dfc", "id":
		return KindDeviceID, true
	case "mac", "mac_a":
		return KindMAC, true
	default:
		return 0, false
	}
}

func parsePrefix(command string) (Command, bool) {
	switch {
	case strings.HasPrefix(command, "idm"):
		return IDmCommand(), true
	case strings.HasPrefix(command, "sys"):
		return SystemCodeCommand(), true
	case strings.HasPrefix(command, "ser"):
		return ServiceCodeCommand(), true
	default:
		return Command{}, false
	}
}

func parseHexBlock(token string) (BlockAddress, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(token), 16, 8)
	if err != nil {
		return 0, newValidationError("parseHexBlock", ErrBlockOutOfRange,
			"block number must be a hex value between 00 and FF, got %q", token)
	}
	return BlockAddress(v), nil
}

func isDecimal(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
