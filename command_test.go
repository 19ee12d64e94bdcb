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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWriteCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr error
		name    string
		token   string
		want    Command
	}{
		{name: "block zero", token: "0", want: RawBlockCommand(0)},
		{name: "block eleven", token: "11", want: RawBlockCommand(11)},
		{name: "leading zero", token: "03", want: RawBlockCommand(3)},
		{name: "idm", token: "idm", want: IDmCommand()},
		{name: "idm with suffix", token: "idm_pmm", want: IDmCommand()},
		{name: "upper case idm", token: "IDM", want: IDmCommand()},
		{name: "system", token: "system", want: SystemCodeCommand()},
		{name: "service", token: "Service", want: ServiceCodeCommand()},
		{name: "block twelve", token: "12", wantErr: ErrBlockOutOfRange},
		{name: "huge block", token: "99999999999999999999", wantErr: ErrBlockOutOfRange},
		{name: "hex block", token: "0b", wantErr: ErrUnknownCommand},
		{name: "negative", token: "-1", wantErr: ErrUnknownCommand},
		{name: "error log is read-only", token: "err", wantErr: ErrUnknownCommand},
		{name: "mac is read-only", token: "mac", wantErr: ErrUnknownCommand},
		{name: "unknown", token: "foo", wantErr: ErrUnknownCommand},
		{name: "empty", token: "", wantErr: ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseWriteCommand(tt.token)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Writable())
		})
	}
}

func TestParseReadCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr error
		name    string
		token   string
		args    []string
		want    Command
	}{
		{name: "hex zero", token: "0", want: RawBlockCommand(0x00)},
		{name: "hex 10 is sixteen", token: "10", want: RawBlockCommand(0x10)},
		{name: "hex e0", token: "e0", want: RawBlockCommand(0xE0)},
		{name: "hex upper case", token: "FF", want: RawBlockCommand(0xFF)},
		{name: "hex with prefix", token: "0xFF", wantErr: ErrUnknownCommand},
		{name: "hex with suffix", token: "83h", wantErr: ErrUnknownCommand},
		{name: "ch is not block 0C", token: "ch", wantErr: ErrUnknownCommand},
		{name: "err", token: "err", want: ErrorLogCommand()},
		{name: "ERR", token: "ERR", want: ErrorLogCommand()},
		{name: "dfc", token: "dfc", want: DeviceIDCommand()},
		{name: "id", token: "ID", want: DeviceIDCommand()},
		{name: "idm", token: "idm", want: IDmCommand()},
		{name: "sys", token: "sys", want: SystemCodeCommand()},
		{name: "ser", token: "ser", want: ServiceCodeCommand()},
		{name: "mac", token: "mac", args: []string{"05"}, want: MACCommand(0x05)},
		{name: "MAC_A", token: "MAC_A", args: []string{"82"}, want: MACCommand(0x82)},
		{name: "mac without block", token: "mac", wantErr: ErrMissingParam},
		{name: "mac with bad block", token: "mac", args: []string{"100"}, wantErr: ErrBlockOutOfRange},
		{name: "mac with prefixed block", token: "mac", args: []string{"0x05"}, wantErr: ErrBlockOutOfRange},
		{name: "mac with extra argument", token: "mac", args: []string{"05", "06"}, wantErr: ErrUnknownCommand},
		{name: "err with extra arguments", token: "err", args: []string{"junk", "more"}, wantErr: ErrUnknownCommand},
		{name: "block with extra argument", token: "05", args: []string{"06"}, wantErr: ErrUnknownCommand},
		{name: "idm with extra argument", token: "idm", args: []string{"00"}, wantErr: ErrUnknownCommand},
		{name: "out of byte range", token: "100", wantErr: ErrUnknownCommand},
		{name: "unknown", token: "xyz", wantErr: ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseReadCommand(tt.token, tt.args...)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandAddressing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		cmd           Command
		wantAddr      BlockAddress
		wantCompanion BlockAddress
		wantShape     ResponseShape
		paired        bool
		writable      bool
	}{
		{name: "raw", cmd: RawBlockCommand(7), wantAddr: 7, wantShape: ShapeBlock, writable: true},
		{name: "raw high", cmd: RawBlockCommand(0x20), wantAddr: 0x20, wantShape: ShapeBlock},
		{name: "idm", cmd: IDmCommand(), wantAddr: BlockIDm, wantShape: ShapeBlock, writable: true},
		{name: "sys", cmd: SystemCodeCommand(), wantAddr: BlockSystemCode, wantShape: ShapeBlock, writable: true},
		{name: "ser", cmd: ServiceCodeCommand(), wantAddr: BlockServiceCode, wantShape: ShapeBlock, writable: true},
		{name: "dfc", cmd: DeviceIDCommand(), wantAddr: BlockDeviceID, wantShape: ShapeBlock},
		{
			name: "err", cmd: ErrorLogCommand(), wantAddr: BlockErrorLog,
			wantCompanion: BlockErrorLogNext, paired: true, wantShape: ShapeErrorLog,
		},
		{
			name: "mac", cmd: MACCommand(3), wantAddr: 3,
			wantCompanion: BlockMAC, paired: true, wantShape: ShapeBlockWithMAC,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.wantAddr, tt.cmd.Address())
			companion, paired := tt.cmd.Companion()
			assert.Equal(t, tt.paired, paired)
			assert.Equal(t, tt.wantCompanion, companion)
			assert.Equal(t, tt.wantShape, tt.cmd.Shape())
			assert.Equal(t, tt.writable, tt.cmd.Writable())
		})
	}
}

func TestBlockAddressString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "83h (D_ID)", BlockIDm.String())
	assert.Equal(t, "0Bh", BlockAddress(0x0B).String())
	assert.Equal(t, "ERR1", BlockErrorLogNext.Name())
	assert.Equal(t, "block 05h", RawBlockCommand(5).String())
	assert.Equal(t, "ser (84h)", ServiceCodeCommand().String())
}
