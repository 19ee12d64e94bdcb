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

package uart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"

	"github.com/ZaparooProject/go-silica/detection"
	"github.com/ZaparooProject/go-silica/pn532"
)

func testPorts() ([]*enumerator.PortDetails, error) {
	return []*enumerator.PortDetails{
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1a86", PID: "7523", SerialNumber: "A1"},
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043"},
		{Name: "/dev/ttyS0"},
	}, nil
}

func TestDetect_Passive(t *testing.T) {
	t.Parallel()

	d := &detector{listPorts: testPorts}
	opts := detection.DefaultOptions()

	devices, err := d.Detect(context.Background(), &opts)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "/dev/ttyUSB0", devices[0].Path)
	assert.Equal(t, "CH340", devices[0].Name)
	assert.Equal(t, detection.Medium, devices[0].Confidence)
	assert.Equal(t, "1a86:7523", devices[0].Metadata["vidpid"])
}

func TestDetect_Probe(t *testing.T) {
	t.Parallel()

	var probed []string
	d := &detector{
		listPorts: testPorts,
		probe: func(_ context.Context, path string) (*pn532.FirmwareVersion, error) {
			probed = append(probed, path)
			return &pn532.FirmwareVersion{IC: 0x32, Version: "1.6"}, nil
		},
	}
	opts := detection.DefaultOptions()
	opts.Mode = detection.Probe

	devices, err := d.Detect(context.Background(), &opts)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, detection.High, devices[0].Confidence)
	assert.Equal(t, "PN532 v1.6", devices[0].Metadata["firmware"])
	// the blocklisted Arduino is never opened
	assert.Equal(t, []string{"/dev/ttyUSB0"}, probed)
}

func TestDetect_Errors(t *testing.T) {
	t.Parallel()

	opts := detection.DefaultOptions()

	errEnum := errors.New("enumeration failed")
	d := &detector{listPorts: func() ([]*enumerator.PortDetails, error) { return nil, errEnum }}
	_, err := d.Detect(context.Background(), &opts)
	require.ErrorIs(t, err, errEnum)

	d = &detector{listPorts: func() ([]*enumerator.PortDetails, error) { return nil, nil }}
	_, err = d.Detect(context.Background(), &opts)
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
}
