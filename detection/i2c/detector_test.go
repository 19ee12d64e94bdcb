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

package i2c

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-silica/detection"
	"github.com/ZaparooProject/go-silica/pn532"
)

func TestDetect(t *testing.T) {
	t.Parallel()

	d := &detector{
		listBuses: func() ([]string, error) { return []string{"/dev/i2c-1", "/dev/i2c-2"}, nil },
		probe: func(_ context.Context, bus string) (*pn532.FirmwareVersion, error) {
			if bus == "/dev/i2c-2" {
				return nil, pn532.ErrNoACK
			}
			return &pn532.FirmwareVersion{IC: 0x32, Version: "1.6"}, nil
		},
	}

	opts := detection.DefaultOptions()
	devices, err := d.Detect(context.Background(), &opts)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "/dev/i2c-1:0x24", devices[0].Path)
	assert.Equal(t, detection.Low, devices[0].Confidence)

	opts.Mode = detection.Probe
	devices, err = d.Detect(context.Background(), &opts)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, detection.High, devices[0].Confidence)

	opts.IgnorePaths = []string{"/dev/i2c-1"}
	_, err = d.Detect(context.Background(), &opts)
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
}

func TestDetect_HostError(t *testing.T) {
	t.Parallel()

	errHost := errors.New("no sysfs")
	d := &detector{listBuses: func() ([]string, error) { return nil, errHost }}
	opts := detection.DefaultOptions()
	_, err := d.Detect(context.Background(), &opts)
	require.ErrorIs(t, err, errHost)
}
