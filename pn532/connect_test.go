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

import (
	"context"
	"errors"
	"testing"

	"github.com/ZaparooProject/go-silica/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectDevice_Path(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetResponse(cmdGetFirmwareVersion, firmwareResponse())

	var opened string
	device, err := ConnectDevice(context.Background(), "/dev/ttyUSB0",
		WithTransportFactory(func(path string) (Transport, error) {
			opened = path
			return mock, nil
		}))
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", opened)
	assert.NotNil(t, device.FirmwareVersion())
}

func TestConnectDevice_RetriesInit(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetError(cmdGetFirmwareVersion, ErrTransportTimeout)

	_, err := ConnectDevice(context.Background(), "/dev/ttyUSB0",
		WithConnectionRetries(2),
		WithTransportFactory(func(string) (Transport, error) { return mock, nil }))
	require.ErrorIs(t, err, ErrTransportTimeout)
	assert.Equal(t, 2, mock.GetCallCount(cmdGetFirmwareVersion))
	assert.False(t, mock.IsConnected())
}

func TestConnectDevice_AutoDetect(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetResponse(cmdGetFirmwareVersion, firmwareResponse())

	detector := func(context.Context, *detection.Options) ([]detection.DeviceInfo, error) {
		return []detection.DeviceInfo{{Transport: "pcsc", Path: "ACS ACR122U 00 00"}}, nil
	}

	var picked detection.DeviceInfo
	_, err := ConnectDevice(context.Background(), "",
		WithDeviceDetector(detector),
		WithTransportFromDeviceFactory(func(info detection.DeviceInfo) (Transport, error) {
			picked = info
			return mock, nil
		}))
	require.NoError(t, err)
	assert.Equal(t, "ACS ACR122U 00 00", picked.Path)
}

func TestConnectDevice_Errors(t *testing.T) {
	t.Parallel()

	_, err := ConnectDevice(context.Background(), "/dev/ttyUSB0")
	require.ErrorContains(t, err, "transport factory not provided")

	_, err = ConnectDevice(context.Background(), "/dev/ttyUSB0",
		WithTransportFactory(func(string) (Transport, error) { return nil, errors.New("busy") }))
	require.ErrorContains(t, err, "busy")

	_, err = ConnectDevice(context.Background(), "",
		WithDeviceDetector(func(context.Context, *detection.Options) ([]detection.DeviceInfo, error) {
			return nil, nil
		}),
		WithTransportFromDeviceFactory(func(detection.DeviceInfo) (Transport, error) { return nil, nil }))
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)

	_, err = ConnectDevice(context.Background(), "x", WithConnectionRetries(0))
	require.Error(t, err)
}

func TestProbeFirmware(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetResponse(cmdGetFirmwareVersion, firmwareResponse())
	fw, err := ProbeFirmware(context.Background(), mock)
	require.NoError(t, err)
	assert.Equal(t, byte(0x32), fw.IC)
	assert.Equal(t, 0, mock.GetCallCount(cmdSamConfiguration))
	assert.True(t, mock.IsConnected())

	_, err = ProbeFirmware(context.Background(), nil)
	require.Error(t, err)
}
