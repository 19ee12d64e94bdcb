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
	"fmt"
	"time"

	"github.com/ZaparooProject/go-silica/detection"
)

// TransportFactory opens a transport for an explicit device path.
type TransportFactory func(path string) (Transport, error)

// TransportFromDeviceFactory opens a transport for a detected device.
type TransportFromDeviceFactory func(device detection.DeviceInfo) (Transport, error)

// ConnectOption configures ConnectDevice.
type ConnectOption func(*connectConfig) error

type connectConfig struct {
	transportFactory       TransportFactory
	transportDeviceFactory TransportFromDeviceFactory
	deviceDetector         func(context.Context, *detection.Options) ([]detection.DeviceInfo, error)
	deviceOptions          []Option
	retry                  *RetryConfig
	autoDetect             bool
}

// WithAutoDetection picks the first detected reader instead of a path.
func WithAutoDetection() ConnectOption {
	return func(c *connectConfig) error {
		c.autoDetect = true
		return nil
	}
}

// WithDeviceOptions adds Device options.
func WithDeviceOptions(opts ...Option) ConnectOption {
	return func(c *connectConfig) error {
		c.deviceOptions = append(c.deviceOptions, opts...)
		return nil
	}
}

// WithTransportFactory sets how explicit paths are opened.
func WithTransportFactory(factory TransportFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportFactory = factory
		return nil
	}
}

// WithTransportFromDeviceFactory sets how detected devices are opened.
func WithTransportFromDeviceFactory(factory TransportFromDeviceFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportDeviceFactory = factory
		return nil
	}
}

// WithConnectionRetries sets how many times initialization is attempted.
func WithConnectionRetries(maxAttempts int) ConnectOption {
	return func(c *connectConfig) error {
		if maxAttempts < 1 {
			return fmt.Errorf("connection retries must be at least 1, got %d", maxAttempts)
		}
		c.retry.MaxAttempts = maxAttempts
		return nil
	}
}

// WithDeviceDetector replaces detection.DetectAll for auto-detection.
func WithDeviceDetector(
	detector func(context.Context, *detection.Options) ([]detection.DeviceInfo, error),
) ConnectOption {
	return func(c *connectConfig) error {
		c.deviceDetector = detector
		return nil
	}
}

// ConnectDevice opens a transport for path, or for the first detected reader
// when path is empty or auto-detection is enabled, then initializes the chip.
// Initialization is retried on transient errors; the transport is closed if
// it never succeeds.
//
//	device, err := pn532.ConnectDevice(ctx, "/dev/ttyUSB0",
//		pn532.WithTransportFactory(openUART))
func ConnectDevice(ctx context.Context, path string, opts ...ConnectOption) (*Device, error) {
	config := &connectConfig{retry: DefaultRetryConfig()}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply connect option: %w", err)
		}
	}

	var (
		transport Transport
		err       error
	)
	if config.autoDetect || path == "" {
		transport, err = openDetected(ctx, config)
	} else {
		transport, err = openPath(path, config.transportFactory)
	}
	if err != nil {
		return nil, err
	}

	device, err := New(transport, config.deviceOptions...)
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	err = RetryWithConfig(ctx, config.retry, func() error {
		return device.Init(ctx)
	})
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("failed to initialize device: %w", err)
	}
	return device, nil
}

func openPath(path string, factory TransportFactory) (Transport, error) {
	if factory == nil {
		return nil, errors.New("transport factory not provided")
	}
	transport, err := factory(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return transport, nil
}

func openDetected(ctx context.Context, config *connectConfig) (Transport, error) {
	if config.transportDeviceFactory == nil {
		return nil, errors.New("transport device factory not provided")
	}

	opts := detection.DefaultOptions()
	detectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	detect := config.deviceDetector
	if detect == nil {
		detect = detection.DetectAll
	}
	devices, err := detect(detectCtx, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to detect devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}

	debugf("using detected %s", devices[0])
	return config.transportDeviceFactory(devices[0])
}

// ProbeFirmware asks the chip behind transport for its firmware version
// without initializing it. Detectors use it to confirm a candidate; the
// transport is left open.
func ProbeFirmware(ctx context.Context, transport Transport) (*FirmwareVersion, error) {
	device, err := New(transport)
	if err != nil {
		return nil, err
	}
	return device.GetFirmwareVersion(ctx)
}
