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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ZaparooProject/go-silica/detection"
	_ "github.com/ZaparooProject/go-silica/detection/i2c"
	_ "github.com/ZaparooProject/go-silica/detection/pcsc"
	_ "github.com/ZaparooProject/go-silica/detection/spi"
	_ "github.com/ZaparooProject/go-silica/detection/uart"
	"github.com/ZaparooProject/go-silica/pn532"
	"github.com/ZaparooProject/go-silica/transport/i2c"
	"github.com/ZaparooProject/go-silica/transport/pcsc"
	"github.com/ZaparooProject/go-silica/transport/spi"
	"github.com/ZaparooProject/go-silica/transport/uart"
)

const pcscPrefix = "pcsc:"

func newTransportFromDevice(device detection.DeviceInfo) (pn532.Transport, error) {
	switch strings.ToLower(device.Transport) {
	case detection.TransportUART:
		transport, err := uart.New(device.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport: %w", err)
		}
		return transport, nil
	case detection.TransportI2C:
		transport, err := i2c.New(device.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C transport: %w", err)
		}
		return transport, nil
	case detection.TransportSPI:
		transport, err := spi.New(device.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SPI transport: %w", err)
		}
		return transport, nil
	case detection.TransportPCSC:
		transport, err := pcsc.New(device.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create PC/SC transport: %w", err)
		}
		return transport, nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", device.Transport)
	}
}

// newTransport picks a transport from the shape of path: "pcsc:" names a
// PC/SC reader, paths mentioning i2c or spi go to those buses and anything
// else is a serial port.
func newTransport(path string) (pn532.Transport, error) {
	if path == "" {
		return nil, errors.New("empty device path")
	}

	if reader, ok := strings.CutPrefix(path, pcscPrefix); ok {
		return newTransportFromDevice(detection.DeviceInfo{Transport: detection.TransportPCSC, Path: reader})
	}

	pathLower := strings.ToLower(path)
	switch {
	case strings.Contains(pathLower, "i2c"):
		return newTransportFromDevice(detection.DeviceInfo{Transport: detection.TransportI2C, Path: path})
	case strings.Contains(pathLower, "spi"):
		return newTransportFromDevice(detection.DeviceInfo{Transport: detection.TransportSPI, Path: path})
	default:
		return newTransportFromDevice(detection.DeviceInfo{Transport: detection.TransportUART, Path: path})
	}
}

func openDevice(ctx context.Context, cfg *config) (*pn532.Device, error) {
	connectOpts := []pn532.ConnectOption{
		pn532.WithDeviceOptions(pn532.WithTimeout(cfg.timeout)),
	}
	if cfg.devicePath == "" {
		connectOpts = append(connectOpts,
			pn532.WithAutoDetection(),
			pn532.WithTransportFromDeviceFactory(newTransportFromDevice))
		pn532.Logger().Debug("auto-detecting PN532 readers")
	} else {
		connectOpts = append(connectOpts, pn532.WithTransportFactory(newTransport))
		pn532.Logger().Debugf("opening %s", cfg.devicePath)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	device, err := pn532.ConnectDevice(connectCtx, cfg.devicePath, connectOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PN532 device: %w", err)
	}
	if fw := device.FirmwareVersion(); fw != nil {
		pn532.Logger().Debugf("PN532 firmware %s", fw)
	}
	return device, nil
}

func runList(ctx context.Context, cfg *config, out io.Writer) error {
	opts := detection.DefaultOptions()
	opts.EnableCache = false
	if cfg.probe {
		opts.Mode = detection.Probe
	}

	devices, err := detection.DetectAll(ctx, &opts)
	if err != nil && !errors.Is(err, detection.ErrNoDevicesFound) {
		_, _ = fmt.Fprintln(out, "Error:", err)
		return err
	}
	if len(devices) == 0 {
		_, _ = fmt.Fprintln(out, "No readers found")
		return detection.ErrNoDevicesFound
	}
	for _, d := range devices {
		_, _ = fmt.Fprintln(out, d)
	}
	return nil
}
