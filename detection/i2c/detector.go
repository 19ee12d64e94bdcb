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

// Package i2c lists I2C buses that may host a PN532 at address 0x24.
// Importing it registers the detector.
package i2c

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-silica/detection"
	"github.com/ZaparooProject/go-silica/pn532"
	"github.com/ZaparooProject/go-silica/transport/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const probeTimeout = 500 * time.Millisecond

type detector struct {
	listBuses func() ([]string, error)
	probe     func(ctx context.Context, bus string) (*pn532.FirmwareVersion, error)
}

// New returns the I2C detector.
func New() detection.Detector {
	return &detector{listBuses: listBuses, probe: probe}
}

func init() {
	detection.RegisterDetector(New())
}

func (*detector) Transport() string {
	return detection.TransportI2C
}

func listBuses() ([]string, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	var names []string
	for _, ref := range i2creg.All() {
		names = append(names, ref.Name)
	}
	return names, nil
}

// Detect reports every bus with low confidence. Nothing identifies a PN532
// on a bus without talking to it, so only probe mode raises confidence.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	buses, err := d.listBuses()
	if err != nil {
		return nil, err
	}

	var devices []detection.DeviceInfo
	for _, bus := range buses {
		if detection.IsPathIgnored(bus, opts.IgnorePaths) {
			continue
		}
		info := detection.DeviceInfo{
			Transport:  detection.TransportI2C,
			Path:       fmt.Sprintf("%s:0x%02X", bus, i2c.Address),
			Name:       "I2C bus " + bus,
			Confidence: detection.Low,
			Metadata:   map[string]string{"bus": bus},
		}
		if opts.Mode == detection.Probe {
			fw, err := d.probe(ctx, bus)
			if err != nil {
				continue
			}
			info.Confidence = detection.High
			info.Metadata["firmware"] = fw.String()
		}
		devices = append(devices, info)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func probe(ctx context.Context, bus string) (*pn532.FirmwareVersion, error) {
	tr, err := i2c.New(bus)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tr.Close() }()

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return pn532.ProbeFirmware(ctx, tr)
}
