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

// Package spi lists SPI ports that may host a PN532. Importing it registers
// the detector.
package spi

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-silica/detection"
	"github.com/ZaparooProject/go-silica/pn532"
	"github.com/ZaparooProject/go-silica/transport/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const probeTimeout = 500 * time.Millisecond

type detector struct {
	listPorts func() ([]string, error)
	probe     func(ctx context.Context, port string) (*pn532.FirmwareVersion, error)
}

// New returns the SPI detector.
func New() detection.Detector {
	return &detector{listPorts: listPorts, probe: probe}
}

func init() {
	detection.RegisterDetector(New())
}

func (*detector) Transport() string {
	return detection.TransportSPI
}

func listPorts() ([]string, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	var names []string
	for _, ref := range spireg.All() {
		names = append(names, ref.Name)
	}
	return names, nil
}

// Detect is passive unless probe mode is set: an SPI port says nothing
// about what is wired to it. In probe mode only answering ports are kept.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := d.listPorts()
	if err != nil {
		return nil, err
	}

	var devices []detection.DeviceInfo
	for _, port := range ports {
		if detection.IsPathIgnored(port, opts.IgnorePaths) {
			continue
		}
		info := detection.DeviceInfo{
			Transport:  detection.TransportSPI,
			Path:       port,
			Name:       "SPI port " + port,
			Confidence: detection.Low,
			Metadata:   map[string]string{},
		}
		if opts.Mode == detection.Probe {
			fw, err := d.probe(ctx, port)
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

func probe(ctx context.Context, port string) (*pn532.FirmwareVersion, error) {
	tr, err := spi.New(port)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tr.Close() }()

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return pn532.ProbeFirmware(ctx, tr)
}
