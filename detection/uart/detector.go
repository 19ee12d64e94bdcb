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

// Package uart detects PN532 boards behind USB serial bridges. Importing it
// registers the detector.
package uart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/go-silica/detection"
	"github.com/ZaparooProject/go-silica/pn532"
	"github.com/ZaparooProject/go-silica/transport/uart"
	"go.bug.st/serial/enumerator"
)

// knownBridges maps the USB serial chips found on PN532 breakout boards
// and USB dongles to a display name.
var knownBridges = map[string]string{
	"1A86:7523": "CH340",
	"1A86:55D4": "CH9102",
	"10C4:EA60": "CP210x",
	"0403:6001": "FT232R",
	"0403:6015": "FT231X",
	"067B:2303": "PL2303",
}

const probeTimeout = time.Second

type detector struct {
	listPorts func() ([]*enumerator.PortDetails, error)
	probe     func(ctx context.Context, path string) (*pn532.FirmwareVersion, error)
}

// New returns the serial port detector.
func New() detection.Detector {
	return &detector{
		listPorts: enumerator.GetDetailedPortsList,
		probe:     probe,
	}
}

func init() {
	detection.RegisterDetector(New())
}

func (*detector) Transport() string {
	return detection.TransportUART
}

// Detect lists USB serial ports. Known bridge chips are reported with
// medium confidence; in probe mode every USB port is asked for its
// firmware version and kept only if it answers.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := d.listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var devices []detection.DeviceInfo
	for _, port := range ports {
		if err := ctx.Err(); err != nil {
			return devices, err
		}
		if !port.IsUSB {
			continue
		}

		vidpid := fmt.Sprintf("%s:%s", port.VID, port.PID)
		bridge, known := lookupBridge(vidpid)
		if !known && opts.Mode != detection.Probe {
			continue
		}

		info := detection.DeviceInfo{
			Transport:  detection.TransportUART,
			Path:       port.Name,
			Name:       bridge,
			Confidence: detection.Medium,
			Metadata: map[string]string{
				"vidpid":  vidpid,
				"serial":  port.SerialNumber,
				"product": port.Product,
			},
		}

		if opts.Mode == detection.Probe {
			if detection.IsBlocked(vidpid, opts.Blocklist) {
				continue
			}
			fw, err := d.probe(ctx, port.Name)
			if err != nil {
				pn532.Logger().Debugf("probe %s: %v", port.Name, err)
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

func lookupBridge(vidpid string) (string, bool) {
	name, ok := knownBridges[strings.ToUpper(vidpid)]
	return name, ok
}

func probe(ctx context.Context, path string) (*pn532.FirmwareVersion, error) {
	tr, err := uart.New(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tr.Close() }()

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return pn532.ProbeFirmware(ctx, tr)
}
