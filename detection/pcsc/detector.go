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

// Package pcsc detects PC/SC readers built around a PN532, such as the ACS
// ACR122U. Importing it registers the detector.
package pcsc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-silica/detection"
	"github.com/ebfe/scard"
	"github.com/karalabe/usb"
)

// USB IDs of the ACR122U.
const (
	acsVendorID     = 0x072F
	acr122ProductID = 0x2200
)

// knownReaders are substrings of PC/SC reader names with a PN532 inside.
var knownReaders = []string{"ACR122", "Touchatag", "Tikitag"}

type detector struct {
	listReaders  func() ([]string, error)
	enumerateUSB func(vid, pid uint16) ([]usb.DeviceInfo, error)
}

// New returns the PC/SC detector.
func New() detection.Detector {
	return &detector{
		listReaders:  listReaders,
		enumerateUSB: usb.Enumerate,
	}
}

func init() {
	detection.RegisterDetector(New())
}

func (*detector) Transport() string {
	return detection.TransportPCSC
}

func listReaders() ([]string, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("failed to establish PC/SC context: %w", err)
	}
	defer func() { _ = ctx.Release() }()

	readers, err := ctx.ListReaders()
	if errors.Is(err, scard.ErrNoReadersAvailable) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list readers: %w", err)
	}
	return readers, nil
}

// Detect reports PC/SC readers whose name marks a PN532 based device. USB
// enumeration adds the serial number when the reader is an ACR122U.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	readers, err := d.listReaders()
	if err != nil {
		return nil, err
	}

	var usbSerials []string
	if infos, err := d.enumerateUSB(acsVendorID, acr122ProductID); err == nil {
		for _, info := range infos {
			usbSerials = append(usbSerials, info.Serial)
		}
	}

	var devices []detection.DeviceInfo
	for _, reader := range readers {
		if err := ctx.Err(); err != nil {
			return devices, err
		}
		if !isKnownReader(reader) || detection.IsPathIgnored(reader, opts.IgnorePaths) {
			continue
		}

		info := detection.DeviceInfo{
			Transport:  detection.TransportPCSC,
			Path:       reader,
			Name:       reader,
			Confidence: detection.Medium,
			Metadata:   map[string]string{},
		}
		if len(usbSerials) > 0 {
			info.Metadata["vidpid"] = detection.FormatVIDPID(acsVendorID, acr122ProductID)
			// readers are numbered in enumeration order
			info.Metadata["serial"] = usbSerials[0]
			usbSerials = usbSerials[1:]
		}
		devices = append(devices, info)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func isKnownReader(name string) bool {
	upper := strings.ToUpper(name)
	for _, known := range knownReaders {
		if strings.Contains(upper, strings.ToUpper(known)) {
			return true
		}
	}
	return false
}
