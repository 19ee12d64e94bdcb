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

// Package detection finds PN532 readers attached to the host. Transport
// specific detectors live in subpackages and register themselves on import.
package detection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/multierr"
)

// Mode selects how much work detectors do.
type Mode int

const (
	// Passive only enumerates system devices.
	Passive Mode = iota
	// Probe additionally sends GetFirmwareVersion to each candidate.
	Probe
)

// Confidence is how sure a detector is that a device is a PN532.
type Confidence int

const (
	// Low means the device merely could host a PN532.
	Low Confidence = iota
	// Medium means the device matches a known PN532 board or reader.
	Medium
	// High means the device answered GetFirmwareVersion.
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// Transport names used in DeviceInfo.Transport.
const (
	TransportUART = "uart"
	TransportI2C  = "i2c"
	TransportSPI  = "spi"
	TransportPCSC = "pcsc"
)

// DeviceInfo describes a detected reader.
type DeviceInfo struct {
	// Metadata holds detector specific details such as "vidpid".
	Metadata   map[string]string
	Transport  string
	Path       string
	Name       string
	Confidence Confidence
}

func (d DeviceInfo) String() string {
	name := ""
	if d.Name != "" {
		name = " (" + d.Name + ")"
	}
	return fmt.Sprintf("%s:%s%s [%s]", d.Transport, d.Path, name, d.Confidence)
}

// Options tune DetectAll.
type Options struct {
	// Blocklist holds VID:PID pairs never reported.
	Blocklist []string
	// IgnorePaths holds device paths never reported.
	IgnorePaths []string
	// Transports restricts detection to the named transports.
	Transports []string
	CacheTTL   time.Duration
	Timeout    time.Duration
	Mode       Mode
	// EnableCache reuses results younger than CacheTTL.
	EnableCache bool
}

// DefaultOptions returns passive detection with a short-lived cache.
func DefaultOptions() Options {
	return Options{
		Mode:        Passive,
		Timeout:     5 * time.Second,
		Blocklist:   DefaultBlocklist(),
		EnableCache: true,
		CacheTTL:    30 * time.Second,
	}
}

// Detector finds devices for one transport.
type Detector interface {
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
	Transport() string
}

var (
	// ErrNoDevicesFound is returned when no detector found anything.
	ErrNoDevicesFound = errors.New("no PN532 devices found")
	// ErrDetectionTimeout is returned when detection outlives its context.
	ErrDetectionTimeout = errors.New("detection timeout")
	// ErrUnsupportedPlatform is returned by detectors that cannot run here.
	ErrUnsupportedPlatform = errors.New("platform not supported")
	// ErrNoDetectors is returned when no registered detector matches.
	ErrNoDetectors = errors.New("no detectors available for specified transports")
)

var registry []Detector

// RegisterDetector adds d to the detectors used by DetectAll.
func RegisterDetector(d Detector) {
	registry = append(registry, d)
}

func detectorsFor(transports []string) []Detector {
	if len(transports) == 0 {
		return registry
	}
	var out []Detector
	for _, d := range registry {
		if slices.Contains(transports, d.Transport()) {
			out = append(out, d)
		}
	}
	return out
}

type detectionResult struct {
	err     error
	devices []DeviceInfo
}

// DetectAll runs the registered detectors in parallel and merges their
// results. Errors of single detectors only surface when nothing was found.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	detectors := detectorsFor(opts.Transports)
	if len(detectors) == 0 {
		return nil, ErrNoDetectors
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	results := make(chan detectionResult, len(detectors))
	for _, d := range detectors {
		go func() {
			results <- runDetector(ctx, d, opts)
		}()
	}

	var devices []DeviceInfo
	var errs error
	for range detectors {
		select {
		case res := <-results:
			errs = multierr.Append(errs, res.err)
			devices = append(devices, res.devices...)
		case <-ctx.Done():
			return nil, ErrDetectionTimeout
		}
	}

	switch {
	case len(devices) > 0:
		slices.SortStableFunc(devices, func(a, b DeviceInfo) int { return int(b.Confidence - a.Confidence) })
		return devices, nil
	case errs != nil:
		return nil, errs
	default:
		return nil, ErrNoDevicesFound
	}
}

func runDetector(ctx context.Context, d Detector, opts *Options) detectionResult {
	if opts.EnableCache {
		if cached, ok := getCached(d.Transport(), opts.CacheTTL); ok {
			return detectionResult{devices: filterDevices(cached, opts)}
		}
	}

	devices, err := d.Detect(ctx, opts)
	switch {
	case errors.Is(err, ErrNoDevicesFound), errors.Is(err, ErrUnsupportedPlatform):
		err = nil
	case err != nil:
		return detectionResult{err: fmt.Errorf("%s: %w", d.Transport(), err)}
	}

	if opts.EnableCache {
		if len(devices) > 0 {
			setCached(d.Transport(), devices)
		} else {
			clearCacheForTransport(d.Transport())
		}
	}
	return detectionResult{devices: filterDevices(devices, opts)}
}

func filterDevices(devices []DeviceInfo, opts *Options) []DeviceInfo {
	if len(opts.IgnorePaths) == 0 && len(opts.Blocklist) == 0 {
		return devices
	}
	var out []DeviceInfo
	for _, d := range devices {
		if IsPathIgnored(d.Path, opts.IgnorePaths) {
			continue
		}
		if vidpid, ok := d.Metadata["vidpid"]; ok && IsBlocked(vidpid, opts.Blocklist) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// ClearDetectionCache forgets all cached results.
func ClearDetectionCache() {
	clearCache()
}
