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

	"github.com/ZaparooProject/go-silica/internal/syncutil"
	"go.uber.org/multierr"
)

// Device errors
var (
	ErrNotInitialized = errors.New("device not initialized")
	ErrNoActiveTarget = errors.New("no active target")
)

// DefaultTimeout is the host side wait for a PN532 response.
const DefaultTimeout = time.Second

// Option configures a Device.
type Option func(*Device) error

// WithTimeout sets the default timeout used when the caller's context has
// no deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout <= 0 {
			return fmt.Errorf("invalid timeout %v", timeout)
		}
		d.timeout = timeout
		return nil
	}
}

// WithPassiveActivationRetries sets MxRtyPassiveActivation. 0xFF means retry
// forever and is refused.
func WithPassiveActivationRetries(n byte) Option {
	return func(d *Device) error {
		if n == 0xFF {
			return errors.New("infinite passive activation retries are not supported")
		}
		d.activationRetries = n
		return nil
	}
}

// Device is a PN532 acting as a FeliCa initiator.
//
// Device is safe for concurrent use; commands are serialized because the
// chip handles one frame at a time.
type Device struct {
	transport         Transport
	firmware          *FirmwareVersion
	mu                syncutil.Mutex
	cmdMu             syncutil.Mutex
	timeout           time.Duration
	activationRetries byte
	activeTarget      byte
}

// New creates a device on top of transport. It does not talk to the chip;
// call Init before use.
func New(transport Transport, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, errors.New("nil transport")
	}
	d := &Device{
		transport:         transport,
		timeout:           DefaultTimeout,
		activationRetries: DefaultPassiveActivationRetries,
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Transport returns the underlying transport.
func (d *Device) Transport() Transport {
	return d.transport
}

// FirmwareVersion returns the version read by Init, or nil.
func (d *Device) FirmwareVersion() *FirmwareVersion {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.firmware
}

// Init wakes the chip: SAM normal mode, bounded activation retries and a
// firmware version check.
func (d *Device) Init(ctx context.Context) error {
	if err := d.SAMConfiguration(ctx, SAMModeNormal, samDefaultTimeout, samUseIRQ); err != nil {
		return fmt.Errorf("SAM configuration: %w", err)
	}
	if err := d.SetPassiveActivationRetries(ctx, d.activationRetries); err != nil {
		return fmt.Errorf("RF configuration: %w", err)
	}
	fw, err := d.GetFirmwareVersion(ctx)
	if err != nil {
		return err
	}
	debugf("firmware %s, ISO18092 support: %t", fw, fw.SupportIso18092)
	return nil
}

// GetFirmwareVersion queries and caches the chip's firmware version.
func (d *Device) GetFirmwareVersion(ctx context.Context) (*FirmwareVersion, error) {
	res, err := d.exchange(ctx, cmdGetFirmwareVersion, nil)
	if err != nil {
		return nil, fmt.Errorf("GetFirmwareVersion: %w", err)
	}
	fw, err := parseFirmwareVersion(res)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.firmware = fw
	d.mu.Unlock()
	return fw, nil
}

// SAMConfiguration selects how the chip uses its security module.
func (d *Device) SAMConfiguration(ctx context.Context, mode SAMMode, timeout, irq byte) error {
	_, err := d.exchange(ctx, cmdSamConfiguration, []byte{byte(mode), timeout, irq})
	return err
}

// SetPassiveActivationRetries sets how often InListPassiveTarget retries
// before giving up.
func (d *Device) SetPassiveActivationRetries(ctx context.Context, n byte) error {
	// MxRtyATR, MxRtyPSL, MxRtyPassiveActivation
	_, err := d.exchange(ctx, cmdRFConfiguration, []byte{rfItemMaxRetries, 0x00, 0x00, n})
	return err
}

// PollFeliCa lists one FeliCa target at the given bit rate (BrTyFeliCa212 or
// BrTyFeliCa424) answering systemCode, asking for its system code in the
// reply. It returns the polling response as sent by the card, starting with
// its length byte. ErrNoTarget is returned when nothing answered.
func (d *Device) PollFeliCa(ctx context.Context, brTy byte, systemCode uint16) ([]byte, error) {
	if brTy != BrTyFeliCa212 && brTy != BrTyFeliCa424 {
		return nil, fmt.Errorf("baud rate %#02x is not a FeliCa rate", brTy)
	}
	// Polling payload: code 00, system code, request code 01 (system code), time slot 0
	args := []byte{0x01, brTy, 0x00, byte(systemCode >> 8), byte(systemCode), 0x01, 0x00}
	res, err := d.exchange(ctx, cmdInListPassiveTarget, args)
	if err != nil {
		return nil, fmt.Errorf("InListPassiveTarget: %w", err)
	}
	if len(res) < 2 {
		return nil, NewInvalidResponseError("InListPassiveTarget", "")
	}
	if res[1] == 0 {
		return nil, ErrNoTarget
	}
	// [0x4B, NbTg, Tg, POL_RES...]
	if len(res) < 4 || int(res[3]) > len(res)-3 {
		return nil, NewInvalidResponseError("InListPassiveTarget", "")
	}
	pol := res[3 : 3+int(res[3])]

	d.mu.Lock()
	d.activeTarget = res[2]
	d.mu.Unlock()
	debugf("FeliCa target %d: % X", res[2], pol)
	return append([]byte(nil), pol...), nil
}

// DataExchange sends packet to the active target and returns its reply.
// A non-zero PN532 status is returned as a *PN532Error.
func (d *Device) DataExchange(ctx context.Context, packet []byte) ([]byte, error) {
	d.mu.Lock()
	tg := d.activeTarget
	d.mu.Unlock()
	if tg == 0 {
		return nil, ErrNoActiveTarget
	}

	args := make([]byte, 0, len(packet)+1)
	args = append(args, tg)
	args = append(args, packet...)
	res, err := d.exchange(ctx, cmdInDataExchange, args)
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, NewInvalidResponseError("InDataExchange", "")
	}
	if status := res[1] & 0x3F; status != 0 {
		return nil, NewPN532Error(status, "InDataExchange", "")
	}
	return res[2:], nil
}

// Release deselects every target. It is a no-op when none is active.
func (d *Device) Release(ctx context.Context) error {
	d.mu.Lock()
	active := d.activeTarget != 0
	d.activeTarget = 0
	d.mu.Unlock()
	if !active {
		return nil
	}

	res, err := d.exchange(ctx, cmdInRelease, []byte{0x00})
	if err != nil {
		return fmt.Errorf("InRelease: %w", err)
	}
	if len(res) >= 2 && res[1]&0x3F != 0 {
		return NewPN532Error(res[1]&0x3F, "InRelease", "")
	}
	return nil
}

// Close releases any active target and closes the transport.
func (d *Device) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var err error
	if d.transport.IsConnected() {
		err = multierr.Append(err, d.Release(ctx))
	}
	return multierr.Append(err, d.transport.Close())
}

// exchange sends one command and checks the response code. The default
// timeout applies when ctx has no deadline of its own.
func (d *Device) exchange(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	d.cmdMu.Lock()
	res, err := d.transport.SendCommand(ctx, cmd, args)
	d.cmdMu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, NewInvalidResponseError(fmt.Sprintf("command %#02x", cmd), "")
	}
	if res[0] == errorFrameMarker {
		code := byte(0)
		if len(res) > 1 {
			code = res[1]
		}
		return nil, NewPN532Error(code, fmt.Sprintf("command %#02x", cmd), "error frame")
	}
	if res[0] != cmd+1 {
		return nil, fmt.Errorf("%w: response %#02x to command %#02x", ErrInvalidResponse, res[0], cmd)
	}
	return res, nil
}
