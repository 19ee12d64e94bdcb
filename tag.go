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

package silica

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single command exchange with the tag.
const DefaultTimeout = time.Second

// Commander sends one FeliCa command to a selected tag and returns the
// response body that follows the status flags. Implementations must report
// a non-zero status as an error wrapping ErrCommandRejected.
type Commander interface {
	SendCommand(ctx context.Context, code byte, frame []byte, timeout time.Duration) ([]byte, error)
}

// Option configures Read and Write.
type Option func(*options)

type options struct {
	timeout time.Duration
}

// WithTimeout overrides DefaultTimeout for the exchange.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Read sends the read frame for cmd and decodes the response. A failed
// exchange is returned as is; nothing is retried.
func Read(ctx context.Context, c Commander, cmd Command, opts ...Option) (*Result, error) {
	o := applyOptions(opts)

	raw, err := c.SendCommand(ctx, CommandRead, cmd.ReadFrame(), o.timeout)
	if err != nil {
		return nil, wrapTransportError("read", cmd.Address(), err)
	}

	res, err := Decode(cmd.Shape(), raw)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", cmd, err)
	}
	return res, nil
}

// Write validates param, builds the write frame for cmd and sends it once.
func Write(ctx context.Context, c Commander, cmd Command, param []byte, opts ...Option) error {
	o := applyOptions(opts)

	if !cmd.Writable() {
		return newValidationError("Write", ErrUnknownCommand, "%s is read-only", cmd)
	}
	frame, err := cmd.WriteFrame(param)
	if err != nil {
		return err
	}

	if _, err := c.SendCommand(ctx, CommandWrite, frame, o.timeout); err != nil {
		return wrapTransportError("write", cmd.Address(), err)
	}
	return nil
}

func wrapTransportError(op string, block BlockAddress, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	if !errors.Is(err, ErrNoTagFound) && !errors.Is(err, ErrCommandRejected) {
		err = fmt.Errorf("%w: %w", ErrCommandRejected, err)
	}
	return &TransportError{Op: op, Block: block, Err: err}
}
