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

package felica

import (
	"context"
	"errors"
	"fmt"
	"time"

	silica "github.com/ZaparooProject/go-silica"
	"github.com/ZaparooProject/go-silica/pn532"
	"golang.org/x/time/rate"
)

// WildcardSystemCode matches every system at polling.
const WildcardSystemCode = 0xFFFF

// DefaultPollInterval spaces polling attempts while waiting for a tag.
const DefaultPollInterval = 250 * time.Millisecond

// Reader finds tags and exchanges packets with the selected one.
// *pn532.Device implements it.
type Reader interface {
	Exchanger
	PollFeliCa(ctx context.Context, brTy byte, systemCode uint16) ([]byte, error)
}

// ConnectOption configures Connect.
type ConnectOption func(*connectOptions)

type connectOptions struct {
	interval   time.Duration
	systemCode uint16
}

// WithPollInterval changes the spacing of polling attempts.
func WithPollInterval(d time.Duration) ConnectOption {
	return func(o *connectOptions) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithSystemCode polls for systemCode instead of the wildcard.
func WithSystemCode(systemCode uint16) ConnectOption {
	return func(o *connectOptions) {
		o.systemCode = systemCode
	}
}

// Connect polls at target until a tag answers or ctx ends. A reader that
// finds nothing, or times out, is polled again; other reader errors end
// the wait. A wait that ends without a tag reports silica.ErrNoTagFound.
func Connect(ctx context.Context, r Reader, target Target, opts ...ConnectOption) (*Tag, error) {
	o := connectOptions{interval: DefaultPollInterval, systemCode: WildcardSystemCode}
	for _, opt := range opts {
		opt(&o)
	}

	limiter := rate.NewLimiter(rate.Every(o.interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", silica.ErrNoTagFound, contextErr(ctx, err))
		}

		pol, err := r.PollFeliCa(ctx, target.BrTy(), o.systemCode)
		switch {
		case err == nil:
		case errors.Is(err, pn532.ErrNoTarget):
			continue
		case ctx.Err() != nil:
			return nil, fmt.Errorf("%w: %w", silica.ErrNoTagFound, ctx.Err())
		case pn532.IsRetryable(err) && !pn532.IsFatal(err):
			logger().Debugf("polling failed, retrying: %v", err)
			continue
		default:
			return nil, fmt.Errorf("polling at %s: %w", target, err)
		}

		res, err := ParsePollingResponse(pol)
		if err != nil {
			logger().Debugf("ignoring polling response: %v", err)
			continue
		}
		tag := NewTag(r, res)
		logger().Debugf("found %s", tag)
		return tag, nil
	}
}

// contextErr prefers the context's own error over the limiter's, which
// reports a deadline that would be exceeded before it happens.
func contextErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, ok := ctx.Deadline(); ok {
		return context.DeadlineExceeded
	}
	return err
}
