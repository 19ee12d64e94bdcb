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
	"errors"
	"fmt"
)

// Validation errors. Raised before any frame reaches the tag.
var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrInvalidHex       = errors.New("invalid hex parameter")
	ErrBadPayloadLength = errors.New("block payload must be exactly 16 bytes")
	ErrBadParamLength   = errors.New("bad parameter length")
	ErrBlockOutOfRange  = errors.New("block number out of range")
	ErrMissingParam     = errors.New("missing parameter")
)

// Protocol errors. The tag answered but the answer cannot be decoded.
var (
	ErrTruncatedResponse = errors.New("truncated response")
)

// Transport errors. Never retried.
var (
	ErrNoTagFound      = errors.New("no tag found")
	ErrCommandRejected = errors.New("command rejected by tag")
)

// ValidationError reports a caller parameter that failed local checks.
// Msg carries the corrective message shown to the user.
type ValidationError struct {
	Err error
	Op  string
	Msg string
}

func (e *ValidationError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Msg)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a response that does not match its expected shape.
type ProtocolError struct {
	Err  error
	Op   string
	Want int
	Got  int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %v (want %d bytes, got %d)", e.Op, e.Err, e.Want, e.Got)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// TransportError reports a failed exchange with the tag.
type TransportError struct {
	Err   error
	Op    string
	Block BlockAddress
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s block %02Xh: %v", e.Op, byte(e.Block), e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func newValidationError(op string, err error, format string, args ...any) *ValidationError {
	return &ValidationError{Op: op, Err: err, Msg: fmt.Sprintf(format, args...)}
}

func newTruncatedError(op string, want, got int) *ProtocolError {
	return &ProtocolError{Op: op, Err: ErrTruncatedResponse, Want: want, Got: got}
}

// IsValidation reports whether err was raised by local parameter checks.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsProtocol reports whether err is a response decoding failure.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsTransport reports whether err came from the exchange with the tag.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Message returns the corrective message of a validation error, or the
// error text for anything else.
func Message(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Msg != "" {
		return ve.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
