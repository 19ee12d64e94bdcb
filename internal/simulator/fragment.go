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

package simulator

import (
	"math/rand/v2"
	"time"
)

// FragmentConfig shapes the reads of a FragmentedPort.
type FragmentConfig struct {
	// MaxLatency is the upper bound of the random delay before each read.
	MaxLatency time.Duration
	// MinBytes is the smallest chunk returned when data is pending.
	MinBytes int
	// Seed makes the chunk sizes reproducible. Zero picks a random seed.
	Seed uint64
}

// FragmentedPort wraps a VirtualPN532 so reads return the pending bytes in
// random sized chunks, the way a USB serial adapter splits them.
type FragmentedPort struct {
	*VirtualPN532
	rng    *rand.Rand
	config FragmentConfig
	held   []byte
}

// NewFragmentedPort returns a fragmenting view of sim.
func NewFragmentedPort(sim *VirtualPN532, config FragmentConfig) *FragmentedPort {
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // test helper
	}
	if config.MinBytes < 1 {
		config.MinBytes = 1
	}
	return &FragmentedPort{
		VirtualPN532: sim,
		config:       config,
		rng:          rand.New(rand.NewPCG(seed, seed^0xDEADBEEF)), //nolint:gosec // test helper
	}
}

// Read returns at most a random chunk of the pending bytes.
func (f *FragmentedPort) Read(buf []byte) (int, error) {
	if f.config.MaxLatency > 0 {
		time.Sleep(time.Duration(f.rng.Int64N(int64(f.config.MaxLatency) + 1)))
	}

	if len(f.held) == 0 {
		tmp := make([]byte, 1024)
		n, err := f.VirtualPN532.Read(tmp)
		if err != nil || n == 0 {
			return 0, err
		}
		f.held = tmp[:n]
	}

	size := len(f.held)
	if size > f.config.MinBytes {
		size = f.config.MinBytes + f.rng.IntN(size-f.config.MinBytes+1)
	}
	size = min(size, len(buf))
	n := copy(buf, f.held[:size])
	f.held = f.held[n:]
	return n, nil
}

// ResetInputBuffer drops held and pending bytes.
func (f *FragmentedPort) ResetInputBuffer() error {
	f.held = nil
	return f.VirtualPN532.ResetInputBuffer()
}
