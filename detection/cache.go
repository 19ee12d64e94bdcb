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

package detection

import (
	"slices"
	"time"

	"github.com/ZaparooProject/go-silica/internal/syncutil"
)

// resultCache remembers the last devices found per transport so repeated
// list or connect calls do not enumerate buses again.
type resultCache struct {
	entries map[string]cached
	mu      syncutil.RWMutex
}

type cached struct {
	at      time.Time
	devices []DeviceInfo
}

var cache = &resultCache{entries: make(map[string]cached)}

func getCached(transport string, ttl time.Duration) ([]DeviceInfo, bool) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	e, ok := cache.entries[transport]
	if !ok || time.Since(e.at) > ttl {
		return nil, false
	}
	return slices.Clone(e.devices), true
}

func setCached(transport string, devices []DeviceInfo) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.entries[transport] = cached{at: time.Now(), devices: slices.Clone(devices)}
}

func clearCache() {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	clear(cache.entries)
}

func clearCacheForTransport(transport string) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	delete(cache.entries, transport)
}
