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
	"periph.io/x/conn/v3"
)

const (
	i2cReady = 0x01

	spiStatRead  = 0x02
	spiDataWrite = 0x01
	spiDataRead  = 0x03
)

// I2CConn presents a VirtualPN532 as the PN532's I2C target. Every read
// starts with the ready status byte; a status-only read consumes nothing.
type I2CConn struct {
	sim *VirtualPN532
}

// NewI2CConn wraps sim.
func NewI2CConn(sim *VirtualPN532) *I2CConn {
	return &I2CConn{sim: sim}
}

func (*I2CConn) String() string { return "sim-i2c" }

// Duplex implements conn.Conn.
func (*I2CConn) Duplex() conn.Duplex { return conn.Half }

// Tx writes w, then fills r.
func (c *I2CConn) Tx(w, r []byte) error {
	if len(w) > 0 {
		if _, err := c.sim.Write(w); err != nil {
			return err
		}
	}
	if len(r) == 0 {
		return nil
	}
	clear(r)
	if c.sim.Pending() == 0 {
		return nil
	}
	r[0] = i2cReady
	if len(r) > 1 {
		if _, err := c.sim.Read(r[1:]); err != nil {
			return err
		}
	}
	return nil
}

// SPIConn presents a VirtualPN532 as the PN532's SPI slave. Bytes on the
// wire are LSB first, so both directions are bit reversed.
type SPIConn struct {
	sim *VirtualPN532
}

// NewSPIConn wraps sim.
func NewSPIConn(sim *VirtualPN532) *SPIConn {
	return &SPIConn{sim: sim}
}

func (*SPIConn) String() string { return "sim-spi" }

// Duplex implements conn.Conn.
func (*SPIConn) Duplex() conn.Duplex { return conn.Full }

// Tx dispatches on the operation byte that starts w.
func (c *SPIConn) Tx(w, r []byte) error {
	if len(w) == 0 {
		return nil
	}
	clear(r)
	switch reverse(w[0]) {
	case spiStatRead:
		if len(r) > 1 && c.sim.Pending() > 0 {
			r[1] = reverse(i2cReady)
		}
	case spiDataWrite:
		data := make([]byte, len(w)-1)
		for i, b := range w[1:] {
			data[i] = reverse(b)
		}
		if _, err := c.sim.Write(data); err != nil {
			return err
		}
	case spiDataRead:
		if len(r) > 1 {
			n, err := c.sim.Read(r[1:])
			if err != nil {
				return err
			}
			for i := 1; i <= n; i++ {
				r[i] = reverse(r[i])
			}
		}
	}
	return nil
}

func reverse(b byte) byte {
	var out byte
	for range 8 {
		out = out<<1 | b&1
		b >>= 1
	}
	return out
}

var (
	_ conn.Conn = (*I2CConn)(nil)
	_ conn.Conn = (*SPIConn)(nil)
)
