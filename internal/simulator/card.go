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

// Package simulator provides test doubles below the codec: a virtual SiliCa
// card that answers FeliCa packets the way the tag firmware does, and a
// virtual PN532 that speaks the host link frame protocol in front of it.
package simulator

import (
	"bytes"

	"github.com/ZaparooProject/go-silica/internal/syncutil"
)

// Card geometry and error log layout.
const (
	CardBlocks      = 12
	MaxSystemCodes  = 4
	MaxServiceCodes = 4
	ErrorLogSize    = 32
	blockSize       = 16
	errorLogBlock   = 0xE0
)

// FeliCa command codes handled by the card.
const (
	cmdPolling           = 0x00
	cmdRequestService    = 0x02
	cmdRequestResponse   = 0x04
	cmdRead              = 0x06
	cmdWrite             = 0x08
	cmdSearchServiceCode = 0x0A
	cmdRequestSystemCode = 0x0C
	cmdEcho              = 0xF0
)

// Status flag 2 values reported with flag 1 = 0xFF.
const (
	StatusServiceCount = 0xA1
	StatusBlockCount   = 0xA2
	StatusServiceCode  = 0xA6
	StatusBlockNumber  = 0xA8
)

// Card is a virtual SiliCa tag. Packets include their leading length byte.
// A nil response means the card stays silent.
type Card struct {
	mu           syncutil.Mutex
	idm          [8]byte
	pmm          [8]byte
	systemCodes  [2 * MaxSystemCodes]byte
	serviceCodes [2 * MaxServiceCodes]byte
	blocks       [CardBlocks][blockSize]byte
	lastError    [ErrorLogSize]byte
}

// NewCard returns a card with the given identity answering system code
// 88B4 and service 090F. Its blocks are zero.
func NewCard(idm, pmm []byte) *Card {
	c := &Card{}
	copy(c.idm[:], idm)
	copy(c.pmm[:], pmm)
	c.systemCodes[0], c.systemCodes[1] = 0x88, 0xB4
	// stored low byte first
	c.serviceCodes[0], c.serviceCodes[1] = 0x0F, 0x09
	return c
}

// IDm returns the current IDm.
func (c *Card) IDm() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.idm[:]...)
}

// PMm returns the current PMm.
func (c *Card) PMm() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.pmm[:]...)
}

// Block returns a copy of raw block n.
func (c *Card) Block(n int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.blocks[n][:]...)
}

// SetBlock overwrites raw block n.
func (c *Card) SetBlock(n int, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copy(c.blocks[n][:], data)
}

// SystemCodes returns the 8 stored system code bytes.
func (c *Card) SystemCodes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.systemCodes[:]...)
}

// ServiceCodes returns the 8 stored service code bytes, low byte first.
func (c *Card) ServiceCodes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.serviceCodes[:]...)
}

// LastError returns the stored copy of the last failed read command.
func (c *Card) LastError() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.lastError[:]...)
}

// Handle processes one command packet and returns the response packet.
func (c *Card) Handle(cmd []byte) []byte {
	if len(cmd) < 2 || int(cmd[0]) != len(cmd) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	code := cmd[1]
	switch {
	case code == cmdPolling:
		if len(cmd) < 6 {
			return nil
		}
		return c.poll(uint16(cmd[2])<<8|uint16(cmd[3]), cmd[4])
	case code == cmdEcho && len(cmd) > 2 && cmd[2] == 0x00:
		return append([]byte(nil), cmd...)
	}

	if len(cmd) < 10 || !c.addressed(cmd[2:10]) || code%2 != 0 {
		return nil
	}

	res := make([]byte, 10, 0xFF)
	res[1] = code + 1
	copy(res[2:10], cmd[2:10])

	switch code {
	case cmdRequestService:
		return requestService(cmd, res)
	case cmdRequestResponse:
		if len(cmd) != 10 {
			return nil
		}
		return finish(append(res, 0x00))
	case cmdRead:
		out := c.read(cmd, res)
		if out != nil && out[10] != 0x00 {
			c.saveError(cmd)
		}
		return out
	case cmdWrite:
		return c.write(cmd, res)
	case cmdSearchServiceCode:
		if len(cmd) != 12 {
			return nil
		}
		return c.searchServiceCode(int(cmd[10])|int(cmd[11])<<8, res)
	case cmdRequestSystemCode:
		if len(cmd) != 10 {
			return nil
		}
		return c.requestSystemCode(res)
	default:
		return nil
	}
}

// Poll answers a polling request for systemCode with requestCode.
func (c *Card) Poll(systemCode uint16, requestCode byte) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.poll(systemCode, requestCode)
}

func (c *Card) poll(systemCode uint16, requestCode byte) []byte {
	hi, lo := byte(systemCode>>8), byte(systemCode)
	index := -1
	for i := range MaxSystemCodes {
		s1, s2 := c.systemCodes[2*i], c.systemCodes[2*i+1]
		if s1 == 0 && s2 == 0 {
			break
		}
		if (hi == s1 || hi == 0xFF) && (lo == s2 || lo == 0xFF) {
			index = i
			break
		}
	}
	// the wildcard always selects the primary system
	if systemCode == 0xFFFF {
		index = 0
	}
	if index < 0 || requestCode > 0x02 {
		return nil
	}

	res := make([]byte, 18, 20)
	res[1] = 0x01
	copy(res[2:10], c.idm[:])
	copy(res[10:18], c.pmm[:])
	if index > 0 {
		res[2] = byte(index<<4) | res[2]&0x0F
	}
	switch requestCode {
	case 0x01:
		res = append(res, c.systemCodes[2*index], c.systemCodes[2*index+1])
	case 0x02:
		// reserved, 212 kbps only
		res = append(res, 0x00, 0x01)
	}
	return finish(res)
}

// addressed matches the IDm of a command. The upper nibble of byte 0
// carries the system index and is ignored.
func (c *Card) addressed(idm []byte) bool {
	return idm[0]&0x0F == c.idm[0]&0x0F && bytes.Equal(idm[1:8], c.idm[1:8])
}

func requestService(cmd, res []byte) []byte {
	if len(cmd) < 11 {
		return nil
	}
	n := int(cmd[10])
	if n < 1 || n > 32 {
		return nil
	}
	res = append(res, byte(n))
	// key version 0000 for every node
	res = append(res, make([]byte, 2*n)...)
	return finish(res)
}

func (c *Card) serviceFound(code uint16) bool {
	if code == 0xFFFF {
		return true
	}
	for i := range MaxServiceCodes {
		if uint16(c.serviceCodes[2*i])|uint16(c.serviceCodes[2*i+1])<<8 == code {
			return true
		}
	}
	return false
}

// parseBlockList decodes n block list elements and returns the block
// numbers and the list size in bytes, or 0 for a malformed list.
func parseBlockList(n int, list []byte) ([]byte, int) {
	nums := make([]byte, 0, n)
	j := 0
	for range n {
		switch {
		case j+1 < len(list) && list[j] == 0x80:
			nums = append(nums, list[j+1])
			j += 2
		case j+2 < len(list) && list[j] == 0x00 && list[j+2] == 0x00:
			nums = append(nums, list[j+1])
			j += 3
		default:
			return nil, 0
		}
	}
	return nums, j
}

func (c *Card) read(cmd, res []byte) []byte {
	if len(cmd) < 16 {
		return nil
	}
	if cmd[10] != 1 {
		return reject(res, StatusServiceCount)
	}
	if !c.serviceFound(uint16(cmd[11]) | uint16(cmd[12])<<8) {
		return reject(res, StatusServiceCode)
	}
	n := int(cmd[13])
	if n < 1 || n > CardBlocks {
		return reject(res, StatusBlockCount)
	}
	nums, size := parseBlockList(n, cmd[14:])
	if size == 0 {
		return reject(res, StatusServiceCode)
	}

	res = append(res, 0x00, 0x00, byte(n))
	for _, num := range nums {
		block, ok := c.readBlock(num)
		if !ok {
			return reject(res[:10], StatusBlockNumber)
		}
		res = append(res, block...)
	}
	return finish(res)
}

func (c *Card) readBlock(num byte) ([]byte, bool) {
	block := make([]byte, blockSize)
	switch {
	case num < CardBlocks:
		copy(block, c.blocks[num][:])
	case num <= 0x0F:
		// beyond EEPROM, reads as zeros
	case num >= errorLogBlock && num < errorLogBlock+ErrorLogSize/blockSize:
		off := int(num-errorLogBlock) * blockSize
		copy(block, c.lastError[off:off+blockSize])
	case num >= 0x81 && num <= 0x92 && num != 0x89:
		switch num {
		case 0x82:
			copy(block, c.idm[:])
			block[9] = 0x78
		case 0x83:
			copy(block, c.idm[:])
			copy(block[8:], c.pmm[:])
		case 0x84:
			copy(block, c.serviceCodes[:])
		case 0x85:
			copy(block, c.systemCodes[:])
		case 0x88:
			copy(block, []byte{0xFF, 0xFF, 0xFF, 0x00, 0xFF})
		}
	default:
		return nil, false
	}
	return block, true
}

func (c *Card) write(cmd, res []byte) []byte {
	if len(cmd) < 32 {
		return nil
	}
	if cmd[10] != 1 {
		return reject(res, StatusServiceCount)
	}
	n := int(cmd[13])
	if n < 1 || n > CardBlocks {
		return reject(res, StatusBlockCount)
	}
	nums, size := parseBlockList(n, cmd[14:])
	if size == 0 {
		return reject(res, StatusServiceCode)
	}
	if len(cmd) != 14+size+blockSize*n {
		return nil
	}

	// identity blocks take their data at a fixed offset
	const single = 16
	for i, num := range nums {
		data := cmd[14+size+blockSize*i : 14+size+blockSize*(i+1)]
		switch {
		case num < CardBlocks:
			copy(c.blocks[num][:], data)
		case num == 0x80, num == 0x90, num == 0x91:
			// RC, STATE and MAC_A writes of the mutual authentication
			// handshake are accepted and ignored
		case n == 1 && num == 0x83:
			copy(c.idm[:], cmd[single:single+8])
			copy(c.pmm[:], cmd[single+8:single+16])
		case n == 1 && num == 0x84:
			copy(c.serviceCodes[:], cmd[single:single+2*MaxServiceCodes])
		case n == 1 && num == 0x85:
			copy(c.systemCodes[:], cmd[single:single+2*MaxSystemCodes])
		default:
			return reject(res, StatusBlockNumber)
		}
	}
	return finish(append(res, 0x00, 0x00))
}

func (c *Card) searchServiceCode(index int, res []byte) []byte {
	if index < 0 || index >= MaxServiceCodes {
		return finish(append(res, 0xFF, 0xFF))
	}
	s1, s2 := c.serviceCodes[2*index], c.serviceCodes[2*index+1]
	if s1 == 0 && s2 == 0 {
		return finish(append(res, 0xFF, 0xFF))
	}
	return finish(append(res, s1, s2))
}

func (c *Card) requestSystemCode(res []byte) []byte {
	res = append(res, 0)
	n := 0
	for i := range MaxSystemCodes {
		s1, s2 := c.systemCodes[2*i], c.systemCodes[2*i+1]
		if s1 == 0 && s2 == 0 {
			break
		}
		res = append(res, s1, s2)
		n++
	}
	if n == 0 {
		return nil
	}
	res[10] = byte(n)
	return finish(res)
}

// saveError keeps the first 32 bytes of a failed command, length byte
// included. Bytes past a shorter command keep their old contents.
func (c *Card) saveError(cmd []byte) {
	copy(c.lastError[:], cmd)
}

func reject(res []byte, flag2 byte) []byte {
	return finish(append(res[:10], 0xFF, flag2))
}

// finish stores the packet length in byte 0.
func finish(res []byte) []byte {
	res[0] = byte(len(res))
	return res
}
