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
	"encoding/binary"
	"fmt"
)

const (
	responsePolling = 0x01
	idLen           = 8
	// length, response code, IDm, PMm
	pollingBaseLen = 2 + 2*idLen
)

// PollingResponse is a decoded polling response.
type PollingResponse struct {
	IDm []byte
	PMm []byte
	// SystemCode is set when the response carries request data.
	SystemCode    uint16
	HasSystemCode bool
}

// ParsePollingResponse decodes a polling response packet including its
// length byte.
func ParsePollingResponse(pol []byte) (*PollingResponse, error) {
	if len(pol) < pollingBaseLen || int(pol[0]) != len(pol) || pol[1] != responsePolling {
		return nil, fmt.Errorf("%w: polling response % X", ErrMalformedResponse, pol)
	}
	res := &PollingResponse{
		IDm: append([]byte(nil), pol[2:2+idLen]...),
		PMm: append([]byte(nil), pol[2+idLen:pollingBaseLen]...),
	}
	if len(pol) >= pollingBaseLen+2 {
		res.SystemCode = binary.BigEndian.Uint16(pol[pollingBaseLen:])
		res.HasSystemCode = true
	}
	return res, nil
}
