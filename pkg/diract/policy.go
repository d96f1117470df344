/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package diract

import (
	"fmt"
)

// CountPolicy selects how the 1-byte digest count is interpreted
type CountPolicy int

const (
	// CountVerbatim uses the wire byte as the count
	CountVerbatim CountPolicy = iota
	// CountScaled treats values above 128 as a compressed encoding:
	// the low 7 bits count units of 256
	CountScaled
)

const scaledThreshold = 128

func ParseCountPolicy(s string) (CountPolicy, error) {
	switch s {
	case "", "verbatim":
		return CountVerbatim, nil
	case "scaled":
		return CountScaled, nil
	}
	return CountVerbatim, fmt.Errorf("unknown count policy: %q", s)
}

func (p CountPolicy) String() string {
	switch p {
	case CountScaled:
		return "scaled"
	default:
		return "verbatim"
	}
}

func (p CountPolicy) Decode(raw uint8) int {
	if p == CountScaled && raw > scaledThreshold {
		return int(raw&0x7f) << 8
	}
	return int(raw)
}
