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

package layers

import (
	"fmt"
)

// ErrUnknownSignature returned when a wire packet carries neither DirAct signature
type ErrUnknownSignature struct {
	Signature Signature
}

func (e ErrUnknownSignature) Error() string {
	return fmt.Sprintf("Unknown DirAct signature: 0x%08x", uint32(e.Signature))
}

// ErrTruncatedPacket returned when there are fewer bytes than the fields or the frame length require
type ErrTruncatedPacket struct {
	Layer string
	Need  int
	Have  int
}

func (e ErrTruncatedPacket) Error() string {
	return fmt.Sprintf("%s packet too short: need %d bytes, have %d", e.Layer, e.Need, e.Have)
}

// ErrInvalidBitfield returned when a header field holds a value the layout does not allow
type ErrInvalidBitfield struct {
	Field string
	Value int
}

func (e ErrInvalidBitfield) Error() string {
	return fmt.Sprintf("Invalid value of %s: %d", e.Field, e.Value)
}
