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
	"math"
)

const (
	// sixBitMask selects the 6-bit value all DirAct bitfields are made of
	sixBitMask = 0x3f
	// AccelerationUnavailable is the 6-bit acceleration value reported
	// when the sensor has no reading
	AccelerationUnavailable = 32
	// RssiOffset is subtracted from the 6-bit RSSI value, giving -92..-29 dBm
	RssiOffset = 92
)

// DecodeBattery maps the low 6 bits of v (0..63) onto 0..100 percent
func DecodeBattery(v uint8) int {
	return int(math.Round(100 * float64(v&sixBitMask) / 63))
}

// DecodeAcceleration decodes one 6-bit twos-complement acceleration value in units of 1/16 g.
// If upper is set the value occupies bits 7..2 of v, otherwise bits 5..0.
// ok is false for the "unavailable" value 32.
func DecodeAcceleration(v uint8, upper bool) (g float64, ok bool) {
	if upper {
		v >>= 2
	}
	v &= sixBitMask
	switch {
	case v == AccelerationUnavailable:
		return 0, false
	case v > AccelerationUnavailable:
		return float64(int(v)-64) / 16, true
	default:
		return float64(v) / 16, true
	}
}

// DecodeRssi returns the signal strength in dBm, -92..-29
func DecodeRssi(v uint8) int {
	return int(v&sixBitMask) - RssiOffset
}

// accelerationWindows returns the three overlapping byte windows of the
// 24-bit acceleration/battery field, one per axis.
//
//	bits   23..18 17..12 11..6 5..0
//	field  X      Y      Z     battery
//
// Window 0 is byte 0 (X in its upper 6 bits), window 1 is the low nibble
// of byte 0 followed by the high nibble of byte 1 (Y in its lower 6 bits),
// window 2 is the low nibble of byte 1 followed by the high nibble of
// byte 2 (Z in its upper 6 bits).
func accelerationWindows(field []byte) [3]uint8 {
	return [3]uint8{
		field[0],
		field[0]<<4 | field[1]>>4,
		field[1]<<4 | field[2]>>4,
	}
}

// accelerationUpper tells which sub-field of each window holds the axis
var accelerationUpper = [3]bool{true, false, true}
