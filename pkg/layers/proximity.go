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
	"encoding/hex"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"jinr.ru/greenlab/go-diract/pkg/log"
)

/*
 Proximity frame, offsets relative to the end of the signature

 0      frame byte, frameLength = bits 4..0
 1      counter byte, cyclicCount = bits 4..1
 2..5   instance id
 6..8   X(6) Y(6) Z(6) battery(6)
 9..    nearest: instance id(4) rssi(1), until frameLength + 2
*/

// Neighbour is one entry of the nearest list
type Neighbour struct {
	InstanceID InstanceID `json:"instanceId"`
	Rssi       int        `json:"rssi"`
}

// ProximityLayer is the decoded body of a DirAct proximity packet
type ProximityLayer struct {
	layers.BaseLayer
	FrameLength       uint8
	CyclicCount       uint8
	InstanceID        InstanceID
	Acceleration      [3]*float64
	BatteryPercentage int
	Nearest           []Neighbour
}

var ProximityLayerType = gopacket.RegisterLayerType(ProximityLayerNum,
	gopacket.LayerTypeMetadata{Name: "ProximityLayerType", Decoder: gopacket.DecodeFunc(decodeProximityLayer)})

func (pl *ProximityLayer) LayerType() gopacket.LayerType {
	return ProximityLayerType
}

func (pl *ProximityLayer) CanDecode() gopacket.LayerClass {
	return ProximityLayerType
}

func (pl *ProximityLayer) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}

// DecodeFromBytes decodes a proximity frame. data starts right after the signature.
func (pl *ProximityLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if log.DebugEnabled() {
		log.Debug("ProximityLayer.DecodeFromBytes: data: %s", hex.EncodeToString(data))
	}

	f, count, err := frame("Proximity", data, 0)
	if err != nil {
		if _, ok := err.(ErrTruncatedPacket); ok {
			df.SetTruncated()
		}
		return err
	}

	pl.BaseLayer = layers.BaseLayer{
		Contents: f,
		Payload:  data[len(f):],
	}
	pl.FrameLength = f[0] & frameLengthMask
	pl.CyclicCount = frameCounter(f)
	pl.InstanceID = frameInstance(f)

	field := f[frameFieldOffset:frameEntriesOffset]
	for i, window := range accelerationWindows(field) {
		if g, ok := DecodeAcceleration(window, accelerationUpper[i]); ok {
			pl.Acceleration[i] = &g
		} else {
			pl.Acceleration[i] = nil
		}
	}
	pl.BatteryPercentage = DecodeBattery(field[2])

	pl.Nearest = make([]Neighbour, 0, count)
	for i := 0; i < count; i++ {
		id, rssi := entryAt(f, i)
		pl.Nearest = append(pl.Nearest, Neighbour{InstanceID: id, Rssi: DecodeRssi(rssi)})
	}

	log.Debug("ProximityLayer.DecodeFromBytes: instance: %s cyclic: %d battery: %d nearest: %d",
		pl.InstanceID, pl.CyclicCount, pl.BatteryPercentage, len(pl.Nearest))
	return nil
}

func decodeProximityLayer(data []byte, p gopacket.PacketBuilder) error {
	pl := &ProximityLayer{}
	err := pl.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(pl)
	return nil
}
