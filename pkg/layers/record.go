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
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	// RecordSync is a magic number that appears in the beginning of each record datagram
	RecordSync = 0x5244
	// RecordHeaderLength: sync(2) timestamp(8) packet count(1)
	RecordHeaderLength = 11
	// MaxRecordPackets and MaxWirePacketLength follow from the 1-byte count and length fields
	MaxRecordPackets    = 255
	MaxWirePacketLength = 255
)

// RecordLayer is one upstream record: a capture timestamp and the wire packets
// the radio decoder extracted.
type RecordLayer struct {
	layers.BaseLayer
	Sync uint16
	// Timestamp is milliseconds since epoch, 0 when the upstream had none
	Timestamp uint64
	Packets   [][]byte
}

var RecordLayerType = gopacket.RegisterLayerType(RecordLayerNum,
	gopacket.LayerTypeMetadata{Name: "RecordLayerType", Decoder: gopacket.DecodeFunc(decodeRecordLayer)})

func (rl *RecordLayer) LayerType() gopacket.LayerType {
	return RecordLayerType
}

func (rl *RecordLayer) CanDecode() gopacket.LayerClass {
	return RecordLayerType
}

func (rl *RecordLayer) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}

// SerializeTo serializes the record into bytes and writes the bytes to the SerializeBuffer
func (rl *RecordLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	if len(rl.Packets) > MaxRecordPackets {
		return fmt.Errorf("too many packets in record: %d", len(rl.Packets))
	}
	headerBytes, err := b.AppendBytes(RecordHeaderLength)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(headerBytes[0:2], RecordSync)
	binary.BigEndian.PutUint64(headerBytes[2:10], rl.Timestamp)
	headerBytes[10] = uint8(len(rl.Packets))

	for _, packet := range rl.Packets {
		if len(packet) > MaxWirePacketLength {
			return fmt.Errorf("wire packet too long: %d", len(packet))
		}
		packetBytes, err := b.AppendBytes(1 + len(packet))
		if err != nil {
			return err
		}
		packetBytes[0] = uint8(len(packet))
		copy(packetBytes[1:], packet)
	}
	return nil
}

// DecodeFromBytes attempts to decode the byte slice as a record datagram
func (rl *RecordLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < RecordHeaderLength {
		df.SetTruncated()
		return ErrTruncatedPacket{Layer: "Record", Need: RecordHeaderLength, Have: len(data)}
	}
	if binary.BigEndian.Uint16(data[0:2]) != RecordSync {
		return fmt.Errorf("Wrong record sync. Must be 0x%04x", RecordSync)
	}

	rl.Sync = RecordSync
	rl.Timestamp = binary.BigEndian.Uint64(data[2:10])
	count := int(data[10])
	rl.Packets = make([][]byte, 0, count)

	offset := RecordHeaderLength
	for i := 0; i < count; i++ {
		if offset >= len(data) {
			df.SetTruncated()
			return ErrTruncatedPacket{Layer: "Record", Need: offset + 1, Have: len(data)}
		}
		length := int(data[offset])
		end := offset + 1 + length
		if end > len(data) {
			df.SetTruncated()
			return ErrTruncatedPacket{Layer: "Record", Need: end, Have: len(data)}
		}
		rl.Packets = append(rl.Packets, data[offset+1:end])
		offset = end
	}

	rl.BaseLayer = layers.BaseLayer{
		Contents: data[:offset],
		Payload:  data[offset:],
	}
	return nil
}

func decodeRecordLayer(data []byte, p gopacket.PacketBuilder) error {
	rl := &RecordLayer{}
	err := rl.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(rl)
	return nil
}
