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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func init() {
	initSignatures()
}

const (
	// RecordLayerNum identifies the upstream record layer
	RecordLayerNum = 2001
	// DirActLayerNum identifies the layer carrying the DirAct signature
	DirActLayerNum = 2002
	// ProximityLayerNum identifies the proximity body layer
	ProximityLayerNum = 2003
	// DigestLayerNum identifies the digest page body layer
	DigestLayerNum = 2004
)

const (
	// SignatureOffset is where the 4-byte signature starts inside a wire packet.
	// The 12 bytes before it (advertising header, advertiser address,
	// flags and the manufacturer data length) are not interpreted.
	SignatureOffset = 12
	SignatureLength = 4
	// BodyOffset is where the DirAct frame starts inside a wire packet
	BodyOffset = SignatureOffset + SignatureLength
)

// Body layout shared by proximity and digest frames
const (
	frameLengthMask     = 0x1f
	frameCounterOffset  = 1
	frameInstanceOffset = 2
	frameFieldOffset    = 6
	frameEntriesOffset  = 9
	// EntryLength is the size of one nearest/digest entry: instance id + 1 byte
	EntryLength = 5
	// frameLengthExtra is added to frameLength to get the frame size in bytes
	frameLengthExtra = 2
)

type Signature uint32

const (
	SignatureProximity Signature = 0xff830501
	SignatureDigest    Signature = 0xff830511
)

type errorDecoderForSignature Signature

func (e errorDecoderForSignature) Decode(data []byte, p gopacket.PacketBuilder) error {
	return ErrUnknownSignature{Signature: Signature(e)}
}

var signatureMetadata = map[Signature]layers.EnumMetadata{}

func initSignatures() {
	signatureMetadata[SignatureProximity] = layers.EnumMetadata{DecodeWith: gopacket.DecodeFunc(decodeProximityLayer), Name: "Proximity", LayerType: ProximityLayerType}
	signatureMetadata[SignatureDigest] = layers.EnumMetadata{DecodeWith: gopacket.DecodeFunc(decodeDigestLayer), Name: "Digest", LayerType: DigestLayerType}
}

// LayerType returns the layer type of the frame following the signature
func (s Signature) LayerType() gopacket.LayerType {
	if m, ok := signatureMetadata[s]; ok {
		return m.LayerType
	}
	return gopacket.LayerTypeZero
}

// Decode decodes the frame following the signature
func (s Signature) Decode(data []byte, p gopacket.PacketBuilder) error {
	if m, ok := signatureMetadata[s]; ok {
		return m.DecodeWith.Decode(data, p)
	}
	return errorDecoderForSignature(s).Decode(data, p)
}

func (s Signature) String() string {
	if m, ok := signatureMetadata[s]; ok {
		return m.Name
	}
	return fmt.Sprintf("Unknown(0x%08x)", uint32(s))
}

// Known tells whether the signature belongs to a DirAct frame type
func (s Signature) Known() bool {
	_, ok := signatureMetadata[s]
	return ok
}

// PeekSignature reads the signature without decoding anything else.
// ok is false when the packet is too short to carry a signature.
func PeekSignature(data []byte) (sig Signature, ok bool) {
	if len(data) < BodyOffset {
		return 0, false
	}
	return Signature(binary.BigEndian.Uint32(data[SignatureOffset:BodyOffset])), true
}

// InstanceID is the 32-bit DirAct device identity
type InstanceID uint32

func (id InstanceID) String() string {
	return fmt.Sprintf("%08x", uint32(id))
}

func ParseInstanceID(s string) (InstanceID, error) {
	if len(s) != 8 {
		return 0, fmt.Errorf("instance id must be 8 hex characters: %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("instance id %q: %w", s, err)
	}
	return InstanceID(v), nil
}

func (id InstanceID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *InstanceID) UnmarshalJSON(bytes []byte) error {
	parsed, err := ParseInstanceID(strings.Trim(string(bytes), "\""))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// DirActLayer holds the part of a wire packet up to and including the signature
type DirActLayer struct {
	layers.BaseLayer
	Signature Signature
}

var DirActLayerType = gopacket.RegisterLayerType(DirActLayerNum,
	gopacket.LayerTypeMetadata{Name: "DirActLayerType", Decoder: gopacket.DecodeFunc(decodeDirActLayer)})

func (d *DirActLayer) LayerType() gopacket.LayerType {
	return DirActLayerType
}

func (d *DirActLayer) CanDecode() gopacket.LayerClass {
	return DirActLayerType
}

func (d *DirActLayer) NextLayerType() gopacket.LayerType {
	return d.Signature.LayerType()
}

// DecodeFromBytes attempts to decode the byte slice as a DirAct wire packet preamble
func (d *DirActLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	sig, ok := PeekSignature(data)
	if !ok {
		df.SetTruncated()
		return ErrTruncatedPacket{Layer: "DirAct", Need: BodyOffset, Have: len(data)}
	}
	d.BaseLayer = layers.BaseLayer{
		Contents: data[:BodyOffset],
		Payload:  data[BodyOffset:],
	}
	d.Signature = sig
	return nil
}

func decodeDirActLayer(data []byte, p gopacket.PacketBuilder) error {
	d := &DirActLayer{}
	err := d.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(d)
	return p.NextDecoder(d.Signature)
}

// frame checks the frame header and returns the frame bytes together with
// the number of whole entries it holds. maxEntries <= 0 means no limit.
func frame(layer string, data []byte, maxEntries int) ([]byte, int, error) {
	if len(data) < frameEntriesOffset {
		return nil, 0, ErrTruncatedPacket{Layer: layer, Need: frameEntriesOffset, Have: len(data)}
	}
	frameLength := int(data[0] & frameLengthMask)
	end := frameLength + frameLengthExtra
	if end < frameEntriesOffset {
		return nil, 0, ErrInvalidBitfield{Field: "frameLength", Value: frameLength}
	}
	// trailing bytes that do not make a whole entry are ignored
	count := (end - frameEntriesOffset) / EntryLength
	if maxEntries > 0 && count > maxEntries {
		return nil, 0, ErrInvalidBitfield{Field: "entryCount", Value: count}
	}
	if len(data) < end {
		return nil, 0, ErrTruncatedPacket{Layer: layer, Need: end, Have: len(data)}
	}
	return data[:end], count, nil
}

// entryAt returns the instance id and the trailing byte of entry i
func entryAt(frame []byte, i int) (InstanceID, uint8) {
	offset := frameEntriesOffset + i*EntryLength
	return InstanceID(binary.BigEndian.Uint32(frame[offset : offset+4])), frame[offset+4]
}

func frameInstance(frame []byte) InstanceID {
	return InstanceID(binary.BigEndian.Uint32(frame[frameInstanceOffset : frameInstanceOffset+4]))
}

// frameCounter returns bits 4..1 of the counter byte
func frameCounter(frame []byte) uint8 {
	return (frame[frameCounterOffset] >> 1) & 0x0f
}
