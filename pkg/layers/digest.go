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
 Digest page frame, offsets relative to the end of the signature

 0      frame byte, frameLength = bits 4..0
 1      counter byte, pageNumber = bits 4..1
 2..5   instance id
 6..8   bit 23 last page flag, bits 22..0 digest timestamp
 9..    up to 3 entries: instance id(4) count(1), until frameLength + 2
*/

const (
	// DigestEntriesPerPage is the number of entries a full page carries.
	// The absolute index of an entry is pageNumber * DigestEntriesPerPage + offset.
	DigestEntriesPerPage = 3
	lastPageBit          = 0x800000
	digestTimestampMask  = 0x7fffff
)

// DigestEntry is one interaction count as it is on the wire
type DigestEntry struct {
	InstanceID InstanceID `json:"instanceId"`
	Count      uint8      `json:"count"`
}

// DigestLayer is the decoded body of one DirAct digest page
type DigestLayer struct {
	layers.BaseLayer
	FrameLength     uint8
	PageNumber      uint8
	InstanceID      InstanceID
	LastPage        bool
	DigestTimestamp uint32
	Entries         []DigestEntry
}

var DigestLayerType = gopacket.RegisterLayerType(DigestLayerNum,
	gopacket.LayerTypeMetadata{Name: "DigestLayerType", Decoder: gopacket.DecodeFunc(decodeDigestLayer)})

func (dl *DigestLayer) LayerType() gopacket.LayerType {
	return DigestLayerType
}

func (dl *DigestLayer) CanDecode() gopacket.LayerClass {
	return DigestLayerType
}

func (dl *DigestLayer) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}

// DecodeFromBytes decodes a digest page frame. data starts right after the signature.
func (dl *DigestLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if log.DebugEnabled() {
		log.Debug("DigestLayer.DecodeFromBytes: data: %s", hex.EncodeToString(data))
	}

	f, count, err := frame("Digest", data, DigestEntriesPerPage)
	if err != nil {
		if _, ok := err.(ErrTruncatedPacket); ok {
			df.SetTruncated()
		}
		return err
	}

	dl.BaseLayer = layers.BaseLayer{
		Contents: f,
		Payload:  data[len(f):],
	}
	dl.FrameLength = f[0] & frameLengthMask
	dl.PageNumber = frameCounter(f)
	dl.InstanceID = frameInstance(f)

	field := uint32(f[frameFieldOffset])<<16 | uint32(f[frameFieldOffset+1])<<8 | uint32(f[frameFieldOffset+2])
	dl.LastPage = field&lastPageBit != 0
	dl.DigestTimestamp = field & digestTimestampMask

	dl.Entries = make([]DigestEntry, 0, count)
	for i := 0; i < count; i++ {
		id, c := entryAt(f, i)
		dl.Entries = append(dl.Entries, DigestEntry{InstanceID: id, Count: c})
	}

	log.Debug("DigestLayer.DecodeFromBytes: instance: %s page: %d last: %t timestamp: %d entries: %d",
		dl.InstanceID, dl.PageNumber, dl.LastPage, dl.DigestTimestamp, len(dl.Entries))
	return nil
}

func decodeDigestLayer(data []byte, p gopacket.PacketBuilder) error {
	dl := &DigestLayer{}
	err := dl.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(dl)
	return nil
}
