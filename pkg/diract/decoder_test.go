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
	"encoding/binary"
	"reflect"
	"testing"
	"time"

	"jinr.ru/greenlab/go-diract/pkg/layers"
)

var preamble = []byte{0x42, 0x1b, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x02, 0x01, 0x06, 0x1a}

type entry struct {
	instance uint32
	last     uint8
}

func packet(sig layers.Signature, counter uint8, instance uint32, field uint32, entries ...entry) []byte {
	data := append([]byte{}, preamble...)
	data = binary.BigEndian.AppendUint32(data, uint32(sig))
	frameLength := 9 + layers.EntryLength*len(entries) - 2
	data = append(data, uint8(frameLength), counter<<1)
	data = binary.BigEndian.AppendUint32(data, instance)
	data = append(data, uint8(field>>16), uint8(field>>8), uint8(field))
	for _, e := range entries {
		data = binary.BigEndian.AppendUint32(data, e.instance)
		data = append(data, e.last)
	}
	return data
}

func digestPacket(page uint8, last bool, timestamp uint32, instance uint32, entries ...entry) []byte {
	field := timestamp & 0x7fffff
	if last {
		field |= 0x800000
	}
	return packet(layers.SignatureDigest, page, instance, field, entries...)
}

type collector struct {
	reports []*ProximityReport
	digests []*Digest
}

func (c *collector) HandleProximity(report *ProximityReport) {
	c.reports = append(c.reports, report)
}

func (c *collector) HandleDigest(digest *Digest) {
	c.digests = append(c.digests, digest)
}

func newTestDecoder(options ...Option) (*Decoder, *collector) {
	c := &collector{}
	options = append([]Option{WithProximityHandler(c), WithDigestHandler(c)}, options...)
	return NewDecoder(options...), c
}

func TestProximityDispatch(t *testing.T) {
	d, c := newTestDecoder()
	ts := time.UnixMilli(1600000000000)
	data := packet(layers.SignatureProximity, 3, 0x0000abcd, 0x420c3f, entry{instance: 7, last: 0})

	if err := d.HandlePacket(data, ts); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(c.reports) != 1 {
		t.Fatalf("expected one report, got %d", len(c.reports))
	}
	r := c.reports[0]
	if r.InstanceID != 0xabcd || r.CyclicCount != 3 || !r.Timestamp.Equal(ts) {
		t.Fatalf("unexpected report: %s", r)
	}
	if r.BatteryPercentage != 100 || r.Acceleration[1] != nil {
		t.Fatalf("unexpected bitfield values: %s", r)
	}
	if !reflect.DeepEqual(r.Nearest, []layers.Neighbour{{InstanceID: 7, Rssi: -92}}) {
		t.Fatalf("unexpected nearest: %+v", r.Nearest)
	}
	if s := d.Stats(); s.Proximity != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestUnregisteredHandlerSkips(t *testing.T) {
	c := &collector{}
	d := NewDecoder(WithDigestHandler(c))
	if d.Registered(layers.SignatureProximity) {
		t.Fatalf("proximity must not be registered")
	}
	good := packet(layers.SignatureProximity, 0, 1, 0)
	// frame length says 30 bytes, only 9 follow: not decoded, so no error
	bad := append([]byte{}, good...)
	bad[layers.BodyOffset] = 0x1f

	for _, data := range [][]byte{good, bad} {
		if err := d.HandlePacket(data, time.Now()); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
	}
	if len(c.reports) != 0 || len(c.digests) != 0 {
		t.Fatalf("unexpected output: %+v", c)
	}
	if s := d.Stats(); s.Skipped != 2 || s.Proximity != 0 || s.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestUnknownSignatureIgnored(t *testing.T) {
	d, c := newTestDecoder()
	unknown := packet(layers.Signature(0xff830599), 0, 1, 0)
	short := preamble[:10]
	d.HandleRecord(Record{Packets: [][]byte{unknown, short}})

	if len(c.reports) != 0 || len(c.digests) != 0 {
		t.Fatalf("unexpected output: %+v", c)
	}
	if s := d.Stats(); s.Ignored != 2 || s.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestRecordContinuesAfterFailure(t *testing.T) {
	d, c := newTestDecoder()
	truncated := packet(layers.SignatureProximity, 0, 1, 0, entry{instance: 2})
	truncated = truncated[:len(truncated)-3]
	good := packet(layers.SignatureProximity, 1, 1, 0)

	d.HandleRecord(Record{Timestamp: 1000, Packets: [][]byte{truncated, good}})

	if len(c.reports) != 1 || c.reports[0].CyclicCount != 1 {
		t.Fatalf("unexpected reports: %+v", c.reports)
	}
	if !c.reports[0].Timestamp.Equal(time.UnixMilli(1000)) {
		t.Fatalf("unexpected timestamp: %s", c.reports[0].Timestamp)
	}
	if s := d.Stats(); s.Failed != 1 || s.Records != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestHandlePacketErrors(t *testing.T) {
	d, _ := newTestDecoder()
	truncated := packet(layers.SignatureDigest, 0, 1, 0, entry{instance: 2})
	err := d.HandlePacket(truncated[:len(truncated)-1], time.Now())
	if _, ok := err.(layers.ErrTruncatedPacket); !ok {
		t.Fatalf("expected truncated packet error, got %v", err)
	}
	tooMany := digestPacket(0, true, 1, 1, entry{1, 1}, entry{2, 1}, entry{3, 1}, entry{4, 1})
	err = d.HandlePacket(tooMany, time.Now())
	if e, ok := err.(layers.ErrInvalidBitfield); !ok || e.Field != "entryCount" {
		t.Fatalf("expected invalid bitfield error, got %v", err)
	}
}

func TestEmptyRecord(t *testing.T) {
	d, c := newTestDecoder(WithClock(func() time.Time {
		t.Fatalf("clock must not matter for an empty record")
		return time.Time{}
	}))
	d.HandleRecord(Record{Timestamp: 5})
	if len(c.reports) != 0 || len(c.digests) != 0 {
		t.Fatalf("unexpected output: %+v", c)
	}
}

func TestRecordTimeDefaultsToNow(t *testing.T) {
	now := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	d, c := newTestDecoder(WithClock(func() time.Time { return now }))
	d.HandleRecord(Record{Packets: [][]byte{packet(layers.SignatureProximity, 0, 1, 0)}})
	if len(c.reports) != 1 || !c.reports[0].Timestamp.Equal(now) {
		t.Fatalf("unexpected reports: %+v", c.reports)
	}
}

func fiveInteractionPages(timestamp uint32) (page0, page1 []byte) {
	page0 = digestPacket(0, false, timestamp, 0x10, entry{1, 10}, entry{2, 20}, entry{3, 30})
	page1 = digestPacket(1, true, timestamp, 0x10, entry{4, 40}, entry{5, 50})
	return
}

func TestDigestOrderIndependence(t *testing.T) {
	page0, page1 := fiveInteractionPages(77)
	want := []Interaction{
		{InstanceID: 1, Count: 10},
		{InstanceID: 2, Count: 20},
		{InstanceID: 3, Count: 30},
		{InstanceID: 4, Count: 40},
		{InstanceID: 5, Count: 50},
	}
	for name, order := range map[string][][]byte{
		"in order":     {page0, page1},
		"out of order": {page1, page0},
	} {
		t.Run(name, func(t *testing.T) {
			d, c := newTestDecoder()
			d.HandleRecord(Record{Timestamp: 1, Packets: order})
			if len(c.digests) != 1 {
				t.Fatalf("expected one digest, got %d", len(c.digests))
			}
			got := c.digests[0]
			if got.InstanceID != 0x10 || got.DigestTimestamp != 77 {
				t.Fatalf("unexpected digest: %s", got)
			}
			if !reflect.DeepEqual(got.Interactions, want) {
				t.Fatalf("unexpected interactions: %+v", got.Interactions)
			}
		})
	}
}

func TestDigestIdempotence(t *testing.T) {
	d, c := newTestDecoder()
	page := digestPacket(0, true, 5, 0x20, entry{1, 1})
	d.HandleRecord(Record{Timestamp: 1, Packets: [][]byte{page, page}})
	d.HandleRecord(Record{Timestamp: 2, Packets: [][]byte{page}})
	if len(c.digests) != 1 {
		t.Fatalf("expected one digest, got %d", len(c.digests))
	}
	if s := d.Stats(); s.DigestPages != 3 || s.Digests != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestDigestEpochSupersession(t *testing.T) {
	d, c := newTestDecoder()
	t1page0, t1page1 := fiveInteractionPages(1)
	t2page0, t2page1 := fiveInteractionPages(2)

	d.HandleRecord(Record{Timestamp: 1, Packets: [][]byte{t1page0, t2page0, t2page1}})
	if len(c.digests) != 1 || c.digests[0].DigestTimestamp != 2 {
		t.Fatalf("unexpected digests: %+v", c.digests)
	}
	if err := d.HandlePacket(t1page1, time.Now()); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(c.digests) != 1 {
		t.Fatalf("late page completed a superseded digest: %+v", c.digests[1])
	}
}

func TestDigestLatePagesOfSupersededEpoch(t *testing.T) {
	d, c := newTestDecoder()
	t1page0, t1page1 := fiveInteractionPages(1)
	t2page0, _ := fiveInteractionPages(2)

	d.HandleRecord(Record{Timestamp: 1, Packets: [][]byte{t1page0, t2page0, t1page0, t1page1}})
	if len(c.digests) != 0 {
		t.Fatalf("digest emitted for a superseded epoch: %s", c.digests[0])
	}
}

func TestDigestCompletedEpochNotEmittedTwice(t *testing.T) {
	d, c := newTestDecoder()
	t2last := digestPacket(0, true, 2, 0x20, entry{1, 1})
	t1page0 := digestPacket(0, false, 1, 0x20, entry{1, 1}, entry{2, 1}, entry{3, 1})

	d.HandleRecord(Record{Timestamp: 1, Packets: [][]byte{t2last, t1page0, t2last}})
	if len(c.digests) != 1 || c.digests[0].DigestTimestamp != 2 {
		t.Fatalf("unexpected digests: %+v", c.digests)
	}
}

func TestDigestNewEpochAfterRetired(t *testing.T) {
	d, c := newTestDecoder()
	for ts := uint32(1); ts <= 3; ts++ {
		d.HandleRecord(Record{Timestamp: 1, Packets: [][]byte{digestPacket(0, true, ts, 0x21, entry{1, 1})}})
	}
	if len(c.digests) != 3 {
		t.Fatalf("expected a digest per epoch, got %d", len(c.digests))
	}
}

func TestDigestMissingMiddlePage(t *testing.T) {
	d, c := newTestDecoder()
	page0 := digestPacket(0, false, 9, 0x30, entry{1, 1}, entry{2, 1}, entry{3, 1})
	page1 := digestPacket(1, false, 9, 0x30, entry{4, 1}, entry{5, 1}, entry{6, 1})
	page2 := digestPacket(2, true, 9, 0x30, entry{7, 1})

	d.HandleRecord(Record{Timestamp: 1, Packets: [][]byte{page0, page2}})
	if len(c.digests) != 0 {
		t.Fatalf("digest with a missing page was emitted: %+v", c.digests[0])
	}
	d.HandleRecord(Record{Timestamp: 2, Packets: [][]byte{page1}})
	if len(c.digests) != 1 || len(c.digests[0].Interactions) != 7 {
		t.Fatalf("unexpected digests: %+v", c.digests)
	}
	if !c.digests[0].Timestamp.Equal(time.UnixMilli(2)) {
		t.Fatalf("digest must carry the time of the completing page: %s", c.digests[0].Timestamp)
	}
}

func TestDigestCountPolicy(t *testing.T) {
	page := digestPacket(0, true, 3, 0x40, entry{1, 0x85}, entry{2, 0x80})
	for _, tc := range []struct {
		policy CountPolicy
		want   []int
	}{
		{CountVerbatim, []int{0x85, 0x80}},
		{CountScaled, []int{5 << 8, 0x80}},
	} {
		d, c := newTestDecoder(WithCountPolicy(tc.policy))
		if err := d.HandlePacket(page, time.Now()); err != nil {
			t.Fatalf("%s: unexpected error: %s", tc.policy, err)
		}
		if len(c.digests) != 1 {
			t.Fatalf("%s: expected one digest", tc.policy)
		}
		for i, want := range tc.want {
			if got := c.digests[0].Interactions[i].Count; got != want {
				t.Fatalf("%s: count %d: got %d want %d", tc.policy, i, got, want)
			}
		}
	}
}

func TestParseCountPolicy(t *testing.T) {
	for s, want := range map[string]CountPolicy{"": CountVerbatim, "verbatim": CountVerbatim, "scaled": CountScaled} {
		got, err := ParseCountPolicy(s)
		if err != nil || got != want {
			t.Fatalf("%q: got %s, %v", s, got, err)
		}
	}
	if _, err := ParseCountPolicy("log"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
