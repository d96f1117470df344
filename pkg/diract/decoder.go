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

// Package diract routes DirAct wire packets to the proximity and digest
// decoders and reassembles paginated digests.
//
// A Decoder is not safe for concurrent use. Feed it from one goroutine.
package diract

import (
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-diract/pkg/layers"
	"jinr.ru/greenlab/go-diract/pkg/log"
)

type ProximityHandler interface {
	HandleProximity(report *ProximityReport)
}

type ProximityHandlerFunc func(report *ProximityReport)

func (f ProximityHandlerFunc) HandleProximity(report *ProximityReport) {
	f(report)
}

type DigestHandler interface {
	HandleDigest(digest *Digest)
}

type DigestHandlerFunc func(digest *Digest)

func (f DigestHandlerFunc) HandleDigest(digest *Digest) {
	f(digest)
}

// Stats counts what the decoder has seen
type Stats struct {
	Records     uint64 `json:"records"`
	Proximity   uint64 `json:"proximity"`
	DigestPages uint64 `json:"digestPages"`
	Digests     uint64 `json:"digests"`
	// Ignored counts packets without a DirAct signature
	Ignored uint64 `json:"ignored"`
	// Skipped counts packets whose frame type has no handler
	Skipped uint64 `json:"skipped"`
	Failed  uint64 `json:"failed"`
}

type Option func(d *Decoder)

func WithProximityHandler(h ProximityHandler) Option {
	return func(d *Decoder) {
		d.proximityHandler = h
	}
}

func WithDigestHandler(h DigestHandler) Option {
	return func(d *Decoder) {
		d.digestHandler = h
	}
}

func WithCountPolicy(p CountPolicy) Option {
	return func(d *Decoder) {
		d.policy = p
	}
}

// WithStore sets where digest accumulators are kept, MapStore by default
func WithStore(s Store) Option {
	return func(d *Decoder) {
		d.store = s
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Decoder) {
		d.now = now
	}
}

type Decoder struct {
	proximityHandler ProximityHandler
	digestHandler    DigestHandler
	policy           CountPolicy
	store            Store
	now              func() time.Time
	reassembler      *Reassembler

	// reused between packets
	proximity layers.ProximityLayer
	digest    layers.DigestLayer

	stats Stats
}

func NewDecoder(options ...Option) *Decoder {
	d := &Decoder{
		policy: CountVerbatim,
		now:    time.Now,
	}
	for _, option := range options {
		option(d)
	}
	if d.store == nil {
		d.store = NewMapStore()
	}
	if d.digestHandler != nil {
		d.reassembler = NewReassembler(d.store, DigestHandlerFunc(d.emitDigest), d.now)
	}
	return d
}

func (d *Decoder) emitDigest(digest *Digest) {
	atomic.AddUint64(&d.stats.Digests, 1)
	d.digestHandler.HandleDigest(digest)
}

// Registered tells whether packets with the signature are decoded
func (d *Decoder) Registered(sig layers.Signature) bool {
	switch sig {
	case layers.SignatureProximity:
		return d.proximityHandler != nil
	case layers.SignatureDigest:
		return d.digestHandler != nil
	}
	return false
}

// HandlePacket decodes one wire packet captured at ts. Packets too short to
// carry a signature, with an unknown signature or of a frame type without a
// handler are dropped before any decoding beyond the signature and nil is
// returned.
func (d *Decoder) HandlePacket(data []byte, ts time.Time) error {
	sig, ok := layers.PeekSignature(data)
	if !ok || !sig.Known() {
		log.Debug("Ignoring packet: signature: %s length: %d", sig, len(data))
		atomic.AddUint64(&d.stats.Ignored, 1)
		return nil
	}
	if !d.Registered(sig) {
		atomic.AddUint64(&d.stats.Skipped, 1)
		return nil
	}

	body := data[layers.BodyOffset:]
	switch sig {
	case layers.SignatureProximity:
		if err := d.proximity.DecodeFromBytes(body, gopacket.NilDecodeFeedback); err != nil {
			return err
		}
		atomic.AddUint64(&d.stats.Proximity, 1)
		d.proximityHandler.HandleProximity(newProximityReport(&d.proximity, ts))
	case layers.SignatureDigest:
		if err := d.digest.DecodeFromBytes(body, gopacket.NilDecodeFeedback); err != nil {
			return err
		}
		atomic.AddUint64(&d.stats.DigestPages, 1)
		d.reassembler.HandlePage(newDigestPage(&d.digest, d.policy), ts)
	}
	return nil
}

// HandleRecord decodes every packet of the record in order. A packet that
// fails to decode is logged and counted, the rest of the record is still
// processed.
func (d *Decoder) HandleRecord(record Record) {
	atomic.AddUint64(&d.stats.Records, 1)
	if len(record.Packets) == 0 {
		return
	}
	ts := record.Time(d.now)
	for i, data := range record.Packets {
		if err := d.HandlePacket(data, ts); err != nil {
			atomic.AddUint64(&d.stats.Failed, 1)
			log.Warning("Error while decoding packet %d of record: %s data: %s", i, err, hex.EncodeToString(data))
		}
	}
}

// Stats returns a snapshot of the counters. It may be called from any goroutine.
func (d *Decoder) Stats() Stats {
	return Stats{
		Records:     atomic.LoadUint64(&d.stats.Records),
		Proximity:   atomic.LoadUint64(&d.stats.Proximity),
		DigestPages: atomic.LoadUint64(&d.stats.DigestPages),
		Digests:     atomic.LoadUint64(&d.stats.Digests),
		Ignored:     atomic.LoadUint64(&d.stats.Ignored),
		Skipped:     atomic.LoadUint64(&d.stats.Skipped),
		Failed:      atomic.LoadUint64(&d.stats.Failed),
	}
}

// Pending returns the number of digest accumulators held
func (d *Decoder) Pending() int {
	return d.store.Len()
}
