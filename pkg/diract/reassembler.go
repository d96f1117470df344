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
	"time"

	"jinr.ru/greenlab/go-diract/pkg/layers"
	"jinr.ru/greenlab/go-diract/pkg/log"
)

type AccumulatorState int

const (
	// Assembling: pages are still being collected
	Assembling AccumulatorState = iota
	// Complete: the digest has been emitted, later pages of the same epoch are absorbed
	Complete
)

func (s AccumulatorState) String() string {
	if s == Complete {
		return "complete"
	}
	return "assembling"
}

// Accumulator collects the digest pages of one device for one digest epoch.
// DigestTimestamp never changes, a new epoch gets a new Accumulator.
type Accumulator struct {
	InstanceID      layers.InstanceID
	DigestTimestamp uint32
	State           AccumulatorState
	// Entries maps the absolute entry index (page * 3 + offset) to the entry.
	// Released once the accumulator is Complete.
	Entries map[int]Interaction
	// ExpectedCount is only meaningful when LastPageSeen is set
	ExpectedCount int
	LastPageSeen  bool
	CreatedAt     time.Time
	// Retired holds the most recent earlier epochs of the device, oldest
	// first. Their late pages are absorbed.
	Retired []uint32
}

// maxRetiredEpochs bounds Retired
const maxRetiredEpochs = 16

func newAccumulator(instanceID layers.InstanceID, digestTimestamp uint32, createdAt time.Time) *Accumulator {
	return &Accumulator{
		InstanceID:      instanceID,
		DigestTimestamp: digestTimestamp,
		State:           Assembling,
		Entries:         make(map[int]Interaction),
		CreatedAt:       createdAt,
	}
}

func (a *Accumulator) retired(digestTimestamp uint32) bool {
	for _, ts := range a.Retired {
		if ts == digestTimestamp {
			return true
		}
	}
	return false
}

// retire returns the retired epochs of the accumulator that supersedes a
func (a *Accumulator) retire() []uint32 {
	retired := make([]uint32, 0, len(a.Retired)+1)
	for _, ts := range a.Retired {
		if ts != a.DigestTimestamp {
			retired = append(retired, ts)
		}
	}
	retired = append(retired, a.DigestTimestamp)
	if len(retired) > maxRetiredEpochs {
		retired = retired[len(retired)-maxRetiredEpochs:]
	}
	return retired
}

func (a *Accumulator) add(page *DigestPage) {
	base := page.PageNumber * layers.DigestEntriesPerPage
	for i, e := range page.Entries {
		a.Entries[base+i] = e
	}
	if page.IsLastPage {
		a.ExpectedCount = base + len(page.Entries)
		a.LastPageSeen = true
	}
}

// ready reports whether every index below the expected count is populated.
// Indices at or above the expected count do not count towards completion.
func (a *Accumulator) ready() bool {
	if !a.LastPageSeen {
		return false
	}
	populated := 0
	for index := range a.Entries {
		if index < a.ExpectedCount {
			populated++
		}
	}
	return populated == a.ExpectedCount
}

func (a *Accumulator) interactions() []Interaction {
	result := make([]Interaction, a.ExpectedCount)
	for i := range result {
		result[i] = a.Entries[i]
	}
	return result
}

func (a *Accumulator) complete() {
	a.State = Complete
	a.Entries = nil
}

// Reassembler turns digest pages into digests.
//
// Reassembler is not safe for concurrent use. HandlePage reads, modifies and
// writes the accumulator of a device without locking, callers must
// serialize calls.
type Reassembler struct {
	store   Store
	handler DigestHandler
	now     func() time.Time
}

// NewReassembler creates a reassembler keeping its state in store.
// handler may be nil, completed digests are then only returned.
func NewReassembler(store Store, handler DigestHandler, now func() time.Time) *Reassembler {
	if store == nil {
		store = NewMapStore()
	}
	if now == nil {
		now = time.Now
	}
	return &Reassembler{
		store:   store,
		handler: handler,
		now:     now,
	}
}

// HandlePage adds a page to the accumulator of its device. When the page
// completes the digest, the digest is passed to the handler and returned.
// A page of a new epoch supersedes the current one. Pages of the recently
// superseded or completed epochs of the device are absorbed.
func (r *Reassembler) HandlePage(page *DigestPage, ts time.Time) *Digest {
	acc, ok := r.store.Get(page.InstanceID)
	switch {
	case !ok:
		acc = newAccumulator(page.InstanceID, page.DigestTimestamp, r.now())
		acc.add(page)
		r.store.Put(acc)
	case acc.DigestTimestamp != page.DigestTimestamp && acc.retired(page.DigestTimestamp):
		log.Debug("Late digest page absorbed: instance: %s timestamp: %d page: %d current: %d",
			page.InstanceID, page.DigestTimestamp, page.PageNumber, acc.DigestTimestamp)
		return nil
	case acc.DigestTimestamp != page.DigestTimestamp:
		if acc.State == Assembling {
			log.Debug("Digest superseded: instance: %s timestamp: %d by: %d",
				page.InstanceID, acc.DigestTimestamp, page.DigestTimestamp)
		}
		next := newAccumulator(page.InstanceID, page.DigestTimestamp, r.now())
		next.Retired = acc.retire()
		acc = next
		acc.add(page)
		r.store.Put(acc)
	case acc.State == Complete:
		log.Debug("Digest page absorbed: instance: %s timestamp: %d page: %d",
			page.InstanceID, page.DigestTimestamp, page.PageNumber)
		return nil
	default:
		acc.add(page)
	}

	log.Debug("Digest accumulator: instance: %s timestamp: %d entries: %d expected: %d last: %t",
		acc.InstanceID, acc.DigestTimestamp, len(acc.Entries), acc.ExpectedCount, acc.LastPageSeen)

	if !acc.ready() {
		return nil
	}

	digest := &Digest{
		InstanceID:      acc.InstanceID,
		DigestTimestamp: acc.DigestTimestamp,
		Interactions:    acc.interactions(),
		Timestamp:       ts,
	}
	if r.handler != nil {
		r.handler.HandleDigest(digest)
	}
	acc.complete()
	return digest
}

// Pending returns the number of accumulators the store holds
func (r *Reassembler) Pending() int {
	return r.store.Len()
}
