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
)

// Store holds one accumulator per device.
// Implementations need not be safe for concurrent use.
type Store interface {
	Get(instanceID layers.InstanceID) (*Accumulator, bool)
	Put(acc *Accumulator)
	Len() int
}

// MapStore keeps accumulators forever
type MapStore struct {
	accumulators map[layers.InstanceID]*Accumulator
}

var _ Store = &MapStore{}

func NewMapStore() *MapStore {
	return &MapStore{
		accumulators: make(map[layers.InstanceID]*Accumulator),
	}
}

func (s *MapStore) Get(instanceID layers.InstanceID) (*Accumulator, bool) {
	acc, ok := s.accumulators[instanceID]
	return acc, ok
}

func (s *MapStore) Put(acc *Accumulator) {
	s.accumulators[acc.InstanceID] = acc
}

func (s *MapStore) Len() int {
	return len(s.accumulators)
}

// TTLStore forgets accumulators older than ttl.
//
// Forgetting a Complete accumulator also forgets that its digest was
// emitted: a late duplicate that completes a digest on its own, e.g. the
// only page of a single-page digest, is then emitted again.
type TTLStore struct {
	ttl          time.Duration
	now          func() time.Time
	accumulators map[layers.InstanceID]*Accumulator
}

var _ Store = &TTLStore{}

func NewTTLStore(ttl time.Duration, now func() time.Time) *TTLStore {
	if now == nil {
		now = time.Now
	}
	return &TTLStore{
		ttl:          ttl,
		now:          now,
		accumulators: make(map[layers.InstanceID]*Accumulator),
	}
}

func (s *TTLStore) expired(acc *Accumulator) bool {
	return s.now().Sub(acc.CreatedAt) > s.ttl
}

func (s *TTLStore) Get(instanceID layers.InstanceID) (*Accumulator, bool) {
	acc, ok := s.accumulators[instanceID]
	if !ok {
		return nil, false
	}
	if s.expired(acc) {
		delete(s.accumulators, instanceID)
		return nil, false
	}
	return acc, true
}

// Put stores acc and drops every expired accumulator
func (s *TTLStore) Put(acc *Accumulator) {
	for id, a := range s.accumulators {
		if s.expired(a) {
			delete(s.accumulators, id)
		}
	}
	s.accumulators[acc.InstanceID] = acc
}

func (s *TTLStore) Len() int {
	return len(s.accumulators)
}
