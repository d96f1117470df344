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
	"fmt"
	"strings"
	"time"

	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-diract/pkg/layers"
	"jinr.ru/greenlab/go-diract/pkg/log"
)

// Record is what the upstream pipeline hands over: the wire packets of one
// radio capture and the capture time.
type Record struct {
	// Timestamp is milliseconds since epoch, 0 when unknown
	Timestamp int64
	Packets   [][]byte
}

// Time returns the capture time, or now() when the record carries none
func (r Record) Time(now func() time.Time) time.Time {
	if r.Timestamp <= 0 {
		return now()
	}
	return time.UnixMilli(r.Timestamp)
}

// ProximityReport is a decoded proximity packet
type ProximityReport struct {
	CyclicCount  uint8             `json:"cyclicCount"`
	InstanceID   layers.InstanceID `json:"instanceId"`
	Acceleration [3]*float64       `json:"acceleration"`
	// BatteryPercentage is 0..100
	BatteryPercentage int                `json:"batteryPercentage"`
	Nearest           []layers.Neighbour `json:"nearest"`
	Timestamp         time.Time          `json:"timestamp"`
}

func newProximityReport(pl *layers.ProximityLayer, ts time.Time) *ProximityReport {
	nearest := make([]layers.Neighbour, len(pl.Nearest))
	copy(nearest, pl.Nearest)
	return &ProximityReport{
		CyclicCount:       pl.CyclicCount,
		InstanceID:        pl.InstanceID,
		Acceleration:      pl.Acceleration,
		BatteryPercentage: pl.BatteryPercentage,
		Nearest:           nearest,
		Timestamp:         ts,
	}
}

func (r *ProximityReport) String() string {
	return render(r)
}

// Interaction is one reassembled digest entry
type Interaction struct {
	InstanceID layers.InstanceID `json:"instanceId"`
	Count      int               `json:"count"`
}

// DigestPage is one decoded page of a paginated digest
type DigestPage struct {
	PageNumber      int
	IsLastPage      bool
	DigestTimestamp uint32
	InstanceID      layers.InstanceID
	Entries         []Interaction
}

func newDigestPage(dl *layers.DigestLayer, policy CountPolicy) *DigestPage {
	entries := make([]Interaction, 0, len(dl.Entries))
	for _, e := range dl.Entries {
		entries = append(entries, Interaction{InstanceID: e.InstanceID, Count: policy.Decode(e.Count)})
	}
	return &DigestPage{
		PageNumber:      int(dl.PageNumber),
		IsLastPage:      dl.LastPage,
		DigestTimestamp: dl.DigestTimestamp,
		InstanceID:      dl.InstanceID,
		Entries:         entries,
	}
}

// Digest is the interaction counts a device reported for one digest epoch
type Digest struct {
	InstanceID      layers.InstanceID `json:"instanceId"`
	DigestTimestamp uint32            `json:"digestTimestamp"`
	Interactions    []Interaction     `json:"interactions"`
	// Timestamp is the capture time of the page that completed the digest
	Timestamp time.Time `json:"timestamp"`
}

func (d *Digest) String() string {
	return render(d)
}

func render(v interface{}) string {
	data, err := yaml.Marshal(v)
	if err != nil {
		log.Error("Error occured while marshaling %T: %s", v, err)
		return ""
	}
	return fmt.Sprintf("---\n%s", strings.TrimRight(string(data), "\n"))
}
