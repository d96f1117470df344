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

package srv

import (
	"jinr.ru/greenlab/go-diract/pkg/diract"
	"jinr.ru/greenlab/go-diract/pkg/log"
)

// Sink receives decoded reports and digests, archives them and writes metrics.
// archive and metrics may both be nil.
type Sink struct {
	archive *Archive
	metrics *Metrics
}

var _ diract.ProximityHandler = &Sink{}
var _ diract.DigestHandler = &Sink{}

func NewSink(archive *Archive, metrics *Metrics) *Sink {
	return &Sink{
		archive: archive,
		metrics: metrics,
	}
}

func (s *Sink) HandleProximity(report *diract.ProximityReport) {
	log.Debug("Proximity report: instance: %s battery: %d nearest: %d",
		report.InstanceID, report.BatteryPercentage, len(report.Nearest))
	if s.archive != nil {
		if err := s.archive.PutProximity(report); err != nil {
			log.Error("Error while archiving proximity report: instance: %s: %s", report.InstanceID, err)
		}
	}
	s.metrics.WriteProximity(report)
}

func (s *Sink) HandleDigest(digest *diract.Digest) {
	log.Info("Digest: instance: %s timestamp: %d interactions: %d",
		digest.InstanceID, digest.DigestTimestamp, len(digest.Interactions))
	if s.archive != nil {
		if err := s.archive.PutDigest(digest); err != nil {
			log.Error("Error while archiving digest: instance: %s: %s", digest.InstanceID, err)
		}
	}
	s.metrics.WriteDigest(digest)
}
