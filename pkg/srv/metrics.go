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
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"

	"jinr.ru/greenlab/go-diract/pkg/config"
	"jinr.ru/greenlab/go-diract/pkg/diract"
	"jinr.ru/greenlab/go-diract/pkg/log"
)

const (
	ProximityMeasurement = "diract.proximity"
	DigestMeasurement    = "diract.digest"
)

// Metrics writes decoded reports to InfluxDB. A nil *Metrics writes nothing.
type Metrics struct {
	writeAPI api.WriteAPI
	client   influxdb2.Client
}

// NewMetrics returns nil when no InfluxDB host is configured
func NewMetrics(cfg *config.InfluxConfig) *Metrics {
	if cfg == nil || cfg.Host == "" {
		log.Info("InfluxDB host is not set, metrics are disabled")
		return nil
	}
	log.Info("Writing metrics to InfluxDB: host: %s bucket: %s", cfg.Host, cfg.Bucket)
	client := influxdb2.NewClient(cfg.Host, cfg.Token)
	writeAPI := client.WriteAPI(cfg.Organization, cfg.Bucket)
	errs := writeAPI.Errors()
	go func() {
		for err := range errs {
			log.Warning("Error while writing metrics: %s", err)
		}
	}()
	return &Metrics{writeAPI: writeAPI, client: client}
}

func NewMetricsWithWriteAPI(writeAPI api.WriteAPI) *Metrics {
	return &Metrics{writeAPI: writeAPI}
}

func (m *Metrics) WriteProximity(report *diract.ProximityReport) {
	if m == nil {
		return
	}
	m.writeAPI.WritePoint(influxdb2.NewPoint(ProximityMeasurement,
		map[string]string{
			"instance": report.InstanceID.String(),
		},
		map[string]interface{}{
			"battery": report.BatteryPercentage,
			"nearest": len(report.Nearest),
			"cyclic":  int(report.CyclicCount),
		}, report.Timestamp))
}

func (m *Metrics) WriteDigest(digest *diract.Digest) {
	if m == nil {
		return
	}
	total := 0
	for _, interaction := range digest.Interactions {
		total += interaction.Count
	}
	m.writeAPI.WritePoint(influxdb2.NewPoint(DigestMeasurement,
		map[string]string{
			"instance": digest.InstanceID.String(),
		},
		map[string]interface{}{
			"interactions": len(digest.Interactions),
			"total":        total,
		}, digest.Timestamp))
}

func (m *Metrics) Close() {
	if m == nil {
		return
	}
	m.writeAPI.Flush()
	if m.client != nil {
		m.client.Close()
	}
}
