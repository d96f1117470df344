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
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-diract/pkg/config"
	"jinr.ru/greenlab/go-diract/pkg/diract"
	"jinr.ru/greenlab/go-diract/pkg/layers"
)

func proximityPacket(instance uint32) []byte {
	data := make([]byte, layers.BodyOffset, layers.BodyOffset+9)
	binary.BigEndian.PutUint32(data[layers.SignatureOffset:], uint32(layers.SignatureProximity))
	data = append(data, 7, 0)
	data = binary.BigEndian.AppendUint32(data, instance)
	return append(data, 0, 0, 0x3f)
}

func TestIngestServer(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.IngestConfig.Address = "127.0.0.1"
	cfg.IngestConfig.Port = 0

	reports := make(chan *diract.ProximityReport, 1)
	decoder := diract.NewDecoder(diract.WithProximityHandler(diract.ProximityHandlerFunc(func(r *diract.ProximityReport) {
		reports <- r
	})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, err := NewIngestServer(ctx, cfg, decoder)
	if err != nil {
		t.Fatalf("new ingest server: %s", err)
	}
	if err := s.Listen(); err != nil {
		t.Fatalf("listen: %s", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- s.Run()
	}()

	conn, err := net.DialUDP("udp", nil, s.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial: %s", err)
	}
	defer conn.Close()

	buf := gopacket.NewSerializeBuffer()
	record := &layers.RecordLayer{Timestamp: 1600000000000, Packets: [][]byte{proximityPacket(0x1234)}}
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, record); err != nil {
		t.Fatalf("serialize: %s", err)
	}
	if _, err := conn.Write(buf.Bytes()); err != nil {
		t.Fatalf("write: %s", err)
	}

	select {
	case r := <-reports:
		if r.InstanceID != 0x1234 || r.BatteryPercentage != 100 {
			t.Fatalf("unexpected report: %s", r)
		}
		if !r.Timestamp.Equal(time.UnixMilli(1600000000000)) {
			t.Fatalf("record timestamp not used: %s", r.Timestamp)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no report received")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("unexpected run error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
	if stats := decoder.Stats(); stats.Records != 1 || stats.Proximity != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
