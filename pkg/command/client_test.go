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

package command

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-diract/pkg/config"
	"jinr.ru/greenlab/go-diract/pkg/layers"
)

const proximityHex = "421b0102030405060201061aff830501" + "0700" + "0000abcd" + "42" + "0c3f"

func newTestClient(t *testing.T, handler http.HandlerFunc) *ApiClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	host, port, err := net.SplitHostPort(strings.TrimPrefix(ts.URL, "http://"))
	if err != nil {
		t.Fatalf("split %s: %s", ts.URL, err)
	}
	cfg := config.NewDefaultConfig()
	cfg.ApiConfig.Address = host
	cfg.ApiConfig.Port, _ = strconv.Atoi(port)
	return NewApiClient(cfg)
}

func TestApiClient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/proximity":
			fmt.Fprint(w, `[{"instanceId":"0000abcd","batteryPercentage":40,"acceleration":[1,null,-1],"nearest":[]}]`)
		case "/api/proximity/0000abcd":
			fmt.Fprint(w, `{"instanceId":"0000abcd","cyclicCount":3}`)
		case "/api/digests/0000abcd":
			fmt.Fprint(w, `[{"instanceId":"0000abcd","digestTimestamp":12,"interactions":[{"instanceId":"00000001","count":2}]}]`)
		case "/api/stats":
			fmt.Fprint(w, `{"records":5,"failed":2}`)
		default:
			http.Error(w, "Not found: nothing", http.StatusNotFound)
		}
	})

	reports, err := c.ListProximity()
	if err != nil {
		t.Fatalf("list proximity: %s", err)
	}
	if len(reports) != 1 || reports[0].InstanceID != 0xabcd || reports[0].Acceleration[1] != nil || *reports[0].Acceleration[2] != -1 {
		t.Fatalf("unexpected reports: %+v", reports)
	}

	report, err := c.GetProximity("0000abcd")
	if err != nil || report.CyclicCount != 3 {
		t.Fatalf("unexpected report: %v %v", report, err)
	}

	digests, err := c.ListDigests("0000abcd")
	if err != nil {
		t.Fatalf("list digests: %s", err)
	}
	if len(digests) != 1 || digests[0].DigestTimestamp != 12 || digests[0].Interactions[0].Count != 2 {
		t.Fatalf("unexpected digests: %+v", digests)
	}

	stats, err := c.Stats()
	if err != nil || stats.Records != 5 || stats.Failed != 2 {
		t.Fatalf("unexpected stats: %+v %v", stats, err)
	}

	_, err = c.GetProximity("00000001")
	if err == nil || !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "nothing") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestParseRecordLine(t *testing.T) {
	record, err := ParseRecordLine("1600000000000 " + proximityHex + " " + proximityHex)
	if err != nil {
		t.Fatalf("parse: %s", err)
	}
	if record.Timestamp != 1600000000000 || len(record.Packets) != 2 || len(record.Packets[0]) != 25 {
		t.Fatalf("unexpected record: %+v", record)
	}

	record, err = ParseRecordLine(proximityHex)
	if err != nil || record.Timestamp != 0 || len(record.Packets) != 1 {
		t.Fatalf("unexpected record: %+v %v", record, err)
	}

	for _, line := range []string{"", "   ", "# comment"} {
		if record, err := ParseRecordLine(line); record != nil || err != nil {
			t.Fatalf("%q: expected nothing, got %+v %v", line, record, err)
		}
	}
	for _, line := range []string{"12x4 " + proximityHex, "1 zz"} {
		if _, err := ParseRecordLine(line); err == nil {
			t.Fatalf("%q: expected error", line)
		}
	}
}

func TestSendRecords(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %s", err)
	}
	defer conn.Close()

	input := strings.Join([]string{"# two records", "1000 " + proximityHex, "", proximityHex}, "\n")
	sent, err := SendRecords(context.Background(), conn.LocalAddr().String(), strings.NewReader(input), 0)
	if err != nil || sent != 2 {
		t.Fatalf("send: %d %v", sent, err)
	}

	buffer := make([]byte, 2048)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := conn.Read(buffer)
	if err != nil {
		t.Fatalf("read: %s", err)
	}
	packet := gopacket.NewPacket(buffer[:n], layers.RecordLayerType, gopacket.Default)
	rl, ok := packet.Layer(layers.RecordLayerType).(*layers.RecordLayer)
	if !ok {
		t.Fatalf("no record layer: %v", packet)
	}
	if rl.Timestamp != 1000 || len(rl.Packets) != 1 {
		t.Fatalf("unexpected record: %+v", rl)
	}

	before := uint64(time.Now().UnixMilli())
	n, err = conn.Read(buffer)
	if err != nil {
		t.Fatalf("read: %s", err)
	}
	packet = gopacket.NewPacket(buffer[:n], layers.RecordLayerType, gopacket.Default)
	rl, ok = packet.Layer(layers.RecordLayerType).(*layers.RecordLayer)
	if !ok {
		t.Fatalf("no record layer: %v", packet)
	}
	// stamped when sent, which happened before the first read
	if rl.Timestamp == 0 || rl.Timestamp > before+1 {
		t.Fatalf("record without timestamp not stamped: %d", rl.Timestamp)
	}
}

func TestInspect(t *testing.T) {
	packet, err := Inspect(proximityHex)
	if err != nil {
		t.Fatalf("inspect: %s", err)
	}
	pl, ok := packet.Layer(layers.ProximityLayerType).(*layers.ProximityLayer)
	if !ok || pl.InstanceID != 0xabcd || pl.BatteryPercentage != 100 {
		t.Fatalf("unexpected packet: %v", packet)
	}

	if _, err := Inspect("ff"); err == nil {
		t.Fatalf("expected error for a short packet")
	}
	if _, err := Inspect("not hex"); err == nil {
		t.Fatalf("expected error for invalid hex")
	}
}
