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
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-diract/pkg/layers"
	"jinr.ru/greenlab/go-diract/pkg/log"
	"jinr.ru/greenlab/go-diract/pkg/srv"
)

// maxTimestampDigits separates a decimal timestamp from a hex wire packet,
// a wire packet is at least 32 hex characters long
const maxTimestampDigits = 20

// ParseRecordLine parses "[<ms timestamp>] <hex packet> [<hex packet>...]".
// Empty lines and lines starting with # give a nil record.
func ParseRecordLine(line string) (*layers.RecordLayer, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}
	fields := strings.Fields(line)
	record := &layers.RecordLayer{}
	if len(fields[0]) <= maxTimestampDigits {
		ts, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("timestamp %q: %w", fields[0], err)
		}
		record.Timestamp = ts
		fields = fields[1:]
	}
	for _, field := range fields {
		data, err := hex.DecodeString(field)
		if err != nil {
			return nil, fmt.Errorf("packet %q: %w", field, err)
		}
		record.Packets = append(record.Packets, data)
	}
	return record, nil
}

// SendRecords reads record lines from r and sends every record as one
// datagram to addr. Records without a timestamp are stamped with the
// current time. It returns the number of records sent.
func SendRecords(ctx context.Context, addr string, r io.Reader, interval time.Duration) (int, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	sent := 0
	scanner := bufio.NewScanner(r)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		record, err := ParseRecordLine(scanner.Text())
		if err != nil {
			return sent, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if record == nil {
			continue
		}
		if record.Timestamp == 0 {
			record.Timestamp = srv.Now()
		}
		buf := gopacket.NewSerializeBuffer()
		if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, record); err != nil {
			return sent, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if _, err := conn.Write(buf.Bytes()); err != nil {
			return sent, err
		}
		sent++
		log.Debug("Sent record: line: %d packets: %d", lineNum, len(record.Packets))

		if interval > 0 {
			select {
			case <-ctx.Done():
				return sent, ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return sent, scanner.Err()
}

// Inspect decodes one hex encoded wire packet
func Inspect(hexPacket string) (gopacket.Packet, error) {
	data, err := hex.DecodeString(strings.TrimSpace(hexPacket))
	if err != nil {
		return nil, err
	}
	packet := gopacket.NewPacket(data, layers.DirActLayerType, gopacket.Default)
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		return packet, errLayer.Error()
	}
	return packet, nil
}
