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
	"errors"
	"net"
	"time"

	"github.com/google/gopacket"
	"golang.org/x/sync/errgroup"

	"jinr.ru/greenlab/go-diract/pkg/config"
	"jinr.ru/greenlab/go-diract/pkg/diract"
	"jinr.ru/greenlab/go-diract/pkg/layers"
	"jinr.ru/greenlab/go-diract/pkg/log"
)

const maxDatagramSize = 65535

// IngestServer receives records over UDP and feeds them to the decoder.
// Records are decoded by a single goroutine, the decoder is never called
// concurrently.
type IngestServer struct {
	*Server
	decoder *diract.Decoder
	conn    *net.UDPConn
}

func NewIngestServer(ctx context.Context, cfg *config.Config, decoder *diract.Decoder) (*IngestServer, error) {
	log.Debug("Initializing ingest server with address: %s", cfg.IngestAddr())

	uaddr, err := net.ResolveUDPAddr("udp", cfg.IngestAddr())
	if err != nil {
		return nil, err
	}

	s := &IngestServer{
		Server: &Server{
			Context: ctx,
			Config:  cfg,
			UDPAddr: uaddr,
			ChIn:    make(chan InPacket),
		},
		decoder: decoder,
	}
	return s, nil
}

// Listen opens the UDP socket. Run calls it when it has not been called before.
func (s *IngestServer) Listen() error {
	conn, err := net.ListenUDP("udp", s.UDPAddr)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

// LocalAddr returns the address the server listens on, nil before Listen
func (s *IngestServer) LocalAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *IngestServer) Run() error {
	if s.conn == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	log.Info("Starting ingest server: address: %s", s.LocalAddr())

	parent := s.Server.Context
	g, ctx := errgroup.WithContext(parent)
	s.Server.Context = ctx

	g.Go(func() error {
		<-ctx.Done()
		return s.conn.Close()
	})

	// capture datagrams from the wire and put them into the ChIn channel
	g.Go(func() error {
		buffer := make([]byte, maxDatagramSize)
		for {
			length, addr, err := s.conn.ReadFromUDP(buffer)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				return err
			}
			data := make([]byte, length)
			copy(data, buffer[:length])
			ci := gopacket.CaptureInfo{
				Length:        length,
				CaptureLength: length,
				Timestamp:     time.Now(),
				AncillaryData: []interface{}{addr},
			}
			select {
			case s.ChIn <- InPacket{Data: data, CaptureInfo: ci}:
			case <-ctx.Done():
				return nil
			}
		}
	})

	// read records from the ChIn channel using the ReadPacketData method and decode them
	g.Go(func() error {
		source := gopacket.NewPacketSource(s, layers.RecordLayerType)
		source.NoCopy = true
		for packet := range source.Packets() {
			s.HandlePacket(packet)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return parent.Err()
}

// HandlePacket passes a decoded record datagram to the decoder
func (s *IngestServer) HandlePacket(packet gopacket.Packet) {
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		log.Warning("Error while decoding record: %s", errLayer.Error())
		return
	}
	rl, ok := packet.Layer(layers.RecordLayerType).(*layers.RecordLayer)
	if !ok {
		log.Warning("Datagram is not a record")
		return
	}
	if addr, err := GetAddrPort(packet); err == nil {
		log.Debug("Record from %s: packets: %d", addr, len(rl.Packets))
	}
	s.decoder.HandleRecord(diract.Record{
		Timestamp: int64(rl.Timestamp),
		Packets:   rl.Packets,
	})
}
