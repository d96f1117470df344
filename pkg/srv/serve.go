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
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"jinr.ru/greenlab/go-diract/pkg/config"
	"jinr.ru/greenlab/go-diract/pkg/diract"
	"jinr.ru/greenlab/go-diract/pkg/log"
)

// NewDecoder builds a decoder from the decoder section of the config.
// Disabled packet types get no handler and are skipped.
func NewDecoder(cfg *config.Config, sink *Sink) (*diract.Decoder, error) {
	policy, err := diract.ParseCountPolicy(cfg.DecoderConfig.CountPolicy)
	if err != nil {
		return nil, err
	}
	ttl, err := cfg.AccumulatorTTLDuration()
	if err != nil {
		return nil, err
	}

	options := []diract.Option{diract.WithCountPolicy(policy)}
	if cfg.DecoderConfig.Proximity {
		options = append(options, diract.WithProximityHandler(sink))
	}
	if cfg.DecoderConfig.Digest {
		options = append(options, diract.WithDigestHandler(sink))
	}
	if ttl > 0 {
		log.Info("Digest accumulators expire after %s", ttl)
		options = append(options, diract.WithStore(diract.NewTTLStore(ttl, nil)))
	}
	return diract.NewDecoder(options...), nil
}

// Serve runs the ingest server and the API server until ctx is done or one of them fails
func Serve(ctx context.Context, cfg *config.Config) error {
	if err := os.MkdirAll(filepath.Dir(cfg.StateConfig.DBPath), 0755); err != nil {
		return err
	}
	archive, err := NewArchive(cfg.StateConfig.DBPath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", cfg.StateConfig.DBPath, err)
	}
	defer archive.Close()

	metrics := NewMetrics(cfg.InfluxConfig)
	defer metrics.Close()

	decoder, err := NewDecoder(cfg, NewSink(archive, metrics))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	ingest, err := NewIngestServer(ctx, cfg, decoder)
	if err != nil {
		return err
	}
	api, err := NewApiServer(ctx, cfg, archive, decoder.Stats)
	if err != nil {
		return err
	}

	g.Go(ingest.Run)
	g.Go(api.Run)

	err = g.Wait()
	log.Info("Server stopped: records: %d failed: %d", decoder.Stats().Records, decoder.Stats().Failed)
	if err == context.Canceled {
		return nil
	}
	return err
}
