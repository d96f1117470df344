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

package config

import (
	"errors"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPersistLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigDir, ConfigFile)

	cfg := NewDefaultConfig()
	cfg.SetPath(path)
	cfg.IngestConfig.Port = 40000
	cfg.DecoderConfig.CountPolicy = "scaled"
	cfg.DecoderConfig.AccumulatorTTL = "15m"
	cfg.DecoderConfig.Proximity = false
	if err := cfg.Persist(false); err != nil {
		t.Fatalf("persist: %v", err)
	}

	loaded := NewDefaultConfig()
	loaded.SetPath(path)
	if err := loaded.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.IngestConfig.Port != 40000 {
		t.Fatalf("unexpected ingest port: %d", loaded.IngestConfig.Port)
	}
	if loaded.DecoderConfig.CountPolicy != "scaled" || loaded.DecoderConfig.Proximity {
		t.Fatalf("unexpected decoder config: %+v", loaded.DecoderConfig)
	}
	ttl, err := loaded.AccumulatorTTLDuration()
	if err != nil || ttl != 15*time.Minute {
		t.Fatalf("unexpected ttl: %v %v", ttl, err)
	}
}

func TestPersistRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFile)
	cfg := NewDefaultConfig()
	cfg.SetPath(path)
	if err := cfg.Persist(false); err != nil {
		t.Fatalf("persist: %v", err)
	}
	err := cfg.Persist(false)
	var exists ErrConfigFileExists
	if !errors.As(err, &exists) || exists.Path != path {
		t.Fatalf("expected ErrConfigFileExists, got %v", err)
	}
	if err := cfg.Persist(true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetPath(filepath.Join(t.TempDir(), "absent"))
	if err := cfg.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ApiConfig.Port != DefaultApiPort {
		t.Fatalf("defaults lost: %d", cfg.ApiConfig.Port)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"count policy", "decoder:\n  countPolicy: squashed\n", "decoder.countPolicy"},
		{"ttl", "decoder:\n  countPolicy: verbatim\n  accumulatorTTL: soon\n", "decoder.accumulatorTTL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ConfigFile)
			if err := ioutil.WriteFile(path, []byte(tt.body), 0644); err != nil {
				t.Fatalf("write: %v", err)
			}
			cfg := NewDefaultConfig()
			cfg.SetPath(path)
			err := cfg.Load()
			var invalid ErrInvalidConfig
			if !errors.As(err, &invalid) || invalid.Field != tt.field {
				t.Fatalf("expected invalid %s, got %v", tt.field, err)
			}
		})
	}
}

func TestStringRendersYaml(t *testing.T) {
	out := NewDefaultConfig().String()
	if !strings.HasPrefix(out, "---\n") || !strings.Contains(out, "countPolicy: verbatim") {
		t.Fatalf("unexpected rendering: %q", out)
	}
}

func TestValidateAcceptsEmptyCountPolicy(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.DecoderConfig.CountPolicy = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty count policy must mean the default: %v", err)
	}
}
