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
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
	k8syaml "sigs.k8s.io/yaml"
)

type IngestConfig struct {
	Address string `yaml:"address" json:"address"`
	Port    int    `yaml:"port" json:"port"`
}

type ApiConfig struct {
	Address string `yaml:"address" json:"address"`
	Port    int    `yaml:"port" json:"port"`
}

// DecoderConfig selects which packet types are decoded and how.
// A disabled type is skipped without being decoded.
type DecoderConfig struct {
	Proximity      bool   `yaml:"proximity" json:"proximity"`
	Digest         bool   `yaml:"digest" json:"digest"`
	CountPolicy    string `yaml:"countPolicy" json:"countPolicy"`
	AccumulatorTTL string `yaml:"accumulatorTTL" json:"accumulatorTTL"`
}

type StateConfig struct {
	DBPath string `yaml:"dbPath" json:"dbPath"`
}

// InfluxConfig is optional, metrics are not written when Host is empty
type InfluxConfig struct {
	Host         string `yaml:"host" json:"host"`
	Token        string `yaml:"token" json:"token"`
	Organization string `yaml:"organization" json:"organization"`
	Bucket       string `yaml:"bucket" json:"bucket"`
}

type Config struct {
	LogLevel       string `yaml:"logLevel" json:"logLevel"`
	LogFile        string `yaml:"logFile,omitempty" json:"logFile,omitempty"`
	*IngestConfig  `yaml:"ingest" json:"ingest"`
	*ApiConfig     `yaml:"api" json:"api"`
	*DecoderConfig `yaml:"decoder" json:"decoder"`
	*StateConfig   `yaml:"state" json:"state"`
	*InfluxConfig  `yaml:"influxdb" json:"influxdb"`
	filepath       string
}

func (c *Config) Path() string {
	return c.filepath
}

func (c *Config) SetPath(path string) {
	c.filepath = path
}

func (c *Config) Persist(overwrite bool) error {
	if _, err := os.Stat(c.filepath); err == nil && !overwrite {
		return ErrConfigFileExists{Path: c.filepath}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.filepath)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	return ioutil.WriteFile(c.filepath, data, 0644)
}

// Load reads the config file over the current values.
// A missing file is not an error, defaults stay in place.
func (c *Config) Load() error {
	data, err := ioutil.ReadFile(c.filepath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", c.filepath, err)
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	switch c.DecoderConfig.CountPolicy {
	// empty means the default, verbatim
	case "", "verbatim", "scaled":
	default:
		return ErrInvalidConfig{Field: "decoder.countPolicy", Value: c.DecoderConfig.CountPolicy}
	}
	if _, err := c.AccumulatorTTLDuration(); err != nil {
		return ErrInvalidConfig{Field: "decoder.accumulatorTTL", Value: c.DecoderConfig.AccumulatorTTL}
	}
	return nil
}

// AccumulatorTTLDuration returns zero when accumulators are never evicted
func (c *Config) AccumulatorTTLDuration() (time.Duration, error) {
	if c.DecoderConfig.AccumulatorTTL == "" {
		return 0, nil
	}
	return time.ParseDuration(c.DecoderConfig.AccumulatorTTL)
}

func (c *Config) IngestAddr() string {
	return fmt.Sprintf("%s:%d", c.IngestConfig.Address, c.IngestConfig.Port)
}

func (c *Config) ApiAddr() string {
	return fmt.Sprintf("%s:%d", c.ApiConfig.Address, c.ApiConfig.Port)
}

func (c *Config) String() string {
	data, err := k8syaml.Marshal(c)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("---\n%s", string(data))
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir, ConfigFile)
}

func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir, DBFile)
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		IngestConfig: &IngestConfig{
			Address: DefaultIngestAddress,
			Port:    DefaultIngestPort,
		},
		ApiConfig: &ApiConfig{
			Address: DefaultApiAddress,
			Port:    DefaultApiPort,
		},
		DecoderConfig: &DecoderConfig{
			Proximity:      true,
			Digest:         true,
			CountPolicy:    DefaultCountPolicy,
			AccumulatorTTL: DefaultAccumulatorTTL,
		},
		StateConfig: &StateConfig{
			DBPath: DefaultDBPath(),
		},
		InfluxConfig: &InfluxConfig{
			Organization: DefaultInfluxOrganization,
			Bucket:       DefaultInfluxBucket,
		},
		filepath: DefaultConfigPath(),
	}
}
