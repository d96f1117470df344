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

package serve

import (
	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-diract/pkg/command"
	"jinr.ru/greenlab/go-diract/pkg/config"
)

const (
	IngestAddressOptionName = "ingest-address"
	IngestPortOptionName    = "ingest-port"
	ApiAddressOptionName    = "api-address"
	ApiPortOptionName       = "api-port"
	DBPathOptionName        = "db-path"
	CountPolicyOptionName   = "count-policy"
	NoProximityOptionName   = "no-proximity"
	NoDigestOptionName      = "no-digest"
)

func NewCommand(cfg *config.Config) *cobra.Command {
	var ingestAddress, apiAddress, dbPath, countPolicy string
	var ingestPort, apiPort int
	var noProximity, noDigest bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive records over UDP, decode them and serve the results over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed(IngestAddressOptionName) {
				cfg.IngestConfig.Address = ingestAddress
			}
			if flags.Changed(IngestPortOptionName) {
				cfg.IngestConfig.Port = ingestPort
			}
			if flags.Changed(ApiAddressOptionName) {
				cfg.ApiConfig.Address = apiAddress
			}
			if flags.Changed(ApiPortOptionName) {
				cfg.ApiConfig.Port = apiPort
			}
			if flags.Changed(DBPathOptionName) {
				cfg.StateConfig.DBPath = dbPath
			}
			if flags.Changed(CountPolicyOptionName) {
				cfg.DecoderConfig.CountPolicy = countPolicy
			}
			if noProximity {
				cfg.DecoderConfig.Proximity = false
			}
			if noDigest {
				cfg.DecoderConfig.Digest = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return command.StartServer(cfg)
		},
	}
	cmd.Flags().StringVar(&ingestAddress, IngestAddressOptionName, config.DefaultIngestAddress, "Address to receive records on")
	cmd.Flags().IntVar(&ingestPort, IngestPortOptionName, config.DefaultIngestPort, "UDP port to receive records on")
	cmd.Flags().StringVar(&apiAddress, ApiAddressOptionName, config.DefaultApiAddress, "Address of the API server")
	cmd.Flags().IntVar(&apiPort, ApiPortOptionName, config.DefaultApiPort, "Port of the API server")
	cmd.Flags().StringVar(&dbPath, DBPathOptionName, config.DefaultDBPath(), "Archive database file")
	cmd.Flags().StringVar(&countPolicy, CountPolicyOptionName, config.DefaultCountPolicy, "Digest count decoding: verbatim or scaled")
	cmd.Flags().BoolVar(&noProximity, NoProximityOptionName, false, "Skip proximity packets")
	cmd.Flags().BoolVar(&noDigest, NoDigestOptionName, false, "Skip digest packets")
	return cmd
}
