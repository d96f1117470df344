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

package stats

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-diract/pkg/command"
	"jinr.ru/greenlab/go-diract/pkg/config"
)

func NewCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print decoder counters of the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			stats, err := apiClient.Stats()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "records:      %d\n", stats.Records)
			fmt.Fprintf(out, "proximity:    %d\n", stats.Proximity)
			fmt.Fprintf(out, "digest pages: %d\n", stats.DigestPages)
			fmt.Fprintf(out, "digests:      %d\n", stats.Digests)
			fmt.Fprintf(out, "ignored:      %d\n", stats.Ignored)
			fmt.Fprintf(out, "skipped:      %d\n", stats.Skipped)
			fmt.Fprintf(out, "failed:       %d\n", stats.Failed)
			return nil
		},
	}
	return cmd
}
