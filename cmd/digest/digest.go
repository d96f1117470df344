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

package digest

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-diract/pkg/command"
	"jinr.ru/greenlab/go-diract/pkg/config"
)

func NewCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Read reassembled digests from the server",
	}
	cmd.AddCommand(NewListCommand(cfg))
	return cmd
}

func NewListCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <instance id>",
		Short: "List the digests of a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			digests, err := apiClient.ListDigests(args[0])
			if err != nil {
				return err
			}
			for _, digest := range digests {
				fmt.Fprintln(cmd.OutOrStdout(), digest.String())
			}
			return nil
		},
	}
	return cmd
}
