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

package proximity

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-diract/pkg/command"
	"jinr.ru/greenlab/go-diract/pkg/config"
)

func NewListCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the latest proximity report of every device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			reports, err := apiClient.ListProximity()
			if err != nil {
				return err
			}
			for _, report := range reports {
				fmt.Fprintln(cmd.OutOrStdout(), report.String())
			}
			return nil
		},
	}
	return cmd
}

func NewGetCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <instance id>",
		Short: "Get the latest proximity report of a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			report, err := apiClient.GetProximity(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.String())
			return nil
		},
	}
	return cmd
}
