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

package inspect

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-diract/pkg/command"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <hex packet>",
		Short: "Decode one wire packet and print its layers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			packet, err := command.Inspect(args[0])
			if packet != nil {
				fmt.Fprint(cmd.OutOrStdout(), packet.String())
			}
			return err
		},
	}
	return cmd
}
