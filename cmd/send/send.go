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

package send

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-diract/pkg/command"
	"jinr.ru/greenlab/go-diract/pkg/config"
)

const (
	FileOptionName     = "file"
	AddressOptionName  = "address"
	IntervalOptionName = "interval"

	sendExample = `
Send records from a file, one record per line: [<ms timestamp>] <hex packet> [<hex packet>...]
# go-diract send --file records.txt

Read records from stdin
# echo "421b0102030405060201061aff83050107000000abcd420c3f" | go-diract send --file -
`
)

func NewCommand(cfg *config.Config) *cobra.Command {
	var file, address string
	var interval time.Duration
	cmd := &cobra.Command{
		Use:     "send",
		Short:   "Send records to the ingest server",
		Example: sendExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			if address == "" {
				address = fmt.Sprintf("127.0.0.1:%d", cfg.IngestConfig.Port)
			}
			sent, err := command.SendRecords(context.Background(), address, in, interval)
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %d records to %s\n", sent, address)
			return err
		},
	}
	cmd.Flags().StringVar(&file, FileOptionName, "-", "File with records, - for stdin")
	cmd.Flags().StringVar(&address, AddressOptionName, "", "Ingest server address. Default: 127.0.0.1 and the configured ingest port")
	cmd.Flags().DurationVar(&interval, IntervalOptionName, 0, "Pause between records")
	return cmd
}
