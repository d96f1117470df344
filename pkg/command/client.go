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

package command

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/imroc/req"

	"jinr.ru/greenlab/go-diract/pkg/config"
	"jinr.ru/greenlab/go-diract/pkg/diract"
)

type ApiClient struct {
	*config.Config
	ApiPrefix string
}

func NewApiClient(cfg *config.Config) *ApiClient {
	return &ApiClient{
		Config:    cfg,
		ApiPrefix: fmt.Sprintf("http://%s/api", cfg.ApiAddr()),
	}
}

func (c *ApiClient) proximityUrl(instance string) string {
	if instance == "" {
		return fmt.Sprintf("%s/proximity", c.ApiPrefix)
	}
	return fmt.Sprintf("%s/proximity/%s", c.ApiPrefix, instance)
}

func (c *ApiClient) digestsUrl(instance string) string {
	return fmt.Sprintf("%s/digests/%s", c.ApiPrefix, instance)
}

func (c *ApiClient) get(url string, v interface{}) error {
	r, err := req.Get(url)
	if err != nil {
		return err
	}
	if r.Response().StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", r.Response().Status, strings.TrimSpace(r.String()))
	}
	return r.ToJSON(v)
}

// ListProximity sends request to get the latest proximity report of every device
func (c *ApiClient) ListProximity() ([]*diract.ProximityReport, error) {
	var reports []*diract.ProximityReport
	if err := c.get(c.proximityUrl(""), &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// GetProximity sends request to get the latest proximity report of a device
func (c *ApiClient) GetProximity(instance string) (*diract.ProximityReport, error) {
	report := &diract.ProximityReport{}
	if err := c.get(c.proximityUrl(instance), report); err != nil {
		return nil, err
	}
	return report, nil
}

// ListDigests sends request to get the archived digests of a device
func (c *ApiClient) ListDigests(instance string) ([]*diract.Digest, error) {
	var digests []*diract.Digest
	if err := c.get(c.digestsUrl(instance), &digests); err != nil {
		return nil, err
	}
	return digests, nil
}

// Stats sends request to get the decoder counters
func (c *ApiClient) Stats() (*diract.Stats, error) {
	stats := &diract.Stats{}
	if err := c.get(fmt.Sprintf("%s/stats", c.ApiPrefix), stats); err != nil {
		return nil, err
	}
	return stats, nil
}
