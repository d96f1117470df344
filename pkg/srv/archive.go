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
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"
	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-diract/pkg/diract"
	"jinr.ru/greenlab/go-diract/pkg/layers"
	"jinr.ru/greenlab/go-diract/pkg/log"
)

const (
	ProximityBucket    = "proximity"
	DigestBucketPrefix = "digest_"
)

// Archive keeps the latest proximity report of every device and all
// completed digests
type Archive struct {
	DB *bbolt.DB
}

func NewArchive(path string) (*Archive, error) {
	log.Debug("Opening archive: %s", path)
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	a := &Archive{DB: db}
	if err := a.CreateBucket(ProximityBucket); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) Close() error {
	return a.DB.Close()
}

func (a *Archive) CreateBucket(name string) error {
	return a.DB.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
}

func DigestBucketName(instanceID layers.InstanceID) string {
	return fmt.Sprintf("%s%s", DigestBucketPrefix, instanceID)
}

func uint32ToByte(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func (a *Archive) PutProximity(report *diract.ProximityReport) error {
	log.Debug("Archiving proximity report: instance: %s", report.InstanceID)
	data, err := yaml.Marshal(report)
	if err != nil {
		return err
	}
	return a.DB.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(ProximityBucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(report.InstanceID.String()), data)
	})
}

func (a *Archive) GetProximity(instanceID layers.InstanceID) (*diract.ProximityReport, error) {
	report := &diract.ProximityReport{}
	if err := a.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(ProximityBucket))
		if b == nil {
			return ErrNotFound{What: fmt.Sprintf("proximity report of %s", instanceID)}
		}
		data := b.Get([]byte(instanceID.String()))
		if data == nil {
			return ErrNotFound{What: fmt.Sprintf("proximity report of %s", instanceID)}
		}
		return yaml.Unmarshal(data, report)
	}); err != nil {
		return nil, err
	}
	return report, nil
}

// AllProximity returns the latest report of every device ordered by instance id
func (a *Archive) AllProximity() ([]*diract.ProximityReport, error) {
	reports := []*diract.ProximityReport{}
	if err := a.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(ProximityBucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			report := &diract.ProximityReport{}
			if err := yaml.Unmarshal(v, report); err != nil {
				log.Error("Error while unmarshalling proximity report %s: %s", k, err)
				return err
			}
			reports = append(reports, report)
			return nil
		})
	}); err != nil {
		return nil, err
	}
	return reports, nil
}

func (a *Archive) PutDigest(digest *diract.Digest) error {
	log.Debug("Archiving digest: instance: %s timestamp: %d", digest.InstanceID, digest.DigestTimestamp)
	data, err := yaml.Marshal(digest)
	if err != nil {
		return err
	}
	return a.DB.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(DigestBucketName(digest.InstanceID)))
		if err != nil {
			return err
		}
		return b.Put(uint32ToByte(digest.DigestTimestamp), data)
	})
}

// Digests returns the archived digests of a device ordered by digest timestamp
func (a *Archive) Digests(instanceID layers.InstanceID) ([]*diract.Digest, error) {
	digests := []*diract.Digest{}
	if err := a.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(DigestBucketName(instanceID)))
		if b == nil {
			return ErrNotFound{What: fmt.Sprintf("digests of %s", instanceID)}
		}
		return b.ForEach(func(k, v []byte) error {
			digest := &diract.Digest{}
			if err := yaml.Unmarshal(v, digest); err != nil {
				log.Error("Error while unmarshalling digest %x: %s", k, err)
				return err
			}
			digests = append(digests, digest)
			return nil
		})
	}); err != nil {
		return nil, err
	}
	return digests, nil
}
