package server

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/boltdb/bolt"

	"github.com/qnkhuat/tcast/pkg/message"
)

const (
	// Bucket names
	BRENDERS string = "RENDERS"
)

var ErrRenderNotFound = errors.New("render not found")

type DB struct {
	*bolt.DB
}

func SetupDB(path string) (*DB, error) {
	bdb, err := bolt.Open(fmt.Sprintf("%s.boltdb", path), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("could not open db, %v", err)
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		// Store every render job, finished or not
		_, err := tx.CreateBucketIfNotExists([]byte(BRENDERS))
		if err != nil {
			return fmt.Errorf("could not create root bucket: %v", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not set up buckets, %v", err)
	}

	return &DB{bdb}, nil
}

// itob returns an 8-byte big endian representation of v.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

/*
DB
- RENDERS
  - ID: RENDERINFO
  - ID: RENDERINFO
ID is auto increment
*/
func (db *DB) AddRender(obj message.RenderInfo) (uint64, error) {
	var id uint64
	err := db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BRENDERS))

		// newest record will be at the end of table
		id, _ = b.NextSequence()
		obj.Id = id

		buf, err := json.Marshal(obj)
		if err != nil {
			return err
		}
		if err = b.Put(itob(id), buf); err != nil {
			return fmt.Errorf("Failed to put: %v", err)
		}
		return nil
	})
	return id, err
}

func (db *DB) UpdateRender(obj message.RenderInfo) error {
	if obj.Id == 0 {
		return fmt.Errorf("update render %s: %w", obj.Key, ErrRenderNotFound)
	}
	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BRENDERS))
		if b.Get(itob(obj.Id)) == nil {
			return fmt.Errorf("update render %d: %w", obj.Id, ErrRenderNotFound)
		}
		buf, err := json.Marshal(obj)
		if err != nil {
			return err
		}
		return b.Put(itob(obj.Id), buf)
	})
}

// FindRender looks a render up by its public key, newest first.
func (db *DB) FindRender(key string) (message.RenderInfo, error) {
	var found *message.RenderInfo
	err := db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(BRENDERS)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			info := message.RenderInfo{}
			if err := json.Unmarshal(v, &info); err != nil {
				return err
			}
			if info.Key == key {
				found = &info
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return message.RenderInfo{}, err
	}
	if found == nil {
		return message.RenderInfo{}, fmt.Errorf("%s: %w", key, ErrRenderNotFound)
	}
	return *found, nil
}

// skip: number of matching records to skip
// n : number of records to get. Set to 0 to get all
// return a list of renders with the first item is the latest render
// empty statuses matches every render
func (db *DB) GetRenders(statuses []message.RenderStatus, skip int, n int) ([]message.RenderInfo, error) {
	renders := []message.RenderInfo{}

	err := db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(BRENDERS)).Cursor()

		matched := 0
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			info := message.RenderInfo{}
			if err := json.Unmarshal(v, &info); err != nil {
				return err
			}
			if !hasStatus(statuses, info.Status) {
				continue
			}

			matched += 1
			if matched <= skip {
				continue
			}
			renders = append(renders, info)

			// stop when get enough
			if n > 0 && len(renders) == n {
				break
			}
		}
		return nil
	})
	return renders, err
}

func hasStatus(statuses []message.RenderStatus, status message.RenderStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
