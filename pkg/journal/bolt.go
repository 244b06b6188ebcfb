package journal

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"
)

var bucketAttempts = []byte("attempts")

// attemptEncMode keeps nanosecond timestamps; the default CBOR time
// encoding drops sub-second precision.
var attemptEncMode cbor.EncMode

func init() {
	var err error
	attemptEncMode, err = cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create journal CBOR encoder mode: %v", err))
	}
}

// BoltJournal stores attempts in a bbolt file, keyed by big-endian sequence.
type BoltJournal struct {
	db *bbolt.DB
}

// OpenBolt opens or creates a bbolt journal at path.
func OpenBolt(path string) (*BoltJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAttempts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal bucket: %w", err)
	}

	return &BoltJournal{db: db}, nil
}

// Record implements Journal.
func (j *BoltJournal) Record(a Attempt) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAttempts)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		a.Seq = seq

		data, err := attemptEncMode.Marshal(a)
		if err != nil {
			return err
		}

		var key [8]byte
		binary.BigEndian.PutUint64(key[:], seq)
		return b.Put(key[:], data)
	})
}

// List implements Journal.
func (j *BoltJournal) List(limit int) ([]Attempt, error) {
	var out []Attempt
	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketAttempts).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var a Attempt
			if err := cbor.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("decode attempt %x: %w", k, err)
			}
			out = append(out, a)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// Close implements Journal.
func (j *BoltJournal) Close() error {
	return j.db.Close()
}
