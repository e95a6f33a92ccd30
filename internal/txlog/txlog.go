// SPDX-FileCopyrightText: Copyright (C) 2025 The rubix-sdk-go authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package txlog implements a local transfer history with a simple boltdb
// based backend. The node keeps the authoritative token chain; this log only
// records what this wallet submitted and how the node answered, so a CLI can
// show history without a round trip.
package txlog

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
)

const (
	transfersBucket = "transfers"
	metadataBucket  = "metadata"
	versionKey      = "version"
)

// Record is one submitted transfer.
type Record struct {
	// Kind names the asset class, one of "rbt", "ft", "nft" or "contract".
	Kind string

	Sender   string
	Receiver string
	Amount   float64
	Comment  string

	// Status and Message mirror the node's transaction response.
	Status  bool
	Message string

	Timestamp time.Time
}

// Log is an append-only transfer history.
type Log struct {
	db *bolt.DB
}

// New creates (or loads) a transfer log with the given file name f.
func New(f string) (*Log, error) {
	db, err := bolt.Open(f, 0600, nil)
	if err != nil {
		return nil, err
	}

	l := &Log{db: db}
	if err = db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}
		if _, err = tx.CreateBucketIfNotExists([]byte(transfersBucket)); err != nil {
			return err
		}

		if b := bkt.Get([]byte(versionKey)); b != nil {
			// Well it looks like we loaded as opposed to created.
			if len(b) != 1 || b[0] != 0 {
				return fmt.Errorf("txlog: incompatible version: %d", uint(b[0]))
			}
			return nil
		}

		return bkt.Put([]byte(versionKey), []byte{0})
	}); err != nil {
		db.Close()
		return nil, err
	}

	return l, nil
}

// Append records a transfer. Records are keyed by insertion order.
func (l *Log) Append(r *Record) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	blob, err := cbor.Marshal(r)
	if err != nil {
		return fmt.Errorf("txlog: failed to encode record: %v", err)
	}

	return l.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(transfersBucket))
		seq, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		var k [8]byte
		binary.BigEndian.PutUint64(k[:], seq)
		return bkt.Put(k[:], blob)
	})
}

// List returns all records in insertion order.
func (l *Log) List() ([]*Record, error) {
	var records []*Record
	err := l.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(transfersBucket))
		return bkt.ForEach(func(k, v []byte) error {
			r := new(Record)
			if err := cbor.Unmarshal(v, r); err != nil {
				return fmt.Errorf("txlog: corrupted record %d: %v", binary.BigEndian.Uint64(k), err)
			}
			records = append(records, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close flushes and closes the underlying database.
func (l *Log) Close() {
	l.db.Sync()
	l.db.Close()
}
