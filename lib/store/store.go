// Package liboralynxstore persists the events of an instance in a bbolt database: an append-only journal of every
// event, plus an index of the delivered results by request id.
package liboralynxstore

import (
	"encoding/binary"
	"reflect"
	"time"

	"github.com/ldsec/oralynx/lib"
	"github.com/ldsec/oralynx/lib/events"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

var (
	eventsBucket  = []byte("events")
	resultsBucket = []byte("results")
)

// Journal is an event sink backed by a bbolt file.
type Journal struct {
	db *bbolt.DB
}

// Open opens, or creates, the journal stored at path.
func Open(path string) (*Journal, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, xerrors.Errorf("opening journal %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{eventsBucket, resultsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, xerrors.Errorf("initializing journal %s: %w", path, err)
	}
	log.Lvl2("opened journal", path)
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Emit implements liboralynxevents.Emitter. A failed write is logged, never propagated to the instance.
func (j *Journal) Emit(e liboralynxevents.Event) {
	if err := j.Append(e); err != nil {
		log.Error("could not journal", e.Name(), ":", err)
	}
}

// Append writes an event to the journal.
func (j *Journal) Append(e liboralynxevents.Event) error {
	buf, err := marshal(e)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(eventsBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(key(seq), buf); err != nil {
			return err
		}
		if res, ok := e.(liboralynxevents.ResultDelivered); ok {
			return tx.Bucket(resultsBucket).Put(key(uint64(res.RequestID)), buf)
		}
		return nil
	})
}

// Events returns every journaled event, oldest first.
func (j *Journal) Events() ([]liboralynxevents.Event, error) {
	var evs []liboralynxevents.Event
	err := j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(eventsBucket).ForEach(func(k, v []byte) error {
			e, err := unmarshal(v)
			if err != nil {
				return xerrors.Errorf("event %d: %w", binary.BigEndian.Uint64(k), err)
			}
			evs = append(evs, e)
			return nil
		})
	})
	return evs, err
}

// Result returns the journaled result of a request.
func (j *Journal) Result(id liboralynx.RequestID) (liboralynxevents.ResultDelivered, bool, error) {
	var buf []byte
	err := j.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(resultsBucket).Get(key(uint64(id))); v != nil {
			buf = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || buf == nil {
		return liboralynxevents.ResultDelivered{}, false, err
	}

	e, err := unmarshal(buf)
	if err != nil {
		return liboralynxevents.ResultDelivered{}, false, err
	}
	res, ok := e.(liboralynxevents.ResultDelivered)
	if !ok {
		return liboralynxevents.ResultDelivered{}, false, xerrors.Errorf("result %d holds a %s event", id, e.Name())
	}
	return res, true, nil
}

func key(n uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, n)
	return k
}

// marshal encodes an event as an onet network message, which needs a pointer.
func marshal(e liboralynxevents.Event) ([]byte, error) {
	ptr := reflect.New(reflect.TypeOf(e))
	ptr.Elem().Set(reflect.ValueOf(e))
	buf, err := network.Marshal(ptr.Interface())
	if err != nil {
		return nil, xerrors.Errorf("encoding %s: %w", e.Name(), err)
	}
	return buf, nil
}

func unmarshal(buf []byte) (liboralynxevents.Event, error) {
	_, msg, err := network.Unmarshal(buf, liboralynx.SuiTe)
	if err != nil {
		return nil, err
	}
	v := reflect.ValueOf(msg)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	e, ok := v.Interface().(liboralynxevents.Event)
	if !ok {
		return nil, xerrors.Errorf("unexpected message %T in journal", msg)
	}
	return e, nil
}
