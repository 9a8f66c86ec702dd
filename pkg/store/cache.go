// Package store keeps component trees of already processed sections in an
// embedded key-value store, so that repeated runs over the same stack skip
// the region sweep.
package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/unidesigner/sopnet/internal/models"
	"github.com/unidesigner/sopnet/pkg/mser"
)

// Config holds the cache location.
type Config struct {
	// Path is the database directory, ignored when InMemory is set
	Path string `yaml:"path"`

	InMemory   bool `yaml:"inMemory"`
	SyncWrites bool `yaml:"syncWrites"`
}

// SliceCache maps section contents and sweep parameters to the component
// tree they produce. Safe for concurrent use.
type SliceCache struct {
	db  *badger.DB
	log zerolog.Logger
}

// badgerLogger routes badger's own messages through zerolog.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msgf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Trace().Msgf(format, args...)
}

// Open opens the cache database, creating its directory when needed.
func Open(cfg Config, log zerolog.Logger) (*SliceCache, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("cache path is required unless in memory")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, errors.Wrapf(err, "create cache directory %s", cfg.Path)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	log = log.With().Str("component", "store").Logger()
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{log: log})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open cache database")
	}
	return &SliceCache{db: db, log: log}, nil
}

// Close releases the database.
func (c *SliceCache) Close() error {
	return c.db.Close()
}

// Key digests the section pixels and the sweep parameters. The section
// index is not part of the key; identical images share an entry.
func Key(section models.Section, params mser.Parameters) []byte {
	d := xxhash.New()

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(section.Width))
	d.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(section.Height))
	d.Write(buf[:])
	for _, v := range section.Pixels {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		d.Write(buf[:])
	}
	fmt.Fprintf(d, "%+v", params)

	return []byte(fmt.Sprintf("components/%016x", d.Sum64()))
}

// Get looks up a tree. The boolean reports whether the key was present.
func (c *SliceCache) Get(key []byte) (*mser.ComponentTree, bool, error) {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "read %s", key)
	}

	tree := &mser.ComponentTree{}
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(tree); err != nil {
		return nil, false, errors.Wrapf(err, "decode %s", key)
	}
	c.log.Debug().Bytes("key", key).Int("components", tree.Len()).Msg("cache hit")
	return tree, true, nil
}

// Put stores a tree under key, replacing any previous entry.
func (c *SliceCache) Put(key []byte, tree *mser.ComponentTree) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(tree); err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf.Bytes())
	})
	return errors.Wrapf(err, "write %s", key)
}
