package tree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// ErrCorruptEntry is returned when a cached tree fails to decode. The
// entry is discarded so the next build attempt starts clean.
var ErrCorruptEntry = errors.New("tree: corrupt cache entry")

const treeKeyPrefix = "tree:"

// Cache persists one serialized Tree per document id in BadgerDB.
type Cache struct {
	db  *badger.DB
	log *slog.Logger
}

type badgerLoggerAdapter struct {
	log *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.log.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.log.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.log.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.log.Debug(fmt.Sprintf(msg, items...))
}

// OpenCache opens (creating if needed) a tree cache at path. An empty
// path opens an in-memory cache, used by tests.
func OpenCache(path string, log *slog.Logger) (*Cache, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = &badgerLoggerAdapter{log: log.With("component", "tree-cache")}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open tree cache: %w", err)
	}
	return &Cache{db: db, log: log.With("component", "tree-cache")}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func treeKey(docID string) []byte {
	return []byte(treeKeyPrefix + docID)
}

// Save serializes the tree under the document id and verifies the entry
// by reading it back. A verification mismatch fails the save.
func (c *Cache) Save(docID string, t *Tree) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode tree %s: %w", docID, err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(treeKey(docID), payload)
	})
	if err != nil {
		return fmt.Errorf("write tree %s: %w", docID, err)
	}

	var stored []byte
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(treeKey(docID))
		if err != nil {
			return err
		}
		stored, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("verify tree %s: %w", docID, err)
	}
	if !bytes.Equal(stored, payload) {
		return fmt.Errorf("verify tree %s: stored payload differs", docID)
	}

	c.log.Info("tree cached", "doc_id", docID, "bytes", len(payload), "nodes", len(t.AllNodes))
	return nil
}

// Load returns the cached tree for the document id. The second return
// is false when no entry exists. A corrupt entry is deleted and
// reported as ErrCorruptEntry so the caller rebuilds.
func (c *Cache) Load(docID string) (*Tree, bool, error) {
	var payload []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(treeKey(docID))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read tree %s: %w", docID, err)
	}

	var t Tree
	if err := json.Unmarshal(payload, &t); err != nil || t.Validate() != nil {
		c.log.Warn("discarding corrupt cached tree", "doc_id", docID, "error", err)
		if delErr := c.Delete(docID); delErr != nil {
			c.log.Warn("failed to discard corrupt entry", "doc_id", docID, "error", delErr)
		}
		return nil, false, fmt.Errorf("%w: %s", ErrCorruptEntry, docID)
	}
	return &t, true, nil
}

// Delete removes the cached tree for the document id.
func (c *Cache) Delete(docID string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(treeKey(docID))
	})
}
