package reader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"SOTAWatch/internal/ports"
)

const cacheKeyPrefix = "page:"

// Cache memoizes expanded page text in badger with a TTL so that reruns do
// not hit the reader service for URLs seen recently. Empty results are not
// cached.
type Cache struct {
	next   ports.ContentExpander
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.ContentExpander = (*Cache)(nil)

// OpenCache opens a badger store at dir (or in memory) in front of next.
func OpenCache(next ports.ContentExpander, dir string, inMemory bool, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &Cache{next: next, db: db, ttl: ttl, logger: logger}, nil
}

// Expand returns cached text or delegates and stores a non-empty result.
func (c *Cache) Expand(ctx context.Context, url string) string {
	key := []byte(cacheKeyPrefix + url)

	var cached string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			cached = string(val)
			return nil
		})
	})
	if err == nil {
		return cached
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		c.logger.Warn("cache read failed", "url", url, "error", err)
	}

	text := c.next.Expand(ctx, url)
	if text == "" {
		return ""
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, []byte(text))
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		c.logger.Warn("cache write failed", "url", url, "error", err)
	}
	return text
}

// Close flushes and closes the badger store.
func (c *Cache) Close() error {
	return c.db.Close()
}

type badgerLogger struct {
	logger *slog.Logger
}

func (b *badgerLogger) Errorf(msg string, args ...any) {
	b.logger.Error(fmt.Sprintf(msg, args...))
}

func (b *badgerLogger) Warningf(msg string, args ...any) {
	b.logger.Warn(fmt.Sprintf(msg, args...))
}

func (b *badgerLogger) Infof(msg string, args ...any) {
	b.logger.Debug(fmt.Sprintf(msg, args...))
}

func (b *badgerLogger) Debugf(msg string, args ...any) {
	b.logger.Debug(fmt.Sprintf(msg, args...))
}
