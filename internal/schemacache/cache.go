package schemacache

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
	"github.com/xmlls/xmlls/internal/utils"
	"github.com/xmlls/xmlls/internal/xsd"
	"golang.org/x/sync/singleflight"
)

const (
	DEFAULT_TTL            = 5 * time.Minute
	DEFAULT_SWEEP_INTERVAL = time.Minute
)

var (
	ErrSchemaLoad  = errors.New("failed to load schema")
	ErrCacheClosed = errors.New("schema cache is closed")
)

// SchemaLoadError is returned when a schema cannot be read or compiled, failures are not cached.
type SchemaLoadError struct {
	Path string
	Err  error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Err)
}

func (e *SchemaLoadError) Unwrap() []error {
	return []error{ErrSchemaLoad, e.Err}
}

// A Compiler loads & compiles the schema at a canonical path, *xsd.Loader implements Compiler.
type Compiler interface {
	Load(path string) (*xsd.Schema, error)
}

type Options struct {
	// defaults to DEFAULT_TTL.
	TTL time.Duration

	// defaults to time.Now.
	Now func() time.Time

	Logger zerolog.Logger
}

// Cache is a table of compiled schemas keyed by canonical path. Entries expire after a fixed TTL, at most one
// compilation per path is in progress at any time.
type Cache struct {
	compiler Compiler
	ttl      time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	entries cmap.ConcurrentMap[string, *entry]
	group   singleflight.Group

	hits         atomic.Int64
	misses       atomic.Int64
	compilations atomic.Int64

	watcher *watcher

	closed     chan struct{}
	closeOnce  sync.Once
	goroutines sync.WaitGroup
}

type entry struct {
	path       string
	schema     *xsd.Schema
	insertedAt time.Time
	ttl        time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) > e.ttl
}

type Stats struct {
	Hits         int64
	Misses       int64
	Compilations int64
	Entries      int
}

func New(compiler Compiler, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DEFAULT_TTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Cache{
		compiler: compiler,
		ttl:      opts.TTL,
		now:      opts.Now,
		logger:   opts.Logger,
		entries:  cmap.New[*entry](),
		closed:   make(chan struct{}),
	}
}

// GetOrCompile returns the compiled schema at path, the schema is compiled if it is not cached or if the
// cached entry has expired. Concurrent calls for the same path share a single compilation.
func (c *Cache) GetOrCompile(ctx context.Context, path string) (*xsd.Schema, error) {
	if e, ok := c.entries.Get(path); ok {
		if !e.expired(c.now()) {
			c.hits.Add(1)
			return e.schema, nil
		}
		c.entries.RemoveCb(path, func(key string, current *entry, exists bool) bool {
			return exists && current == e
		})
	}
	c.misses.Add(1)

	resultChan := c.group.DoChan(path, func() (interface{}, error) {
		return c.compile(path)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultChan:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.(*xsd.Schema), nil
	}
}

func (c *Cache) compile(path string) (_ *xsd.Schema, finalErr error) {
	c.compilations.Add(1)
	start := time.Now()

	//a panic would be re-raised by singleflight in the goroutines of all the waiting callers.
	defer func() {
		if e := recover(); e != nil {
			err := utils.ConvertPanicValueToError(e)
			c.logger.Error().Err(err).Str("schema", path).Str("stack", string(debug.Stack())).Msg("schema compilation panicked")
			finalErr = &SchemaLoadError{Path: path, Err: err}
		}
	}()

	schema, err := c.compiler.Load(path)
	if err != nil {
		c.logger.Debug().Err(err).Str("schema", path).Msg("schema compilation failed")
		return nil, &SchemaLoadError{Path: path, Err: err}
	}

	c.entries.Set(path, &entry{
		path:       path,
		schema:     schema,
		insertedAt: c.now(),
		ttl:        c.ttl,
	})

	c.logger.Debug().Str("schema", path).Dur("duration", time.Since(start)).Msg("schema compiled")

	if c.watcher != nil {
		c.watcher.watch(path)
	}
	return schema, nil
}

// Invalidate removes the entry of path, the next lookup compiles the schema again.
func (c *Cache) Invalidate(path string) {
	if _, ok := c.entries.Pop(path); ok {
		c.logger.Debug().Str("schema", path).Msg("schema invalidated")
	}
}

// Contains reports whether a non-expired entry exists for path.
func (c *Cache) Contains(path string) bool {
	e, ok := c.entries.Get(path)
	return ok && !e.expired(c.now())
}

// Sweep removes the expired entries and returns the number of removed entries.
func (c *Cache) Sweep() int {
	now := c.now()
	removed := 0

	for _, path := range c.entries.Keys() {
		deleted := c.entries.RemoveCb(path, func(key string, e *entry, exists bool) bool {
			return exists && e.expired(now)
		})
		if deleted {
			removed++
		}
	}
	return removed
}

// StartSweeper starts a goroutine that periodically removes the expired entries, the goroutine stops
// when ctx is done or the cache is closed.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DEFAULT_SWEEP_INTERVAL
	}

	c.goroutines.Add(1)
	go func() {
		defer c.goroutines.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closed:
				return
			case <-ticker.C:
				if removed := c.Sweep(); removed > 0 {
					c.logger.Debug().Int("count", removed).Msg("expired schemas removed")
				}
			}
		}
	}()
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Compilations: c.compilations.Load(),
		Entries:      c.entries.Count(),
	}
}

// Close stops the sweeper and the watcher, it waits for their goroutines to return.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	c.goroutines.Wait()
}
