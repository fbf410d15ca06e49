package xmlserver

import (
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/rs/zerolog"
	"github.com/xmlls/xmlls/internal/locator"
	"github.com/xmlls/xmlls/internal/scheduler"
	"github.com/xmlls/xmlls/internal/schemacache"
)

const (
	SERVER_NAME = "xmlls"

	EVENT_QUEUE_SIZE = 256
)

// Options configures a Server, zero fields are replaced by defaults in New.
type Options struct {
	// filesystem schemas, map files and search paths are read from, defaults to the OS filesystem.
	Filesystem billy.Filesystem

	Logger zerolog.Logger

	DebounceDelay time.Duration
	CacheTTL      time.Duration
	SweepInterval time.Duration
	Workers       int

	// if true schema files are watched and cached schemas are invalidated when they change.
	WatchSchemas bool

	// used when the client does not send any locator.
	DefaultLocators []locator.Locator

	// directory relative locator paths are resolved against when the client has no workspace root.
	WorkDir string

	Version string
}

func (o *Options) setDefaults() {
	if o.Filesystem == nil {
		o.Filesystem = osfs.New("/")
	}
	if o.DebounceDelay <= 0 {
		o.DebounceDelay = scheduler.DEFAULT_DEBOUNCE_DELAY
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = schemacache.DEFAULT_TTL
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = schemacache.DEFAULT_SWEEP_INTERVAL
	}
	if o.Workers <= 0 {
		o.Workers = scheduler.DefaultWorkerCount()
	}
}
