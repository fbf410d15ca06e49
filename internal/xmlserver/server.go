package xmlserver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/xmlls/xmlls/internal/completion"
	"github.com/xmlls/xmlls/internal/diagnostics"
	"github.com/xmlls/xmlls/internal/docstore"
	"github.com/xmlls/xmlls/internal/jsonrpc"
	"github.com/xmlls/xmlls/internal/locator"
	"github.com/xmlls/xmlls/internal/lsp"
	"github.com/xmlls/xmlls/internal/lsp/defines"
	"github.com/xmlls/xmlls/internal/pathguard"
	"github.com/xmlls/xmlls/internal/scheduler"
	"github.com/xmlls/xmlls/internal/schemacache"
	"github.com/xmlls/xmlls/internal/xsd"
)

var (
	ErrServerClosed = errors.New("server is closed")
	ErrShuttingDown = errors.New("server is shutting down")
)

// Server validates the open XML documents and answers completion requests. The documents are owned by a single
// goroutine (the main loop), handlers communicate with it through events.
type Server struct {
	opts   Options
	logger zerolog.Logger

	guard      *pathguard.Guard
	cache      *schemacache.Cache
	completion *completion.Provider
	debouncer  *scheduler.Debouncer
	pool       *scheduler.Pool

	// replaced by initialize when the client has a workspace root.
	resolver atomic.Pointer[locator.Resolver]
	client   atomic.Pointer[client]

	shuttingDown atomic.Bool

	// set by initialize if the client supports the dynamic registration of workspace/didChangeConfiguration.
	registerConfiguration atomic.Bool

	events chan event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once

	//owned by the main loop

	store    *docstore.Store
	locators []locator.Locator
	epoch    uint64
}

// client is the peer diagnostics and messages are sent to.
type client struct {
	notifier  diagnostics.Notifier
	publisher *diagnostics.Publisher
}

func New(opts Options) *Server {
	opts.setDefaults()
	logger := opts.Logger

	guard := pathguard.NewGuard(opts.Filesystem, logger)
	cache := schemacache.New(xsd.NewLoader(opts.Filesystem), schemacache.Options{
		TTL:    opts.CacheTTL,
		Logger: logger,
	})

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		opts:       opts,
		logger:     logger,
		guard:      guard,
		cache:      cache,
		completion: completion.NewProvider(cache, logger),
		debouncer:  scheduler.NewDebouncer(opts.DebounceDelay),
		pool:       scheduler.NewPool(ctx, opts.Workers, logger),
		events:     make(chan event, EVENT_QUEUE_SIZE),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		store:      docstore.New(),
		locators:   opts.DefaultLocators,
	}
	s.resolver.Store(locator.NewResolver(guard, opts.WorkDir, logger))
	return s
}

// Start starts the main loop and the background maintenance of the schema cache.
func (s *Server) Start() {
	s.cache.StartSweeper(s.ctx, s.opts.SweepInterval)

	if s.opts.WatchSchemas {
		if err := s.cache.Watch(s.ctx); err != nil {
			s.logger.Warn().Err(err).Msg("schema files will not be watched")
		}
	}

	go s.loop()
}

// Bind sets the peer diagnostics are published to, it is called when the JSON-RPC session is created.
func (s *Server) Bind(notifier diagnostics.Notifier) {
	s.client.Store(&client{
		notifier:  notifier,
		publisher: diagnostics.NewPublisher(notifier, s.logger),
	})
}

// Register sets the handlers of the LSP methods.
func (s *Server) Register(server *lsp.Server) {
	server.OnInitialize(func(ctx context.Context, req *defines.InitializeParams) (*defines.InitializeResult, *defines.InitializeError) {
		return s.handleInitialize(ctx, server, req)
	})
	server.OnInitialized(s.handleInitialized)
	server.OnShutdown(s.handleShutdown)
	server.OnExit(s.handleExit)

	server.OnDidChangeConfiguration(s.handleDidChangeConfiguration)

	server.OnDidOpenTextDocument(s.handleDidOpen)
	server.OnDidChangeTextDocument(s.handleDidChange)
	server.OnDidSaveTextDocument(s.handleDidSave)
	server.OnDidCloseTextDocument(s.handleDidClose)

	server.OnCompletion(s.handleCompletion)
}

// Close stops the main loop, pending validations are cancelled and running passes are waited for.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.debouncer.Stop()
		s.cancel()
		<-s.done
		s.pool.Close()
		s.cache.Close()
	})
}

// Done is closed when the main loop has exited.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Run creates an LSP server configured by config, serves a single session and closes s when the session ends.
func Run(ctx context.Context, opts Options, config lsp.Config) error {
	s := New(opts)
	s.Start()
	defer s.Close()

	config.ServerName = SERVER_NAME
	config.ServerVersion = opts.Version
	config.Logger = s.logger

	openClose := true
	change := defines.TextDocumentSyncKindIncremental
	includeText := true
	config.TextDocumentSync = &defines.TextDocumentSyncOptions{
		OpenClose: &openClose,
		Change:    &change,
		Save:      defines.SaveOptions{IncludeText: &includeText},
	}
	config.CompletionProvider = &defines.CompletionOptions{
		TriggerCharacters: &[]string{"<"},
	}

	onSession := config.OnSession
	config.OnSession = func(rpcServerContext context.Context, session *jsonrpc.Session) error {
		s.Bind(session)
		if onSession != nil {
			return onSession(rpcServerContext, session)
		}
		return nil
	}

	server := lsp.NewServer(ctx, &config)
	s.Register(server)

	s.logger.Info().Str("version", opts.Version).Msg("LSP server configured, start serving")
	return server.Run()
}
