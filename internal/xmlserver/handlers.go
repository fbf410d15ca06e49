package xmlserver

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/xmlls/xmlls/internal/completion"
	"github.com/xmlls/xmlls/internal/jsonrpc"
	"github.com/xmlls/xmlls/internal/locator"
	"github.com/xmlls/xmlls/internal/lsp"
	"github.com/xmlls/xmlls/internal/lsp/defines"
	"github.com/xmlls/xmlls/internal/pathguard"
	"github.com/xmlls/xmlls/internal/xmldoc"
)

const (
	SHOW_MESSAGE_METHOD        = "window/showMessage"
	REGISTER_CAPABILITY_METHOD = "client/registerCapability"
	DID_CHANGE_CONFIG_METHOD   = "workspace/didChangeConfiguration"
	SETTINGS_SECTION           = "xmlls"
)

func (s *Server) handleInitialize(ctx context.Context, server *lsp.Server, req *defines.InitializeParams) (*defines.InitializeResult, *defines.InitializeError) {
	baseDir := s.opts.WorkDir

	switch {
	case req.RootUri != nil && *req.RootUri != "":
		rootPath, err := pathguard.DocumentPath(string(*req.RootUri))
		if err != nil {
			s.logger.Warn().Err(err).Str("rootUri", string(*req.RootUri)).Msg("invalid workspace root")
		} else {
			baseDir = rootPath
		}
	case req.RootPath != nil && *req.RootPath != "":
		if rootPath, err := pathguard.Sanitize(*req.RootPath); err == nil {
			baseDir = rootPath
		}
	}

	s.resolver.Store(locator.NewResolver(s.guard, baseDir, s.logger))
	s.registerConfiguration.Store(supportsConfigurationRegistration(req.Capabilities))
	s.logger.Info().Str("baseDir", baseDir).Msg("initialize")

	locators, err := locator.ParseLocators(req.InitializationOptions)
	if err != nil {
		s.reportInvalidLocators(err)
	}
	if locators == nil {
		locators = s.opts.DefaultLocators
	}
	s.post(configEvent{locators: locators})

	return server.BuiltinInitializeResult(ctx, req), nil
}

// handleInitialized registers for configuration changes if the client only sends them to servers that
// registered dynamically.
func (s *Server) handleInitialized(ctx context.Context, req *defines.InitializedParams) error {
	if !s.registerConfiguration.Load() {
		return nil
	}

	session := jsonrpc.GetSession(ctx)
	if session == nil {
		return nil
	}

	id, err := session.SendRequestWithParams(REGISTER_CAPABILITY_METHOD, defines.RegistrationParams{
		Registrations: []defines.Registration{
			{Id: ulid.Make().String(), Method: DID_CHANGE_CONFIG_METHOD, RegisterOptions: map[string]interface{}{"section": SETTINGS_SECTION}},
		},
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to register for configuration changes")
		return nil
	}
	s.logger.Debug().Str("request", id).Msg("registration for configuration changes sent")
	return nil
}

// supportsConfigurationRegistration reports whether capabilities has
// workspace.didChangeConfiguration.dynamicRegistration set to true.
func supportsConfigurationRegistration(capabilities interface{}) bool {
	value := capabilities
	for _, key := range []string{"workspace", "didChangeConfiguration", "dynamicRegistration"} {
		m, ok := value.(map[string]interface{})
		if !ok {
			return false
		}
		value = m[key]
	}
	dynamic, _ := value.(bool)
	return dynamic
}

func (s *Server) handleShutdown(ctx context.Context, req *defines.NoParams) error {
	if !s.shuttingDown.CompareAndSwap(false, true) {
		return shuttingDownError()
	}
	s.logger.Info().Msg("shutdown requested")
	s.debouncer.Stop()
	return nil
}

func (s *Server) handleExit(ctx context.Context, req *defines.NoParams) error {
	s.logger.Info().Msg("exit")
	if session := jsonrpc.GetSession(ctx); session != nil {
		session.Close()
	}
	return nil
}

func (s *Server) handleDidChangeConfiguration(ctx context.Context, req *defines.DidChangeConfigurationParams) error {
	if s.shuttingDown.Load() {
		return ErrShuttingDown
	}

	settings, ok := req.Settings.(map[string]interface{})
	if !ok {
		return nil
	}

	raw, ok := settings[locator.SCHEMA_LOCATORS_KEY]
	if section, isMap := settings[SETTINGS_SECTION].(map[string]interface{}); isMap {
		raw, ok = section[locator.SCHEMA_LOCATORS_KEY]
	}
	if !ok {
		return nil
	}

	locators, err := locator.ParseLocators(raw)
	if err != nil {
		s.reportInvalidLocators(err)
	}
	s.post(configEvent{locators: locators})
	return nil
}

func (s *Server) handleDidOpen(ctx context.Context, req *defines.DidOpenTextDocumentParams) error {
	if s.shuttingDown.Load() {
		return ErrShuttingDown
	}

	uri := string(req.TextDocument.Uri)
	path, err := pathguard.DocumentPath(uri)
	if err != nil {
		s.logger.Debug().Err(err).Str("uri", uri).Msg("document is not a local file, patterns are matched against its URI")
	}

	s.post(openEvent{
		uri:     uri,
		path:    path,
		text:    req.TextDocument.Text,
		version: int32(req.TextDocument.Version),
	})
	return nil
}

func (s *Server) handleDidChange(ctx context.Context, req *defines.DidChangeTextDocumentParams) error {
	if s.shuttingDown.Load() {
		return ErrShuttingDown
	}

	changes := make([]xmldoc.Change, 0, len(req.ContentChanges))
	for _, c := range req.ContentChanges {
		change := xmldoc.Change{Text: c.Text}
		if c.Range != nil {
			change.Range = &xmldoc.Range{
				Start: xmldoc.Position{Line: int(c.Range.Start.Line), Character: int(c.Range.Start.Character)},
				End:   xmldoc.Position{Line: int(c.Range.End.Line), Character: int(c.Range.End.Character)},
			}
		}
		changes = append(changes, change)
	}

	s.post(changeEvent{
		uri:     string(req.TextDocument.Uri),
		version: int32(req.TextDocument.Version),
		changes: changes,
	})
	return nil
}

func (s *Server) handleDidSave(ctx context.Context, req *defines.DidSaveTextDocumentParams) error {
	if s.shuttingDown.Load() {
		return ErrShuttingDown
	}
	s.post(saveEvent{uri: string(req.TextDocument.Uri), text: req.Text})
	return nil
}

func (s *Server) handleDidClose(ctx context.Context, req *defines.DidCloseTextDocumentParams) error {
	s.post(closeEvent{uri: string(req.TextDocument.Uri)})
	return nil
}

func (s *Server) handleCompletion(ctx context.Context, req *defines.CompletionParams) (*[]defines.CompletionItem, error) {
	if s.shuttingDown.Load() {
		return nil, shuttingDownError()
	}

	empty := &[]defines.CompletionItem{}
	uri := string(req.TextDocument.Uri)
	logger := s.logger.With().Str("uri", uri).Logger()

	snap, ok := s.snapshot(ctx, uri)
	if !ok {
		logger.Debug().Msg("completion requested for a document that is not open")
		return empty, nil
	}

	resolved := snap.resolved
	if resolved == nil && !snap.notFound {
		//the first validation of the document has not finished yet.
		resolved, _ = s.resolve(ctx, uri, snap.text, snap.locators)
	}
	if resolved != nil && resolved.UseDefaultNamespace && resolved.DefaultNamespaceOverride == "" {
		if schema, err := s.cache.GetOrCompile(ctx, resolved.CanonicalPath); err == nil {
			resolved = withDefaultNamespace(resolved, schema)
		}
	}

	items, err := s.completion.Complete(ctx, completion.Request{
		Text:      snap.text,
		Line:      int(req.Position.Line),
		Character: int(req.Position.Character),
		Resolved:  resolved,
	})
	if err != nil {
		logger.Debug().Err(err).Msg("no completion")
		return empty, nil
	}

	result := completion.ToLSP(items)
	return &result, nil
}

// snapshot asks the main loop for the state of a document.
func (s *Server) snapshot(ctx context.Context, uri string) (snapshot, bool) {
	reply := make(chan snapshot, 1)
	if !s.post(snapshotRequest{uri: uri, reply: reply}) {
		return snapshot{}, false
	}

	select {
	case snap := <-reply:
		return snap, snap.found
	case <-ctx.Done():
		return snapshot{}, false
	case <-s.done:
		return snapshot{}, false
	}
}

func (s *Server) reportInvalidLocators(err error) {
	s.logger.Warn().Err(err).Msg("invalid schema locators are ignored")
	s.showMessage(defines.MessageTypeWarning, fmt.Sprintf("%s: some schema locators are invalid and ignored: %s", SERVER_NAME, err))
}

func (s *Server) showMessage(messageType defines.MessageType, message string) {
	c := s.client.Load()
	if c == nil {
		return
	}
	err := c.notifier.NotifyWithParams(SHOW_MESSAGE_METHOD, defines.ShowMessageParams{
		Type:    messageType,
		Message: message,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to show message")
	}
}

func shuttingDownError() error {
	return jsonrpc.ResponseError{
		Code:    jsonrpc.InvalidRequestCode,
		Message: ErrShuttingDown.Error(),
	}
}
