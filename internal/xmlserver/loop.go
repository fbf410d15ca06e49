package xmlserver

import (
	"context"
	"errors"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/xmlls/xmlls/internal/diagnostics"
	"github.com/xmlls/xmlls/internal/docstore"
	"github.com/xmlls/xmlls/internal/locator"
	"github.com/xmlls/xmlls/internal/lsp/defines"
	"github.com/xmlls/xmlls/internal/utils"
	"github.com/xmlls/xmlls/internal/xmldoc"
	"github.com/xmlls/xmlls/internal/xsd"
)

type event interface {
	isEvent()
}

type openEvent struct {
	uri, path, text string
	version         int32
}

type changeEvent struct {
	uri     string
	version int32
	changes []xmldoc.Change
}

type saveEvent struct {
	uri  string
	text *string
}

type closeEvent struct {
	uri string
}

type configEvent struct {
	locators []locator.Locator
}

// timerEvent is posted when the debounce delay of a document has elapsed.
type timerEvent struct {
	uri     string
	openSeq uint64
}

type passResult struct {
	uri     string
	openSeq uint64
	version int32
	epoch   uint64

	resolved *locator.ResolvedSchema
	notFound bool

	diagnostics []defines.Diagnostic
	cancelled   bool
}

type snapshotRequest struct {
	uri   string
	reply chan snapshot
}

type snapshot struct {
	found    bool
	text     string
	path     string
	resolved *locator.ResolvedSchema
	notFound bool
	locators []locator.Locator
}

func (openEvent) isEvent()       {}
func (changeEvent) isEvent()     {}
func (saveEvent) isEvent()       {}
func (closeEvent) isEvent()      {}
func (configEvent) isEvent()     {}
func (timerEvent) isEvent()      {}
func (passResult) isEvent()      {}
func (snapshotRequest) isEvent() {}

// post sends an event to the main loop, the event is dropped if the loop has exited.
func (s *Server) post(e event) bool {
	select {
	case s.events <- e:
		return true
	case <-s.done:
		return false
	}
}

func (s *Server) loop() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			return
		case e := <-s.events:
			s.handleEvent(e)
		}
	}
}

func (s *Server) handleEvent(e event) {
	switch e := e.(type) {
	case openEvent:
		state, err := s.store.Open(e.uri, e.path, e.text, e.version)
		if errors.Is(err, docstore.ErrDocumentAlreadyOpen) {
			s.logger.Warn().Str("uri", e.uri).Msg("document opened twice, the previous state is discarded")
		}
		state.ResolutionEpoch = s.epoch
		s.requestValidation(state)
	case changeEvent:
		state, nonIncreasing, err := s.store.ApplyChanges(e.uri, e.version, e.changes)
		if err != nil {
			s.logger.Warn().Err(err).Msg("change ignored")
			return
		}
		if nonIncreasing {
			s.logger.Warn().Str("uri", e.uri).Int32("version", e.version).Msg("non increasing document version")
		}
		state.ValidationPending = true

		uri, openSeq := state.URI, state.OpenSeq
		s.debouncer.Schedule(uri, func() {
			s.post(timerEvent{uri: uri, openSeq: openSeq})
		})
	case saveEvent:
		s.handleSave(e)
	case closeEvent:
		s.debouncer.Cancel(e.uri)
		state, ok := s.store.Close(e.uri)
		if !ok {
			s.logger.Warn().Str("uri", e.uri).Msg("closed document was not open")
			return
		}
		if state.Resolved != nil && !s.store.UsesSchema(state.Resolved.CanonicalPath, e.uri) {
			s.cache.Invalidate(state.Resolved.CanonicalPath)
			s.logger.Debug().Str("schema", state.Resolved.CanonicalPath).Msg("schema released")
		}
	case configEvent:
		s.locators = e.locators
		s.epoch++
		s.store.ResetResolutions(s.epoch)
		s.logger.Info().Int("locators", len(e.locators)).Uint64("epoch", s.epoch).Msg("locators updated")
	case timerEvent:
		state, ok := s.store.Get(e.uri)
		if !ok || state.OpenSeq != e.openSeq {
			return
		}
		s.requestValidation(state)
	case passResult:
		s.handlePassResult(e)
	case snapshotRequest:
		state, ok := s.store.Get(e.uri)
		if !ok {
			e.reply <- snapshot{}
			return
		}
		e.reply <- snapshot{
			found:    true,
			text:     state.Text,
			path:     state.Path,
			resolved: state.Resolved,
			notFound: state.NotFound,
			locators: s.locators,
		}
	}
}

func (s *Server) handleSave(e saveEvent) {
	state, ok := s.store.Get(e.uri)
	if !ok {
		s.logger.Warn().Str("uri", e.uri).Msg("saved document is not open")
		return
	}
	if e.text != nil {
		s.store.SetText(e.uri, *e.text)
	}

	//a schema edited in the editor is recompiled on next use.
	if strings.EqualFold(filepath.Ext(state.Path), locator.SCHEMA_FILE_EXTENSION) && s.cache.Contains(state.Path) {
		s.cache.Invalidate(state.Path)

		for _, uri := range s.store.URIs() {
			other, _ := s.store.Get(uri)
			if uri != e.uri && other.Resolved != nil && other.Resolved.CanonicalPath == state.Path {
				s.debouncer.Cancel(uri)
				s.requestValidation(other)
			}
		}
	}

	s.debouncer.Cancel(e.uri)
	s.requestValidation(state)
}

// requestValidation starts a validation pass, or marks the document for another pass if one is running.
func (s *Server) requestValidation(state *docstore.DocumentState) {
	state.Trigger++
	state.ValidationPending = true

	if state.Running {
		state.Rerun = true
		return
	}
	s.startPass(state)
}

func (s *Server) startPass(state *docstore.DocumentState) {
	state.Running = true
	state.Rerun = false
	state.ValidationPending = false

	in := passInput{
		id:       ulid.Make().String(),
		uri:      state.URI,
		path:     state.Path,
		text:     state.Text,
		version:  state.Version,
		openSeq:  state.OpenSeq,
		epoch:    state.ResolutionEpoch,
		resolved: state.Resolved,
		notFound: state.NotFound,
		locators: s.locators,
	}

	err := s.pool.Submit(func(ctx context.Context) {
		defer func() {
			if e := recover(); e != nil {
				err := utils.ConvertPanicValueToError(e)
				s.logger.Error().Err(err).Str("uri", in.uri).Str("stack", string(debug.Stack())).Msg("validation pass panicked")

				//the document stays validatable: the result is handled like the one of a cancelled pass.
				s.post(passResult{uri: in.uri, openSeq: in.openSeq, version: in.version, epoch: in.epoch, cancelled: true})
			}
		}()
		s.post(s.runPass(ctx, in))
	})
	if err != nil {
		state.Running = false
		s.logger.Error().Err(err).Str("uri", state.URI).Msg("failed to start validation")
	}
}

func (s *Server) handlePassResult(r passResult) {
	state, ok := s.store.Get(r.uri)
	if !ok || state.OpenSeq != r.openSeq {
		s.logger.Debug().Str("uri", r.uri).Msg("result of a closed document discarded")
		return
	}
	state.Running = false

	if !r.cancelled && r.epoch == state.ResolutionEpoch {
		state.Resolved = r.resolved
		state.NotFound = r.notFound
	}

	if state.Rerun {
		s.startPass(state)
		return
	}

	if r.cancelled || r.version != state.Version {
		//a change superseded the pass, its debounced validation will publish.
		return
	}

	if c := s.client.Load(); c != nil {
		c.publisher.Publish(r.uri, r.version, r.diagnostics)
	}
}

type passInput struct {
	id       string
	uri      string
	path     string
	text     string
	version  int32
	openSeq  uint64
	epoch    uint64
	resolved *locator.ResolvedSchema
	notFound bool
	locators []locator.Locator
}

// runPass resolves the schema of the document if necessary and validates the text snapshot, it runs on a worker.
func (s *Server) runPass(ctx context.Context, in passInput) passResult {
	logger := s.logger.With().Str("pass", in.id).Str("uri", in.uri).Int32("version", in.version).Logger()

	result := passResult{
		uri:      in.uri,
		openSeq:  in.openSeq,
		version:  in.version,
		epoch:    in.epoch,
		resolved: in.resolved,
		notFound: in.notFound,
	}

	if result.resolved == nil && !result.notFound {
		resolved, err := s.resolve(ctx, in.uri, in.text, in.locators)
		switch {
		case err == nil:
			result.resolved = resolved
		case ctx.Err() != nil:
			result.cancelled = true
			return result
		default:
			if !errors.Is(err, locator.ErrNotFound) {
				logger.Warn().Err(err).Msg("schema resolution failed")
			}
			result.notFound = true
		}
	}

	if result.resolved == nil {
		logger.Debug().Msg("no schema, checking well-formedness")
		result.diagnostics = diagnostics.FromErrors(in.text, xsd.CheckWellFormed(in.text))
		return result
	}

	schemaPath := result.resolved.CanonicalPath
	logger = logger.With().Str("schema", schemaPath).Logger()

	schema, err := s.cache.GetOrCompile(ctx, schemaPath)
	if err != nil {
		if ctx.Err() != nil {
			result.cancelled = true
			return result
		}
		logger.Warn().Err(err).Msg("schema could not be loaded")

		diags := []defines.Diagnostic{diagnostics.FromSchemaLoadError(in.text, err)}
		result.diagnostics = append(diags, diagnostics.FromErrors(in.text, xsd.CheckWellFormed(in.text))...)
		return result
	}

	result.resolved = withDefaultNamespace(result.resolved, schema)

	errs := schema.Validate(in.text, xsd.Options{DefaultNamespace: result.resolved.DefaultNamespaceOverride})
	result.diagnostics = diagnostics.FromErrors(in.text, errs)

	logger.Debug().Int("errors", len(errs)).Msg("document validated")
	return result
}

// resolve runs the locators, the document is not modified.
func (s *Server) resolve(ctx context.Context, uri string, text string, locators []locator.Locator) (*locator.ResolvedSchema, error) {
	doc, err := locator.NewDocument(uri, text)
	if err != nil {
		return nil, err
	}

	resolved, err := s.resolver.Load().Resolve(ctx, doc, locators)
	if err != nil {
		return nil, err
	}
	return &resolved, nil
}

// withDefaultNamespace returns a copy of resolved with the default namespace override set to the target namespace
// of schema, if the matching rule asked for it.
func withDefaultNamespace(resolved *locator.ResolvedSchema, schema *xsd.Schema) *locator.ResolvedSchema {
	if !resolved.UseDefaultNamespace || resolved.DefaultNamespaceOverride != "" {
		return resolved
	}
	overridden := *resolved
	overridden.DefaultNamespaceOverride = schema.TargetNamespace()
	return &overridden
}
