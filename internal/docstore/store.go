package docstore

import (
	"errors"
	"fmt"
	"sort"

	"github.com/xmlls/xmlls/internal/locator"
	"github.com/xmlls/xmlls/internal/xmldoc"
)

var (
	ErrDocumentNotOpen     = errors.New("document is not open")
	ErrDocumentAlreadyOpen = errors.New("document is already open")
)

// DocumentState is the state of an open document. It is owned by the goroutine that owns the store.
type DocumentState struct {
	URI     string
	Path    string
	Text    string
	Version int32

	// nil until the schema is resolved, Resolved is reset when the resolution epoch changes.
	Resolved        *locator.ResolvedSchema
	ResolutionEpoch uint64
	// set if the last resolution found no schema.
	NotFound bool

	ValidationPending bool
	Running           bool
	Rerun             bool

	// incremented each time a validation is requested.
	Trigger uint64

	// unique per open, passes of a previous open of the same URI are recognized with it.
	OpenSeq uint64
}

// Store is the table of open documents, it is not safe for concurrent use.
type Store struct {
	documents map[string]*DocumentState
	openSeq   uint64
}

func New() *Store {
	return &Store{documents: map[string]*DocumentState{}}
}

// Open adds a document, if a document with the same URI is already open it is replaced and ErrDocumentAlreadyOpen is returned
// along with the new state.
func (s *Store) Open(uri, path, text string, version int32) (*DocumentState, error) {
	s.openSeq++

	state := &DocumentState{
		URI:     uri,
		Path:    path,
		Text:    text,
		Version: version,
		OpenSeq: s.openSeq,
	}

	_, alreadyOpen := s.documents[uri]
	s.documents[uri] = state

	if alreadyOpen {
		return state, ErrDocumentAlreadyOpen
	}
	return state, nil
}

func (s *Store) Get(uri string) (*DocumentState, bool) {
	state, ok := s.documents[uri]
	return state, ok
}

// ApplyChanges applies the changes in order and sets the version. It returns the updated state and reports whether the version
// was not greater than the previous one; the changes are applied in any case.
func (s *Store) ApplyChanges(uri string, version int32, changes []xmldoc.Change) (state *DocumentState, nonIncreasing bool, err error) {
	state, ok := s.documents[uri]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrDocumentNotOpen, uri)
	}

	nonIncreasing = version <= state.Version
	state.Text = xmldoc.ApplyChanges(state.Text, changes)
	state.Version = version
	return state, nonIncreasing, nil
}

// SetText replaces the text, it is used when a save notification includes the text.
func (s *Store) SetText(uri string, text string) (*DocumentState, error) {
	state, ok := s.documents[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotOpen, uri)
	}
	state.Text = text
	return state, nil
}

// Close removes the document and returns its last state.
func (s *Store) Close(uri string) (*DocumentState, bool) {
	state, ok := s.documents[uri]
	if ok {
		delete(s.documents, uri)
	}
	return state, ok
}

// URIs returns the URIs of the open documents, sorted.
func (s *Store) URIs() []string {
	uris := make([]string, 0, len(s.documents))
	for uri := range s.documents {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

func (s *Store) Len() int {
	return len(s.documents)
}

// UsesSchema reports whether an open document other than except is resolved to the schema at schemaPath.
func (s *Store) UsesSchema(schemaPath string, except string) bool {
	for uri, state := range s.documents {
		if uri != except && state.Resolved != nil && state.Resolved.CanonicalPath == schemaPath {
			return true
		}
	}
	return false
}

// ResetResolutions marks the resolution of all documents as stale, it is called when the locators change.
func (s *Store) ResetResolutions(epoch uint64) {
	for _, state := range s.documents {
		if state.ResolutionEpoch != epoch {
			state.Resolved = nil
			state.NotFound = false
			state.ResolutionEpoch = epoch
		}
	}
}
