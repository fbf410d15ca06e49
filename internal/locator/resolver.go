package locator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/tidwall/tinylru"
	"github.com/xmlls/xmlls/internal/pathguard"
	"github.com/xmlls/xmlls/internal/xmldoc"
)

const (
	DEFAULT_MAP_FILE_CACHE_SIZE = 16
	SCHEMA_FILE_EXTENSION       = ".xsd"
)

// ResolvedSchema is the result of a successful resolution.
type ResolvedSchema struct {
	CanonicalPath string

	// set if the rule that matched has useDefaultNamespace, the override itself is the target namespace
	// of the schema and is only known after the schema is compiled.
	UseDefaultNamespace      bool
	DefaultNamespaceOverride string

	// stage name of the locator that matched.
	Locator string
}

// Document is the information about a document that is needed for resolution.
type Document struct {
	URI string

	// empty if the document is not a file (e.g. untitled:Untitled-1), only PatternSet uses it.
	Path string

	// empty if the document has no root element or is malformed before its root element.
	RootLocalName string

	// value of xsi:schemaLocation (or xsi:noNamespaceSchemaLocation), empty if absent.
	SchemaLocationHint string
}

// NewDocument creates a Document from the URI & the text of an editor buffer. An error is returned if uri is an
// invalid file URI, URIs with another scheme are accepted and the document has no path.
func NewDocument(uri string, text string) (Document, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Document{}, fmt.Errorf("%w: invalid URI %q: %w", pathguard.ErrPathViolation, uri, err)
	}

	doc := Document{URI: uri}

	if u.Scheme == pathguard.FILE_URI_SCHEME {
		doc.Path, err = pathguard.DocumentPath(uri)
		if err != nil {
			return Document{}, err
		}
	}

	root, err := xmldoc.ReadRoot(text)
	if err == nil {
		doc.RootLocalName = root.LocalName
		doc.SchemaLocationHint = root.LocationHint()
	}
	return doc, nil
}

// Resolver resolves the schema of documents using an ordered list of locators, it is safe for concurrent use.
type Resolver struct {
	guard  *pathguard.Guard
	logger zerolog.Logger

	// directory relative paths are resolved against.
	baseDir string

	mapFiles tinylru.LRU
}

type schemaMap struct {
	modTime time.Time
	entries map[string]string
}

func NewResolver(guard *pathguard.Guard, baseDir string, logger zerolog.Logger) *Resolver {
	r := &Resolver{
		guard:   guard,
		logger:  logger,
		baseDir: baseDir,
	}
	r.mapFiles.Resize(DEFAULT_MAP_FILE_CACHE_SIZE)
	return r
}

// Resolve tries the locators in order and returns the result of the first one that matches, ErrNotFound is returned
// if no locator matches. Path violations are logged and cause the locator to be skipped.
func (r *Resolver) Resolve(ctx context.Context, doc Document, locators []Locator) (ResolvedSchema, error) {
	for _, locator := range locators {
		if err := ctx.Err(); err != nil {
			return ResolvedSchema{}, err
		}

		logger := r.logger.With().Str("uri", doc.URI).Str("locator", locator.StageName()).Logger()

		var (
			resolved ResolvedSchema
			found    bool
			err      error
		)

		switch l := locator.(type) {
		case RootElement:
			resolved, found, err = r.resolveRootElement(doc, l)
		case LocationHint:
			resolved, found, err = r.resolveLocationHint(doc, l)
		case PatternSet:
			resolved, found, err = r.resolvePatterns(doc, l, logger)
		}

		if err != nil {
			if errors.Is(err, pathguard.ErrPathViolation) {
				logger.Warn().Err(err).Msg("path violation, locator skipped")
			} else {
				logger.Debug().Err(err).Msg("locator failed")
			}
			continue
		}

		if found {
			resolved.Locator = locator.StageName()
			logger.Debug().Str("schema", resolved.CanonicalPath).Msg("schema resolved")
			return resolved, nil
		}
	}

	return ResolvedSchema{}, ErrNotFound
}

// absolute returns the canonical form of a configured path, relative paths are resolved against the base directory.
func (r *Resolver) absolute(configured string) (string, error) {
	if !filepath.IsAbs(configured) && r.baseDir != "" {
		configured = filepath.Join(r.baseDir, configured)
	}
	return pathguard.Sanitize(configured)
}

func (r *Resolver) resolveRootElement(doc Document, l RootElement) (ResolvedSchema, bool, error) {
	if doc.RootLocalName == "" {
		return ResolvedSchema{}, false, nil
	}

	var violations []error

	for _, searchPath := range l.SearchPaths {
		dir, err := r.absolute(searchPath)
		if err != nil {
			violations = append(violations, err)
			continue
		}

		candidate, err := pathguard.Join(dir, doc.RootLocalName+SCHEMA_FILE_EXTENSION)
		if err == nil {
			candidate, err = r.guard.Sanitize(candidate, dir)
		}
		if err != nil {
			violations = append(violations, err)
			continue
		}

		if r.guard.Exists(candidate) {
			return ResolvedSchema{CanonicalPath: candidate}, true, nil
		}
	}

	return ResolvedSchema{}, false, errors.Join(violations...)
}

func (r *Resolver) resolveLocationHint(doc Document, l LocationHint) (ResolvedSchema, bool, error) {
	if doc.SchemaLocationHint == "" {
		return ResolvedSchema{}, false, nil
	}

	mapPath, err := r.absolute(l.MapFilePath)
	if err != nil {
		return ResolvedSchema{}, false, err
	}

	entries, err := r.loadMapFile(mapPath)
	if err != nil {
		return ResolvedSchema{}, false, err
	}

	filename, ok := entries[doc.SchemaLocationHint]
	if !ok {
		//xsi:schemaLocation is a list of namespace & location pairs
		for _, token := range strings.Fields(doc.SchemaLocationHint) {
			if filename, ok = entries[token]; ok {
				break
			}
		}
	}
	if !ok {
		return ResolvedSchema{}, false, nil
	}

	mapDir := filepath.Dir(mapPath)
	target, err := pathguard.Resolve(mapDir, filename)
	if err == nil {
		target, err = r.guard.Sanitize(target, mapDir)
	}
	if err != nil {
		return ResolvedSchema{}, false, err
	}

	if !r.guard.Exists(target) {
		r.logger.Warn().Str("uri", doc.URI).Str("schema", target).Msg("schema of the map file does not exist")
		return ResolvedSchema{}, false, nil
	}
	return ResolvedSchema{CanonicalPath: target}, true, nil
}

// loadMapFile returns the entries of a JSON map file, the result is cached until the file is modified.
func (r *Resolver) loadMapFile(mapPath string) (map[string]string, error) {
	fls := r.guard.Filesystem()

	info, err := fls.Stat(mapPath)
	if err != nil {
		return nil, err
	}

	cached, ok := r.mapFiles.Get(mapPath)

	if ok {
		if m := cached.(*schemaMap); m.modTime.Equal(info.ModTime()) {
			return m.entries, nil
		}
	}

	f, err := fls.Open(mapPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var entries map[string]string
	if err := json.Unmarshal(content, &entries); err != nil {
		return nil, err
	}

	r.mapFiles.Set(mapPath, &schemaMap{modTime: info.ModTime(), entries: entries})

	return entries, nil
}

func (r *Resolver) resolvePatterns(doc Document, l PatternSet, logger zerolog.Logger) (ResolvedSchema, bool, error) {
	slashPath := filepath.ToSlash(doc.Path)
	if doc.Path == "" {
		slashPath = uriPath(doc.URI)
	}
	if slashPath == "" {
		return ResolvedSchema{}, false, nil
	}
	name := path.Base(slashPath)

	for _, rule := range l.Rules {
		subject := name
		if strings.Contains(rule.Pattern, "/") {
			subject = slashPath
			if !strings.HasPrefix(rule.Pattern, "/") {
				subject = strings.TrimPrefix(slashPath, "/")
			}
		}

		matched, err := doublestar.Match(rule.Pattern, subject)
		if err != nil {
			logger.Warn().Err(err).Str("pattern", rule.Pattern).Msg("invalid pattern")
			continue
		}
		if !matched {
			continue
		}

		schemaPath, err := r.absolute(rule.SchemaPath)
		if err != nil {
			return ResolvedSchema{}, false, err
		}
		return ResolvedSchema{CanonicalPath: schemaPath, UseDefaultNamespace: rule.UseDefaultNamespace}, true, nil
	}

	return ResolvedSchema{}, false, nil
}

// uriPath returns the unescaped path of a URI that is not a file URI, untitled:Untitled-1 has the path Untitled-1.
func uriPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	if u.Path != "" {
		return u.Path
	}
	p, err := url.PathUnescape(u.Opaque)
	if err != nil {
		return ""
	}
	return p
}
