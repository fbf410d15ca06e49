package pathguard

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/go-git/go-billy/v5"
	"github.com/rs/zerolog"
)

const (
	// characters that are never accepted in file names derived from document text or map files. Configured
	// paths only have to be free of control characters.
	FORBIDDEN_PATH_CHARS = "*?[]{}|;&$`<>\"\\"

	FILE_URI_SCHEME = "file"
)

var (
	ErrPathViolation = errors.New("path violation")

	KNOWN_XML_EXTENSIONS = []string{
		".xml", ".xsd", ".xsl", ".xslt", ".wsdl", ".svg", ".xhtml", ".pom", ".plist",
		".csproj", ".vbproj", ".props", ".targets", ".config", ".xaml", ".resx", ".rss", ".atom", ".kml", ".gpx",
	}
)

// A ViolationError is returned when a path is rejected, it always wraps ErrPathViolation.
type ViolationError struct {
	Path   string
	Reason string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%s: %q: %s", ErrPathViolation, e.Path, e.Reason)
}

func (e *ViolationError) Unwrap() error {
	return ErrPathViolation
}

func violation(path, reason string) error {
	return &ViolationError{Path: path, Reason: reason}
}

// Sanitize returns the canonical form of rawPath. If at least one root is passed the canonical path should be
// located inside one of them. Relative paths are made absolute using the working directory. Only control
// characters are rejected, names taken from untrusted text are checked by SanitizeName & Resolve.
func Sanitize(rawPath string, roots ...string) (string, error) {
	if rawPath == "" {
		return "", violation(rawPath, "empty path")
	}

	if err := checkChars(rawPath, ""); err != nil {
		return "", err
	}

	cleaned := filepath.Clean(rawPath)
	if hasTraversalComponent(cleaned) {
		return "", violation(rawPath, "traversal component")
	}

	canonical, err := filepath.Abs(cleaned)
	if err != nil {
		return "", violation(rawPath, err.Error())
	}

	if len(roots) == 0 {
		return canonical, nil
	}

	for _, root := range roots {
		if isWithin(canonical, root) {
			return canonical, nil
		}
	}

	return "", violation(rawPath, "path escapes the allowed directories")
}

// SanitizeName checks a single file name component such as an element name.
func SanitizeName(name string) error {
	switch {
	case name == "":
		return violation(name, "empty name")
	case name == "." || name == "..":
		return violation(name, "traversal component")
	case strings.ContainsAny(name, "/"+string(filepath.Separator)):
		return violation(name, "name contains a path separator")
	case strings.Contains(name, ".."):
		return violation(name, "traversal sequence")
	}
	return checkChars(name, FORBIDDEN_PATH_CHARS)
}

// Join joins a name to root and returns the canonical path, the result is guaranteed to be inside root.
func Join(root, name string) (string, error) {
	if err := SanitizeName(name); err != nil {
		return "", err
	}
	canonicalRoot, err := Sanitize(root)
	if err != nil {
		return "", err
	}
	return Sanitize(filepath.Join(canonicalRoot, name), canonicalRoot)
}

// Resolve resolves a relative path against root and bounds the result to root. Unlike Join
// the relative path may have several components.
func Resolve(root, relativePath string) (string, error) {
	if relativePath == "" {
		return "", violation(relativePath, "empty path")
	}
	if filepath.IsAbs(relativePath) {
		return "", violation(relativePath, "absolute path not allowed")
	}
	if err := checkChars(relativePath, FORBIDDEN_PATH_CHARS); err != nil {
		return "", err
	}
	for _, component := range strings.Split(filepath.ToSlash(relativePath), "/") {
		if component == ".." {
			return "", violation(relativePath, "traversal component")
		}
	}
	canonicalRoot, err := Sanitize(root)
	if err != nil {
		return "", err
	}
	return Sanitize(filepath.Join(canonicalRoot, relativePath), canonicalRoot)
}

// DocumentPath converts a file URI coming from the editor to a canonical path, no root restriction is applied.
func DocumentPath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", violation(uri, "invalid URI: "+err.Error())
	}

	if u.Scheme != FILE_URI_SCHEME {
		return "", violation(uri, "unsupported URI scheme: "+u.Scheme)
	}

	if u.Host != "" && u.Host != "localhost" {
		return "", violation(uri, "remote file URIs are not supported")
	}

	if u.Path == "" {
		return "", violation(uri, "empty path")
	}

	if err := checkChars(u.Path, ""); err != nil {
		return "", err
	}

	return filepath.Clean(filepath.FromSlash(u.Path)), nil
}

// Guard performs the checks that require filesystem access.
type Guard struct {
	fs     billy.Filesystem
	logger zerolog.Logger
}

func NewGuard(fs billy.Filesystem, logger zerolog.Logger) *Guard {
	return &Guard{fs: fs, logger: logger}
}

func (g *Guard) Filesystem() billy.Filesystem {
	return g.fs
}

// Sanitize is like the Sanitize function but also rejects symbolic links whose target escapes the roots.
func (g *Guard) Sanitize(rawPath string, roots ...string) (string, error) {
	canonical, err := Sanitize(rawPath, roots...)
	if err != nil {
		return "", err
	}
	if len(roots) == 0 {
		return canonical, nil
	}
	if err := g.checkSymlink(canonical, roots); err != nil {
		return "", err
	}
	return canonical, nil
}

func (g *Guard) checkSymlink(canonical string, roots []string) error {
	symlinkFS, ok := g.fs.(billy.Symlink)
	if !ok {
		return nil
	}

	info, err := symlinkFS.Lstat(canonical)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return nil
	}

	target, err := symlinkFS.Readlink(canonical)
	if err != nil {
		return violation(canonical, "unreadable symbolic link")
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(canonical), target)
	}
	target = filepath.Clean(target)

	for _, root := range roots {
		if isWithin(target, root) {
			return nil
		}
	}
	return violation(canonical, "symbolic link target escapes the allowed directories")
}

// CheckRegularFile returns an error if path does not exist or is not a regular file.
func (g *Guard) CheckRegularFile(path string) error {
	info, err := g.fs.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}

	if !HasKnownXMLExtension(path) {
		g.logger.Warn().Str("path", path).Msg("file does not have a known XML extension")
	}
	return nil
}

// Exists reports whether path is an existing regular file.
func (g *Guard) Exists(path string) bool {
	return g.CheckRegularFile(path) == nil
}

func HasKnownXMLExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, known := range KNOWN_XML_EXTENSIONS {
		if ext == known {
			return true
		}
	}
	return false
}

func checkChars(path string, forbidden string) error {
	for _, r := range path {
		if r == 0 || unicode.IsControl(r) {
			return violation(path, "control character")
		}
		if r == unicode.ReplacementChar {
			return violation(path, "invalid UTF-8")
		}
		if forbidden != "" && strings.ContainsRune(forbidden, r) {
			return violation(path, fmt.Sprintf("forbidden character %q", r))
		}
	}
	return nil
}

func hasTraversalComponent(path string) bool {
	for _, component := range strings.Split(filepath.ToSlash(path), "/") {
		if component == ".." {
			return true
		}
	}
	return false
}

func isWithin(canonical, root string) bool {
	root, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return false
	}
	if canonical == root {
		return true
	}
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		root += string(filepath.Separator)
	}
	return strings.HasPrefix(canonical, root)
}
