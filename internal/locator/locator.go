package locator

import (
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-json"
	"github.com/xmlls/xmlls/internal/utils"
)

const (
	ROOT_ELEMENT_KEY  = "rootElement"
	SEARCH_PATHS_KEY  = "searchPaths"
	LOCATION_HINT_KEY = "locationHint"
	PATTERNS_KEY      = "patterns"

	SCHEMA_LOCATORS_KEY = "schemaLocators"
)

var (
	ErrNotFound       = errors.New("no schema found for the document")
	ErrInvalidLocator = errors.New("invalid schema locator")
)

// A Locator is a strategy for finding the schema of a document, it is one of RootElement, LocationHint & PatternSet.
type Locator interface {
	// StageName is the name used in logs.
	StageName() string
	isLocator()
}

// RootElement looks for <search path>/<root element local name>.xsd in each search path.
type RootElement struct {
	SearchPaths []string
}

func (RootElement) StageName() string { return "rootElement" }
func (RootElement) isLocator()        {}

// LocationHint maps the xsi:schemaLocation (or xsi:noNamespaceSchemaLocation) value of the document to a schema using a JSON map file.
type LocationHint struct {
	MapFilePath string
}

func (LocationHint) StageName() string { return "locationHint" }
func (LocationHint) isLocator()        {}

// PatternSet maps document file names to schemas.
type PatternSet struct {
	Rules []PatternRule
}

type PatternRule struct {
	Pattern             string `json:"pattern"`
	SchemaPath          string `json:"path"`
	UseDefaultNamespace bool   `json:"useDefaultNamespace"`
}

func (PatternSet) StageName() string { return "patterns" }
func (PatternSet) isLocator()        {}

// ParseLocators decodes a list of locators, raw is either a list or an object with a schemaLocators property. Valid
// entries are returned even if some entries are invalid, in this case the returned error describes the invalid entries.
func ParseLocators(raw interface{}) ([]Locator, error) {
	if raw == nil {
		return nil, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLocator, err)
	}
	return DecodeLocators(data)
}

// DecodeLocators is like ParseLocators but decodes JSON.
func DecodeLocators(data []byte) ([]Locator, error) {
	var entries []json.RawMessage

	if err := json.Unmarshal(data, &entries); err != nil {
		var object map[string]json.RawMessage
		if json.Unmarshal(data, &object) != nil {
			return nil, fmt.Errorf("%w: the locators should be a list", ErrInvalidLocator)
		}

		list, ok := object[SCHEMA_LOCATORS_KEY]
		if !ok {
			return nil, nil
		}
		if err := json.Unmarshal(list, &entries); err != nil {
			return nil, fmt.Errorf("%w: %s should be a list", ErrInvalidLocator, SCHEMA_LOCATORS_KEY)
		}
	}

	var locators []Locator
	var errs []error

	for i, entry := range entries {
		locator, err := decodeLocator(entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: entry %d: %w", ErrInvalidLocator, i, err))
			continue
		}
		locators = append(locators, locator)
	}

	if len(errs) > 0 {
		return locators, errors.Join(errs...)
	}
	return locators, nil
}

func decodeLocator(entry json.RawMessage) (Locator, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil {
		return nil, errors.New("an entry should be an object")
	}

	var variants []string
	for _, key := range []string{ROOT_ELEMENT_KEY, LOCATION_HINT_KEY, PATTERNS_KEY} {
		if _, ok := fields[key]; ok {
			variants = append(variants, key)
		}
	}

	switch len(variants) {
	case 0:
		return nil, fmt.Errorf("an entry should have one of the properties %s, %s & %s", ROOT_ELEMENT_KEY, LOCATION_HINT_KEY, PATTERNS_KEY)
	case 1:
	default:
		return nil, fmt.Errorf("an entry should have a single locator property, not %v", variants)
	}

	switch variants[0] {
	case ROOT_ELEMENT_KEY:
		var enabled bool
		if err := json.Unmarshal(fields[ROOT_ELEMENT_KEY], &enabled); err != nil || !enabled {
			return nil, fmt.Errorf("%s should be true", ROOT_ELEMENT_KEY)
		}

		var searchPaths []string
		if err := json.Unmarshal(fields[SEARCH_PATHS_KEY], &searchPaths); err != nil || len(searchPaths) == 0 {
			return nil, fmt.Errorf("%s requires a non-empty list of strings in %s", ROOT_ELEMENT_KEY, SEARCH_PATHS_KEY)
		}
		for _, searchPath := range searchPaths {
			if searchPath == "" {
				return nil, fmt.Errorf("%s should not contain empty paths", SEARCH_PATHS_KEY)
			}
		}
		return RootElement{SearchPaths: searchPaths}, nil
	case LOCATION_HINT_KEY:
		var mapFile string
		if err := json.Unmarshal(fields[LOCATION_HINT_KEY], &mapFile); err != nil || mapFile == "" {
			return nil, fmt.Errorf("%s should be the path of a JSON map file", LOCATION_HINT_KEY)
		}
		return LocationHint{MapFilePath: mapFile}, nil
	default:
		var rules []PatternRule
		if err := json.Unmarshal(fields[PATTERNS_KEY], &rules); err != nil || len(rules) == 0 {
			return nil, fmt.Errorf("%s should be a non-empty list of {pattern, path, useDefaultNamespace} objects", PATTERNS_KEY)
		}

		var errs []error
		for i, rule := range rules {
			switch {
			case rule.Pattern == "" || rule.SchemaPath == "":
				errs = append(errs, fmt.Errorf("rule %d: pattern and path are required", i))
			case !doublestar.ValidatePattern(rule.Pattern):
				errs = append(errs, fmt.Errorf("rule %d: invalid pattern %q", i, rule.Pattern))
			}
		}
		if err := utils.CombineErrors(errs...); err != nil {
			return nil, err
		}
		return PatternSet{Rules: rules}, nil
	}
}
