package xmldoc

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	XSI_NAMESPACE              = "http://www.w3.org/2001/XMLSchema-instance"
	XMLNS_NAMESPACE            = "http://www.w3.org/2000/xmlns/"
	SCHEMA_LOCATION_ATTR       = "schemaLocation"
	NO_NS_SCHEMA_LOCATION_ATTR = "noNamespaceSchemaLocation"
)

var (
	ErrMalformed     = errors.New("malformed document")
	ErrNoRootElement = errors.New("document has no root element")
)

// Root describes the start tag of the document element.
type Root struct {
	LocalName string
	Namespace string

	// values of xsi:schemaLocation & xsi:noNamespaceSchemaLocation, empty if absent.
	SchemaLocation            string
	NoNamespaceSchemaLocation string

	// byte offsets of the start tag.
	Start int
	End   int
}

// LocationHint returns the schema location hint of the document, xsi:schemaLocation has priority.
func (r Root) LocationHint() string {
	if r.SchemaLocation != "" {
		return r.SchemaLocation
	}
	return r.NoNamespaceSchemaLocation
}

// ReadRoot reads the document until the start tag of the root element, the rest of the document is not checked.
func ReadRoot(text string) (Root, error) {
	decoder := NewDecoder(strings.NewReader(text))

	for {
		offset := int(decoder.InputOffset())
		token, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Root{}, ErrNoRootElement
			}
			return Root{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		root := Root{
			LocalName: start.Name.Local,
			Namespace: start.Name.Space,
			Start:     offset,
			End:       int(decoder.InputOffset()),
		}

		for _, attr := range start.Attr {
			if attr.Name.Space != XSI_NAMESPACE {
				continue
			}
			switch attr.Name.Local {
			case SCHEMA_LOCATION_ATTR:
				root.SchemaLocation = strings.TrimSpace(attr.Value)
			case NO_NS_SCHEMA_LOCATION_ATTR:
				root.NoNamespaceSchemaLocation = strings.TrimSpace(attr.Value)
			}
		}
		return root, nil
	}
}

// NewDecoder returns a strict decoder for document text. The text of editor buffers is always UTF-8 so
// the declared encoding is ignored.
func NewDecoder(r io.Reader) *xml.Decoder {
	decoder := xml.NewDecoder(r)
	decoder.Strict = true
	decoder.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	return decoder
}
