package xsd

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"golang.org/x/net/html/charset"
)

const DEFAULT_MAX_SCHEMA_DOCUMENTS = 256

// A Loader loads and compiles schemas from a filesystem, it is safe for concurrent use.
type Loader struct {
	fs           billy.Filesystem
	maxDocuments int
}

func NewLoader(fs billy.Filesystem) *Loader {
	return &Loader{fs: fs, maxDocuments: DEFAULT_MAX_SCHEMA_DOCUMENTS}
}

// Load parses the schema document at path as well as the documents it includes or imports, and compiles them.
// Imports & includes referencing remote locations are ignored.
func (l *Loader) Load(path string) (*Schema, error) {
	c := newCompiler()

	main, err := l.loadDocument(c, path, "", false)
	if err != nil {
		return nil, err
	}
	c.main = main

	return c.compile()
}

func (l *Loader) loadDocument(c *compiler, path string, includingNamespace string, include bool) (*document, error) {
	key := path
	if include {
		key += "#" + includingNamespace
	}
	if doc, ok := c.documents[key]; ok {
		return doc, nil
	}

	if len(c.documents) >= l.maxDocuments {
		return nil, &SchemaError{Path: path, Message: ErrTooManyDocuments.Error()}
	}

	root, err := l.parseDocument(path)
	if err != nil {
		return nil, err
	}

	if root.name.Space != XSD_NAMESPACE || root.name.Local != "schema" {
		return nil, &SchemaError{Path: path, Line: root.line, Message: fmt.Sprintf("root element is %s, not xs:schema", formatName(root.name))}
	}

	doc := &document{
		path:            path,
		root:            root,
		targetNamespace: root.attr("targetNamespace"),
	}
	doc.elementFormQualified = root.attr("elementFormDefault") == "qualified"
	doc.attributeFormQualified = root.attr("attributeFormDefault") == "qualified"

	if include {
		switch {
		case doc.targetNamespace == "":
			//chameleon include
			doc.targetNamespace = includingNamespace
		case doc.targetNamespace != includingNamespace:
			return nil, &SchemaError{
				Path:    path,
				Line:    root.line,
				Message: fmt.Sprintf("included schema has target namespace %q instead of %q", doc.targetNamespace, includingNamespace),
			}
		}
	}

	c.documents[key] = doc
	root.setDocument(doc)

	for _, child := range root.children {
		if child.name.Space != XSD_NAMESPACE {
			continue
		}

		switch child.name.Local {
		case "include", "import":
			location := child.attr("schemaLocation")
			if location == "" || isRemoteLocation(location) {
				continue
			}
			location = resolveLocation(path, location)
			if _, err := l.loadDocument(c, location, doc.targetNamespace, child.name.Local == "include"); err != nil {
				return nil, err
			}
		case "redefine", "override":
			return nil, &SchemaError{Path: path, Line: child.line, Message: fmt.Sprintf("%s: xs:%s", ErrUnsupportedSchema, child.name.Local)}
		case "element", "complexType", "simpleType", "group", "attributeGroup", "attribute":
			name := xml.Name{Space: doc.targetNamespace, Local: child.attr("name")}
			if name.Local == "" {
				return nil, &SchemaError{Path: path, Line: child.line, Message: fmt.Sprintf("global xs:%s without a name", child.name.Local)}
			}
			c.register(child, name)
		}
	}

	return doc, nil
}

func (l *Loader) parseDocument(path string) (*node, error) {
	f, err := l.fs.Open(path)
	if err != nil {
		return nil, &SchemaError{Path: path, Message: err.Error()}
	}
	defer f.Close()

	decoder := xml.NewDecoder(f)
	decoder.CharsetReader = charset.NewReaderLabel

	var stack []*node
	var root *node

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line, _ := decoder.InputPos()
			return nil, &SchemaError{Path: path, Line: line, Message: err.Error()}
		}

		switch t := token.(type) {
		case xml.StartElement:
			line, _ := decoder.InputPos()
			n := &node{name: t.Name, line: line}

			var parentScope map[string]string
			if len(stack) > 0 {
				parentScope = stack[len(stack)-1].scope
			}
			n.scope = parentScope

			for _, attr := range t.Attr {
				switch {
				case attr.Name.Space == "xmlns":
					n.declare(attr.Name.Local, attr.Value)
				case attr.Name.Space == "" && attr.Name.Local == "xmlns":
					n.declare("", attr.Value)
				default:
					n.attrs = append(n.attrs, attr)
				}
			}

			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		}
	}

	if root == nil {
		return nil, &SchemaError{Path: path, Message: "empty schema document"}
	}
	return root, nil
}

type document struct {
	path                   string
	root                   *node
	targetNamespace        string
	elementFormQualified   bool
	attributeFormQualified bool
}

// node is an element of a schema document.
type node struct {
	name     xml.Name
	attrs    []xml.Attr
	scope    map[string]string
	children []*node
	line     int
	doc      *document
}

func (n *node) attr(local string) string {
	for _, attr := range n.attrs {
		if attr.Name.Space == "" && attr.Name.Local == local {
			return attr.Value
		}
	}
	return ""
}

func (n *node) hasAttr(local string) bool {
	for _, attr := range n.attrs {
		if attr.Name.Space == "" && attr.Name.Local == local {
			return true
		}
	}
	return false
}

func (n *node) optionalAttr(local string) *string {
	for _, attr := range n.attrs {
		if attr.Name.Space == "" && attr.Name.Local == local {
			value := attr.Value
			return &value
		}
	}
	return nil
}

func (n *node) declare(prefix, namespace string) {
	scope := make(map[string]string, len(n.scope)+1)
	for p, ns := range n.scope {
		scope[p] = ns
	}
	scope[prefix] = namespace
	n.scope = scope
}

func (n *node) setDocument(doc *document) {
	n.doc = doc
	for _, child := range n.children {
		child.setDocument(doc)
	}
}

// xsdChildren returns the children in the XSD namespace, annotations excluded.
func (n *node) xsdChildren() []*node {
	var children []*node
	for _, child := range n.children {
		if child.name.Space == XSD_NAMESPACE && child.name.Local != "annotation" {
			children = append(children, child)
		}
	}
	return children
}

func (n *node) child(local string) *node {
	for _, child := range n.xsdChildren() {
		if child.name.Local == local {
			return child
		}
	}
	return nil
}

// resolveQName resolves a QName-valued attribute of the node.
func (n *node) resolveQName(value string) (xml.Name, error) {
	value = strings.TrimSpace(value)
	prefix, local, ok := strings.Cut(value, ":")
	if !ok {
		return xml.Name{Space: n.scope[""], Local: value}, nil
	}
	if prefix == "xml" {
		return xml.Name{Space: XML_NAMESPACE, Local: local}, nil
	}
	ns, ok := n.scope[prefix]
	if !ok {
		return xml.Name{}, fmt.Errorf("undeclared namespace prefix %q in %q", prefix, value)
	}
	return xml.Name{Space: ns, Local: local}, nil
}

func (n *node) errorf(format string, args ...any) error {
	path := ""
	if n.doc != nil {
		path = n.doc.path
	}
	return &SchemaError{Path: path, Line: n.line, Message: fmt.Sprintf(format, args...)}
}

func isRemoteLocation(location string) bool {
	return strings.Contains(location, "://") && !strings.HasPrefix(location, "file://")
}

func resolveLocation(includingPath, location string) string {
	location = strings.TrimPrefix(location, "file://")
	if filepath.IsAbs(location) {
		return filepath.Clean(location)
	}
	return filepath.Join(filepath.Dir(includingPath), filepath.FromSlash(location))
}

func formatName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return "{" + name.Space + "}" + name.Local
}
