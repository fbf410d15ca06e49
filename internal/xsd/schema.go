package xsd

import (
	"encoding/xml"
	"sort"
	"strings"
)

// Schema is a compiled schema, it is immutable and safe for concurrent use.
type Schema struct {
	path            string
	targetNamespace string
	elements        map[xml.Name]*ElementDecl
	types           map[xml.Name]Type
}

// Options configures a validation.
type Options struct {
	// If not empty unqualified elements of the document are treated as elements of this namespace.
	DefaultNamespace string
}

func (s *Schema) TargetNamespace() string {
	return s.targetNamespace
}

func (s *Schema) Path() string {
	return s.path
}

// Element returns the global element declaration with the given name.
func (s *Schema) Element(name xml.Name) (*ElementDecl, bool) {
	decl, ok := s.elements[name]
	return decl, ok
}

// GlobalElements returns the non-abstract global element declarations sorted by name.
func (s *Schema) GlobalElements() []*ElementDecl {
	var decls []*ElementDecl
	for _, name := range sortedNames(s.elements) {
		decl := s.elements[name]
		if !decl.Abstract {
			decls = append(decls, decl)
		}
	}
	return decls
}

func (s *Schema) rootDeclaration(name xml.Name, defaultNS string) (*ElementDecl, bool) {
	if decl, ok := s.elements[name]; ok {
		return decl, true
	}
	if name.Space == "" && defaultNS != "" {
		decl, ok := s.elements[xml.Name{Space: defaultNS, Local: name.Local}]
		return decl, ok
	}
	return nil, false
}

// LookupPath returns the declaration of the last element of path, path starting with the root element.
// When a step cannot be resolved through the content models, global declarations are used.
func (s *Schema) LookupPath(path []xml.Name, defaultNS string) (*ElementDecl, bool) {
	if len(path) == 0 {
		return nil, false
	}

	decl, ok := s.rootDeclaration(path[0], defaultNS)
	if !ok {
		return nil, false
	}

	for _, name := range path[1:] {
		child, ok := findChild(decl, name, defaultNS)
		if !ok {
			child, ok = s.rootDeclaration(name, defaultNS)
			if !ok {
				return nil, false
			}
		}
		decl = child
	}
	return decl, true
}

func findChild(parent *ElementDecl, name xml.Name, defaultNS string) (*ElementDecl, bool) {
	complexType, ok := parent.Type.(*ComplexType)
	if !ok || complexType.Content == nil {
		return nil, false
	}

	var found *ElementDecl
	complexType.Content.walkElements(func(decl *ElementDecl) {
		if found != nil {
			return
		}
		if matched, ok := decl.matches(name, defaultNS); ok {
			found = matched
		}
	})
	return found, found != nil
}

// FindElement searches the declarations reachable from the global elements for an element with the given local
// name, global declarations are preferred. The search is breadth-first.
func (s *Schema) FindElement(localName string) (*ElementDecl, bool) {
	names := sortedNames(s.elements)
	for _, name := range names {
		if name.Local == localName {
			return s.elements[name], true
		}
	}

	visited := map[*ElementDecl]bool{}
	queue := make([]*ElementDecl, 0, len(names))
	for _, name := range names {
		queue = append(queue, s.elements[name])
	}

	for len(queue) > 0 {
		decl := queue[0]
		queue = queue[1:]
		if visited[decl] {
			continue
		}
		visited[decl] = true

		if decl.Name.Local == localName {
			return decl, true
		}
		queue = append(queue, decl.ChildElements()...)
	}
	return nil, false
}

// ElementNames returns the formatted names of the declarations, sorted.
func ElementNames(decls []*ElementDecl) []string {
	names := make([]string, 0, len(decls))
	for _, decl := range decls {
		names = append(names, formatName(decl.Name))
	}
	sort.Strings(names)
	return names
}

func (s *Schema) String() string {
	var b strings.Builder
	b.WriteString("schema(")
	b.WriteString(s.path)
	if s.targetNamespace != "" {
		b.WriteString(", ")
		b.WriteString(s.targetNamespace)
	}
	b.WriteString(")")
	return b.String()
}
