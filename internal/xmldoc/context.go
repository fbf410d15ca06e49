package xmldoc

import (
	"fmt"
	"strings"
)

// Element is an element whose start tag precedes the cursor and that is not closed yet.
type Element struct {
	Prefix    string
	LocalName string
	Namespace string

	// in-scope namespace declarations, the default namespace has the empty prefix.
	Namespaces map[string]string
}

func (e Element) QualifiedName() string {
	if e.Prefix == "" {
		return e.LocalName
	}
	return e.Prefix + ":" + e.LocalName
}

// PrefixFor returns a prefix bound to namespace in the scope of the element, the empty prefix is returned
// if namespace is the default namespace. ok is false if no prefix is bound to namespace.
func (e Element) PrefixFor(namespace string) (prefix string, ok bool) {
	if e.Namespaces[""] == namespace {
		return "", true
	}
	for p, ns := range e.Namespaces {
		if ns == namespace && p != "" {
			if !ok || p < prefix {
				prefix = p
				ok = true
			}
		}
	}
	return
}

// CursorContext is the structural context of a position in a possibly incomplete document.
type CursorContext struct {
	// open elements from the root element to the innermost one.
	Stack []Element

	// the cursor directly follows '<' or '<' followed by a partial name.
	AfterLessThan bool
	PartialName   string

	// the cursor is inside a start tag, after its name.
	InsideStartTag bool
}

func (c *CursorContext) Parent() (Element, bool) {
	if len(c.Stack) == 0 {
		return Element{}, false
	}
	return c.Stack[len(c.Stack)-1], true
}

// ContextAt scans text up to offset and returns the elements that are open at offset. An error wrapping
// ErrMalformed is returned if the scanned part is not well-formed enough to determine the context.
func ContextAt(text string, offset int) (*CursorContext, error) {
	if offset < 0 || offset > len(text) {
		return nil, fmt.Errorf("%w: offset %d out of range", ErrMalformed, offset)
	}

	s := &contextScanner{text: text[:offset]}
	if err := s.scan(); err != nil {
		return nil, err
	}
	return &s.ctx, nil
}

type contextScanner struct {
	text string
	i    int
	ctx  CursorContext
}

func (s *contextScanner) scan() error {
	for s.i < len(s.text) {
		lt := strings.IndexByte(s.text[s.i:], '<')
		if lt < 0 {
			return nil
		}
		s.i += lt
		rest := s.text[s.i:]

		var err error
		switch {
		case strings.HasPrefix(rest, "<!--"):
			err = s.skipUntil("-->", "comment")
		case strings.HasPrefix(rest, "<![CDATA["):
			err = s.skipUntil("]]>", "CDATA section")
		case strings.HasPrefix(rest, "<?"):
			err = s.skipUntil("?>", "processing instruction")
		case strings.HasPrefix(rest, "<!"):
			err = s.skipDeclaration()
		case strings.HasPrefix(rest, "</"):
			err = s.endTag()
		default:
			err = s.startTag()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *contextScanner) skipUntil(end string, construct string) error {
	index := strings.Index(s.text[s.i:], end)
	if index < 0 {
		return fmt.Errorf("%w: cursor inside a %s", ErrMalformed, construct)
	}
	s.i += index + len(end)
	return nil
}

func (s *contextScanner) skipDeclaration() error {
	depth := 0
	var quote byte
	for j := s.i + 2; j < len(s.text); j++ {
		c := s.text[j]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
		case c == '>' && depth <= 0:
			s.i = j + 1
			return nil
		}
	}
	return fmt.Errorf("%w: cursor inside a declaration", ErrMalformed)
}

func (s *contextScanner) endTag() error {
	end := strings.IndexByte(s.text[s.i:], '>')
	if end < 0 {
		//the cursor is inside the end tag.
		s.i = len(s.text)
		return nil
	}

	name := strings.TrimSpace(s.text[s.i+2 : s.i+end])
	s.i += end + 1

	parent, ok := s.ctx.Parent()
	if !ok {
		return fmt.Errorf("%w: unexpected end tag </%s>", ErrMalformed, name)
	}
	if parent.QualifiedName() != name {
		return fmt.Errorf("%w: end tag </%s> does not match <%s>", ErrMalformed, name, parent.QualifiedName())
	}
	s.ctx.Stack = s.ctx.Stack[:len(s.ctx.Stack)-1]
	return nil
}

func (s *contextScanner) startTag() error {
	nameStart := s.i + 1
	nameEnd := nameStart
	for nameEnd < len(s.text) && isNameChar(s.text[nameEnd]) {
		nameEnd++
	}
	name := s.text[nameStart:nameEnd]

	if nameEnd == len(s.text) {
		//cursor directly after '<' or inside the name.
		s.ctx.AfterLessThan = true
		s.ctx.PartialName = name
		s.i = len(s.text)
		return nil
	}

	if name == "" {
		//'<' in text content, the document is not well-formed but the context is still known.
		s.i++
		return nil
	}

	attrs, tagEnd, selfClosing, complete := scanAttributes(s.text, nameEnd)
	if !complete {
		s.ctx.InsideStartTag = true
		s.i = len(s.text)
		return nil
	}
	s.i = tagEnd

	if selfClosing {
		return nil
	}

	element := newElement(name, attrs, s.parentNamespaces())
	s.ctx.Stack = append(s.ctx.Stack, element)
	return nil
}

func (s *contextScanner) parentNamespaces() map[string]string {
	parent, ok := s.ctx.Parent()
	if !ok {
		return nil
	}
	return parent.Namespaces
}

func newElement(qualifiedName string, attrs map[string]string, parentNamespaces map[string]string) Element {
	namespaces := make(map[string]string, len(parentNamespaces))
	for prefix, ns := range parentNamespaces {
		namespaces[prefix] = ns
	}

	for name, value := range attrs {
		switch {
		case name == "xmlns":
			namespaces[""] = value
		case strings.HasPrefix(name, "xmlns:"):
			namespaces[strings.TrimPrefix(name, "xmlns:")] = value
		}
	}

	element := Element{LocalName: qualifiedName, Namespaces: namespaces}
	if prefix, local, ok := strings.Cut(qualifiedName, ":"); ok {
		element.Prefix = prefix
		element.LocalName = local
	}
	element.Namespace = namespaces[element.Prefix]
	return element
}

// scanAttributes scans the attributes of a start tag from i, complete is false if the end of the tag was not reached.
func scanAttributes(text string, i int) (attrs map[string]string, tagEnd int, selfClosing bool, complete bool) {
	attrs = map[string]string{}

	for i < len(text) {
		c := text[i]
		switch {
		case c == '>':
			return attrs, i + 1, false, true
		case c == '/' && i+1 < len(text) && text[i+1] == '>':
			return attrs, i + 2, true, true
		case isNameChar(c):
			nameStart := i
			for i < len(text) && isNameChar(text[i]) {
				i++
			}
			name := text[nameStart:i]

			for i < len(text) && isSpace(text[i]) {
				i++
			}
			if i >= len(text) {
				return attrs, 0, false, false
			}
			if text[i] != '=' {
				continue
			}
			i++
			for i < len(text) && isSpace(text[i]) {
				i++
			}
			if i >= len(text) {
				return attrs, 0, false, false
			}
			quote := text[i]
			if quote != '"' && quote != '\'' {
				continue
			}
			valueEnd := strings.IndexByte(text[i+1:], quote)
			if valueEnd < 0 {
				return attrs, 0, false, false
			}
			attrs[name] = text[i+1 : i+1+valueEnd]
			i += valueEnd + 2
		default:
			i++
		}
	}
	return attrs, 0, false, false
}

func isNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '-' || c == '.' || c == ':' || c >= 0x80
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
