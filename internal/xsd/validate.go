package xsd

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xmlls/xmlls/internal/xmldoc"
)

// Validate validates the document text and returns the errors in document order, at most MAX_ERRORS
// errors are returned. Validation stops at the first well-formedness error.
func (s *Schema) Validate(text string, opts Options) []Error {
	v := newValidator(s, text, opts)
	v.run()
	return v.errs
}

// CheckWellFormed returns the well-formedness errors of the document, it is used when no schema is available.
func CheckWellFormed(text string) []Error {
	v := newValidator(nil, text, Options{})
	v.run()
	return v.errs
}

type validator struct {
	schema *Schema
	text   string
	opts   Options

	lineStarts []int
	errs       []Error

	stack  []*frame
	scopes []map[string]string

	rootSeen   bool
	rootClosed bool
}

type frame struct {
	name  xml.Name
	start int

	decl *ElementDecl
	typ  Type

	matcher       *contentMatcher
	contentFailed bool
	textReported  bool

	// the subtree is not validated.
	skip bool
	// children are validated only if a global declaration exists.
	lax bool

	nilled      bool
	hasChildren bool
	text        strings.Builder
}

func newValidator(schema *Schema, text string, opts Options) *validator {
	return &validator{
		schema: schema,
		text:   text,
		opts:   opts,
	}
}

func (v *validator) run() {
	decoder := xmldoc.NewDecoder(strings.NewReader(v.text))

	for len(v.errs) < MAX_ERRORS {
		offset := int(decoder.InputOffset())
		token, err := decoder.Token()

		if err != nil {
			if errors.Is(err, io.EOF) {
				if !v.rootSeen {
					v.report(0, ErrNoRoot, "Document is empty")
				}
				return
			}
			v.syntaxError(int(decoder.InputOffset()), err)
			return
		}

		switch t := token.(type) {
		case xml.StartElement:
			if !v.startElement(t, offset) {
				return
			}
		case xml.EndElement:
			v.endElement()
		case xml.CharData:
			if !v.charData(t, offset) {
				return
			}
		}
	}
}

func (v *validator) syntaxError(offset int, err error) {
	message := err.Error()
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		message = syntaxErr.Msg
	}
	v.report(offset, ErrXMLParse, message)
}

func (v *validator) report(offset int, code ErrorCode, message string) {
	if len(v.errs) >= MAX_ERRORS {
		return
	}
	line, column := v.position(offset)
	v.errs = append(v.errs, Error{
		Line:    line,
		Column:  column,
		Code:    code,
		Message: message,
	})
}

func (v *validator) reportf(offset int, code ErrorCode, format string, args ...any) {
	v.report(offset, code, fmt.Sprintf(format, args...))
}

// position converts a byte offset to a 1-based line and a 1-based column counted in characters.
func (v *validator) position(offset int) (line, column int) {
	if v.lineStarts == nil {
		v.lineStarts = []int{0}
		for i := 0; i < len(v.text); i++ {
			switch v.text[i] {
			case '\n':
				v.lineStarts = append(v.lineStarts, i+1)
			case '\r':
				if i+1 < len(v.text) && v.text[i+1] == '\n' {
					i++
				}
				v.lineStarts = append(v.lineStarts, i+1)
			}
		}
	}

	if offset > len(v.text) {
		offset = len(v.text)
	}

	lineIndex := 0
	for lineIndex+1 < len(v.lineStarts) && v.lineStarts[lineIndex+1] <= offset {
		lineIndex++
	}
	return lineIndex + 1, utf8.RuneCountInString(v.text[v.lineStarts[lineIndex]:offset]) + 1
}

// namespaces

func (v *validator) pushScope(attrs []xml.Attr) {
	scope := map[string]string{}
	for _, attr := range attrs {
		switch {
		case attr.Name.Space == "xmlns":
			scope[attr.Name.Local] = attr.Value
		case attr.Name.Space == "" && attr.Name.Local == "xmlns":
			scope[""] = attr.Value
		}
	}
	v.scopes = append(v.scopes, scope)
}

func (v *validator) lookupPrefix(prefix string) (string, bool) {
	if prefix == "xml" {
		return XML_NAMESPACE, true
	}
	for i := len(v.scopes) - 1; i >= 0; i-- {
		if namespace, ok := v.scopes[i][prefix]; ok {
			return namespace, true
		}
	}
	return "", false
}

// isBoundNamespace reports whether a namespace returned by the decoder is a declared namespace, the
// decoder leaves the prefix in place of the namespace when the prefix is not declared.
func (v *validator) isBoundNamespace(namespace string) bool {
	if namespace == "" || namespace == XML_NAMESPACE {
		return true
	}
	for i := len(v.scopes) - 1; i >= 0; i-- {
		for _, declared := range v.scopes[i] {
			if declared == namespace {
				return true
			}
		}
	}
	return false
}

func isNamespaceDeclaration(name xml.Name) bool {
	return name.Space == "xmlns" || (name.Space == "" && name.Local == "xmlns")
}

// elements

func (v *validator) startElement(start xml.StartElement, offset int) bool {
	v.pushScope(start.Attr)

	if !v.isBoundNamespace(start.Name.Space) {
		v.reportf(offset, ErrXMLParse, "Namespace prefix %s on %s is not defined", start.Name.Space, start.Name.Local)
	}
	for _, attr := range start.Attr {
		if !isNamespaceDeclaration(attr.Name) && !v.isBoundNamespace(attr.Name.Space) {
			v.reportf(offset, ErrXMLParse, "Namespace prefix %s for %s on %s is not defined", attr.Name.Space, attr.Name.Local, start.Name.Local)
		}
	}

	if len(v.stack) == 0 {
		if v.rootClosed {
			v.report(offset, ErrExtraContentAfterRootElem, "Extra content at the end of the document")
			return false
		}
		v.rootSeen = true
		v.startRoot(start, offset)
		return true
	}

	parent := v.stack[len(v.stack)-1]
	parent.hasChildren = true

	if parent.skip || v.schema == nil {
		v.pushSkip(start.Name, offset)
		return true
	}

	if parent.typ == nil {
		//lax processing of an element without declaration
		if decl, ok := v.schema.rootDeclaration(start.Name, v.opts.DefaultNamespace); ok {
			v.enterElement(start, offset, decl)
		} else {
			v.push(&frame{name: start.Name, start: offset, lax: true})
		}
		return true
	}

	name := formatName(start.Name)

	switch parentType := parent.typ.(type) {
	case *SimpleType:
		v.reportElementInSimpleContent(parent)
		v.pushSkip(start.Name, offset)
		return true
	case *ComplexType:
		if parentType.Kind == SimpleContent {
			v.reportElementInSimpleContent(parent)
			v.pushSkip(start.Name, offset)
			return true
		}

		if parent.matcher == nil {
			v.reportf(offset, ErrUnexpectedElement, "Element '%s': This element is not expected.", name)
			parent.contentFailed = true
			v.pushSkip(start.Name, offset)
			return true
		}

		if parent.contentFailed {
			v.enterFallback(start, offset, parent)
			return true
		}

		expected := parent.matcher.expected()
		term, decl := parent.matcher.next(start.Name)
		if term == nil {
			v.reportf(offset, ErrUnexpectedElement, "Element '%s': This element is not expected.%s", name, expectedSuffix(expected))
			parent.contentFailed = true
			v.enterFallback(start, offset, parent)
			return true
		}

		if term.Kind == AnyParticle {
			v.enterWildcard(start, offset, term.Wildcard)
			return true
		}
		v.enterElement(start, offset, decl)
	}
	return true
}

func (v *validator) reportElementInSimpleContent(parent *frame) {
	if parent.contentFailed {
		return
	}
	parent.contentFailed = true
	v.reportf(parent.start, ErrSimpleTypeHasElement, "Element '%s': Element content is not allowed, because the type definition is simple.", formatName(parent.name))
}

func (v *validator) startRoot(start xml.StartElement, offset int) {
	if v.schema == nil {
		v.pushSkip(start.Name, offset)
		return
	}

	decl, ok := v.schema.rootDeclaration(start.Name, v.opts.DefaultNamespace)
	if !ok {
		v.reportf(offset, ErrRootNotDeclared, "Element '%s': No matching global declaration available for the validation root.", formatName(start.Name))
		v.pushSkip(start.Name, offset)
		return
	}
	v.enterElement(start, offset, decl)
}

// enterFallback validates an element that was not accepted by the content model of its parent, the
// declaration is searched among the declarations of the parent's content and the global declarations.
func (v *validator) enterFallback(start xml.StartElement, offset int, parent *frame) {
	if parent.decl != nil {
		if decl, ok := findChild(parent.decl, start.Name, v.opts.DefaultNamespace); ok {
			v.enterElement(start, offset, decl)
			return
		}
	}
	if decl, ok := v.schema.rootDeclaration(start.Name, v.opts.DefaultNamespace); ok && !decl.Abstract {
		v.enterElement(start, offset, decl)
		return
	}
	v.pushSkip(start.Name, offset)
}

func (v *validator) enterWildcard(start xml.StartElement, offset int, wildcard *Wildcard) {
	if wildcard.ProcessContents == Skip {
		v.pushSkip(start.Name, offset)
		return
	}

	decl, ok := v.schema.rootDeclaration(start.Name, v.opts.DefaultNamespace)
	if ok {
		v.enterElement(start, offset, decl)
		return
	}

	if wildcard.ProcessContents == Strict {
		v.reportf(offset, ErrWildcardNotDeclared, "Element '%s': No matching global element declaration available, but demanded by the strict wildcard.", formatName(start.Name))
		v.pushSkip(start.Name, offset)
		return
	}
	v.push(&frame{name: start.Name, start: offset, lax: true})
}

func (v *validator) enterElement(start xml.StartElement, offset int, decl *ElementDecl) {
	name := formatName(start.Name)

	if decl.Abstract {
		v.reportf(offset, ErrElementAbstract, "Element '%s': The element declaration is abstract.", name)
		v.pushSkip(start.Name, offset)
		return
	}

	f := &frame{name: start.Name, start: offset, decl: decl, typ: decl.Type}

	for _, attr := range start.Attr {
		if attr.Name.Space != XSI_NAMESPACE {
			continue
		}
		switch attr.Name.Local {
		case "type":
			typ, ok := v.xsiType(offset, name, attr.Value, decl.Type)
			if !ok {
				v.pushSkip(start.Name, offset)
				return
			}
			f.typ = typ
		case "nil":
			value := strings.TrimSpace(attr.Value)
			if value != "true" && value != "1" {
				continue
			}
			if !decl.Nillable {
				v.reportf(offset, ErrElementNotNillable, "Element '%s', attribute '{%s}nil': The element is not 'nillable'.", name, XSI_NAMESPACE)
				continue
			}
			f.nilled = true
		}
	}

	if complexType, ok := f.typ.(*ComplexType); ok {
		if complexType.Abstract {
			v.reportf(offset, ErrElementAbstract, "Element '%s': The type definition is abstract.", name)
			v.pushSkip(start.Name, offset)
			return
		}
		if complexType.model != nil {
			f.matcher = newContentMatcher(complexType.model, v.opts.DefaultNamespace)
		}
	}

	v.checkAttributes(f, start.Attr, offset)
	v.push(f)
}

func (v *validator) xsiType(offset int, elementName string, value string, declared Type) (Type, bool) {
	value = strings.TrimSpace(value)
	prefix, local, found := strings.Cut(value, ":")
	if !found {
		prefix, local = "", value
	}

	namespace, ok := v.lookupPrefix(prefix)
	if !ok && prefix != "" {
		v.reportf(offset, ErrXsiTypeInvalid, "Element '%s', attribute '{%s}type': The QName value '%s' has no corresponding namespace declaration in scope.", elementName, XSI_NAMESPACE, value)
		return nil, false
	}

	typ := v.schema.lookupType(xml.Name{Space: namespace, Local: local})
	if typ == nil && prefix == "" && v.opts.DefaultNamespace != "" {
		typ = v.schema.lookupType(xml.Name{Space: v.opts.DefaultNamespace, Local: local})
	}
	if typ == nil {
		v.reportf(offset, ErrXsiTypeInvalid, "Element '%s', attribute '{%s}type': The QName value '%s' of the xsi type attribute does not resolve to a type definition.", elementName, XSI_NAMESPACE, value)
		return nil, false
	}

	if !derivesFrom(typ, declared) {
		v.reportf(offset, ErrXsiTypeInvalid, "Element '%s', attribute '{%s}type': The type definition '%s', specified by xsi:type, is blocked or not validly derived from the type definition of the element declaration.", elementName, XSI_NAMESPACE, displayTypeName(typ))
		return nil, false
	}
	return typ, true
}

func (s *Schema) lookupType(name xml.Name) Type {
	if name.Space == XSD_NAMESPACE {
		if name.Local == "anyType" {
			return anyType
		}
		if builtin, ok := builtinTypes[name.Local]; ok {
			return builtin
		}
		return nil
	}
	return s.types[name]
}

func derivesFrom(t Type, base Type) bool {
	if base == nil || base == Type(anyType) {
		return true
	}

	current := t
	for current != nil {
		if current == base {
			return true
		}
		switch typed := current.(type) {
		case *ComplexType:
			current = typed.base
		case *SimpleType:
			if typed.Base == nil {
				return base == Type(anySimpleType)
			}
			current = typed.Base
		default:
			return false
		}
	}
	return false
}

func (v *validator) checkAttributes(f *frame, attrs []xml.Attr, offset int) {
	elementName := formatName(f.name)
	present := map[xml.Name]bool{}

	complexType, _ := f.typ.(*ComplexType)

	for _, attr := range attrs {
		if isNamespaceDeclaration(attr.Name) || attr.Name.Space == XSI_NAMESPACE {
			continue
		}
		present[attr.Name] = true
		attrName := formatName(attr.Name)

		if complexType == nil {
			v.reportf(offset, ErrSimpleTypeHasAttr, "Element '%s', attribute '%s': The attribute '%s' is not allowed.", elementName, attrName, attrName)
			continue
		}

		use := complexType.attribute(attr.Name)
		if use != nil && !use.Prohibited {
			v.checkAttributeValue(offset, elementName, attrName, use, attr.Value)
			continue
		}

		if use == nil && complexType.AnyAttribute != nil && complexType.AnyAttribute.allows(attr.Name.Space) {
			continue
		}
		v.reportf(offset, ErrAttributeNotAllowed, "Element '%s', attribute '%s': The attribute '%s' is not allowed.", elementName, attrName, attrName)
	}

	if complexType == nil {
		return
	}

	for _, use := range complexType.Attributes {
		if use.Required && !use.Prohibited && !present[use.Decl.Name] {
			v.reportf(offset, ErrRequiredAttributeMissing, "Element '%s': The attribute '%s' is required but missing.", elementName, formatName(use.Decl.Name))
		}
	}
}

func (v *validator) checkAttributeValue(offset int, elementName, attrName string, use *AttributeUse, raw string) {
	attrType := use.Decl.Type
	if attrType == nil {
		attrType = anySimpleType
	}

	value, valueErr := attrType.validateValue(raw)
	if valueErr != nil {
		v.reportf(offset, valueErr.code, "Element '%s', attribute '%s': %s", elementName, attrName, valueErr.message)
		return
	}

	fixed := use.Fixed
	if fixed == nil {
		fixed = use.Decl.Fixed
	}
	if fixed != nil && !valuesEqual(attrType.Primitive, value, normalizeWhiteSpace(*fixed, attrType.whiteSpace())) {
		v.reportf(offset, ErrAttributeFixedValue, "Element '%s', attribute '%s': The value '%s' does not match the fixed value constraint '%s'.", elementName, attrName, value, *fixed)
	}
}

func (v *validator) push(f *frame) {
	v.stack = append(v.stack, f)
}

func (v *validator) pushSkip(name xml.Name, offset int) {
	v.push(&frame{name: name, start: offset, skip: true})
}

func (v *validator) charData(data xml.CharData, offset int) bool {
	if len(v.stack) == 0 {
		if len(strings.TrimSpace(string(data))) == 0 {
			return true
		}
		if v.rootClosed {
			v.report(offset, ErrExtraContentAfterRootElem, "Extra content at the end of the document")
		} else {
			v.report(offset, ErrXMLParse, "Start tag expected, '<' not found")
		}
		return false
	}

	f := v.stack[len(v.stack)-1]
	if f.skip || f.typ == nil {
		return true
	}
	f.text.Write(data)

	if f.textReported || f.nilled || len(strings.TrimSpace(string(data))) == 0 {
		return true
	}

	if complexType, ok := f.typ.(*ComplexType); ok {
		switch complexType.Kind {
		case ElementOnlyContent:
			f.textReported = true
			v.reportf(f.start, ErrTextInElementOnly, "Element '%s': Character content other than whitespace is not allowed because the content type is 'element-only'.", formatName(f.name))
		case EmptyContent:
			f.textReported = true
			v.reportf(f.start, ErrEmptyContent, "Element '%s': Character content is not allowed, because the content type is empty.", formatName(f.name))
		}
	}
	return true
}

func (v *validator) endElement() {
	if len(v.stack) == 0 {
		return
	}
	f := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	v.scopes = v.scopes[:len(v.scopes)-1]

	if len(v.stack) == 0 {
		v.rootClosed = true
	}

	if f.skip || f.typ == nil {
		return
	}

	name := formatName(f.name)

	if f.nilled {
		if f.hasChildren || strings.TrimSpace(f.text.String()) != "" {
			v.reportf(f.start, ErrNilElementNotEmpty, "Element '%s': The element cannot have character or element children, since it is 'nilled'.", name)
		}
		return
	}

	var simpleType *SimpleType
	switch typ := f.typ.(type) {
	case *SimpleType:
		simpleType = typ
	case *ComplexType:
		if typ.Kind == SimpleContent {
			simpleType = typ.SimpleContent
		}
		if f.matcher != nil && !f.contentFailed && !f.matcher.accepting() {
			v.reportf(f.start, ErrMissingChildElement, "Element '%s': Missing child element(s).%s", name, expectedSuffix(f.matcher.missing()))
		}
	}

	if simpleType == nil || f.contentFailed {
		return
	}

	raw := f.text.String()
	if raw == "" && !f.hasChildren {
		switch {
		case f.decl.Default != nil:
			raw = *f.decl.Default
		case f.decl.Fixed != nil:
			raw = *f.decl.Fixed
		}
	}

	value, valueErr := simpleType.validateValue(raw)
	if valueErr != nil {
		v.reportf(f.start, valueErr.code, "Element '%s': %s", name, valueErr.message)
		return
	}

	if f.decl.Fixed != nil && !valuesEqual(simpleType.Primitive, value, normalizeWhiteSpace(*f.decl.Fixed, simpleType.whiteSpace())) {
		v.reportf(f.start, ErrElementFixedValue, "Element '%s': The value '%s' does not match the fixed value constraint '%s'.", name, value, *f.decl.Fixed)
	}
}

func expectedSuffix(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return " Expected is ( " + names[0] + " )."
	default:
		return " Expected is one of ( " + strings.Join(names, ", ") + " )."
	}
}
