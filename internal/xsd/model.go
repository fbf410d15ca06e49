package xsd

import (
	"encoding/xml"
)

const (
	XSD_NAMESPACE = "http://www.w3.org/2001/XMLSchema"
	XSI_NAMESPACE = "http://www.w3.org/2001/XMLSchema-instance"
	XML_NAMESPACE = "http://www.w3.org/XML/1998/namespace"

	UNBOUNDED = -1
)

// A Type is either a *ComplexType or a *SimpleType.
type Type interface {
	TypeName() xml.Name
	isType()
}

type ElementDecl struct {
	Name     xml.Name
	Type     Type
	Global   bool
	Abstract bool
	Nillable bool
	Fixed    *string
	Default  *string

	// global elements that can substitute this element.
	substitutes []*ElementDecl
	substHead   xml.Name
}

// matches reports whether an element named name can be matched by the declaration, substitution
// group members are taken into account.
func (d *ElementDecl) matches(name xml.Name, defaultNS string) (*ElementDecl, bool) {
	if !d.Abstract && nameMatches(name, d.Name, defaultNS) {
		return d, true
	}
	for _, member := range d.substitutes {
		if !member.Abstract && nameMatches(name, member.Name, defaultNS) {
			return member, true
		}
	}
	return nil, false
}

// ChildElements returns the element declarations permitted as children, in declaration order. Abstract
// declarations are replaced by the members of their substitution group.
func (d *ElementDecl) ChildElements() []*ElementDecl {
	complexType, ok := d.Type.(*ComplexType)
	if !ok || complexType.Content == nil {
		return nil
	}

	var children []*ElementDecl
	seen := map[*ElementDecl]bool{}

	add := func(decl *ElementDecl) {
		if !seen[decl] && !decl.Abstract {
			seen[decl] = true
			children = append(children, decl)
		}
	}

	complexType.Content.walkElements(func(decl *ElementDecl) {
		add(decl)
		for _, member := range decl.substitutes {
			add(member)
		}
	})
	return children
}

type ContentKind int

const (
	EmptyContent ContentKind = iota
	ElementOnlyContent
	MixedContent
	SimpleContent
)

type ComplexType struct {
	Name      xml.Name
	Anonymous bool
	Abstract  bool
	Kind      ContentKind

	// nil if the content is empty or simple.
	Content *Particle
	// set if Kind is SimpleContent.
	SimpleContent *SimpleType

	Attributes   []*AttributeUse
	AnyAttribute *Wildcard

	base    Type
	model   *automaton
	resolve state
}

func (t *ComplexType) TypeName() xml.Name { return t.Name }
func (*ComplexType) isType()              {}

func (t *ComplexType) attribute(name xml.Name) *AttributeUse {
	for _, use := range t.Attributes {
		if use.Decl.Name == name {
			return use
		}
	}
	return nil
}

type state int

const (
	unresolved state = iota
	resolving
	resolved
)

type Variety int

const (
	Atomic Variety = iota
	List
	Union
)

type SimpleType struct {
	Name      xml.Name
	Anonymous bool
	Variety   Variety

	// name of the primitive builtin type, for atomic types.
	Primitive string
	// name of the builtin type this type is (or derives from), used in messages.
	Builtin string

	Base        *SimpleType
	ItemType    *SimpleType
	MemberTypes []*SimpleType
	Facets      facets

	// lexical space check of builtin types.
	lexical func(value string) bool
	resolve state
}

func (t *SimpleType) TypeName() xml.Name { return t.Name }
func (*SimpleType) isType()              {}

type AttributeDecl struct {
	Name    xml.Name
	Type    *SimpleType
	Fixed   *string
	Default *string
}

type AttributeUse struct {
	Decl       *AttributeDecl
	Required   bool
	Prohibited bool
	Fixed      *string
}

type ProcessContents int

const (
	Strict ProcessContents = iota
	Lax
	Skip
)

// Wildcard is the schema component of xs:any & xs:anyAttribute.
type Wildcard struct {
	Any             bool
	Not             []string // ##other, namespaces that are not allowed
	Namespaces      []string // allowed namespaces if Any is false & Not is nil, "" stands for ##local
	ProcessContents ProcessContents
}

func (w *Wildcard) allows(namespace string) bool {
	if w.Any {
		return true
	}
	if w.Not != nil {
		if namespace == "" {
			return false
		}
		for _, ns := range w.Not {
			if ns == namespace {
				return false
			}
		}
		return true
	}
	for _, ns := range w.Namespaces {
		if ns == namespace {
			return true
		}
	}
	return false
}

type ParticleKind int

const (
	ElementParticle ParticleKind = iota
	SequenceParticle
	ChoiceParticle
	AllParticle
	AnyParticle
)

type Particle struct {
	Kind     ParticleKind
	Min, Max int // Max is UNBOUNDED or >= Min

	Element  *ElementDecl
	Wildcard *Wildcard
	Children []*Particle
}

func (p *Particle) walkElements(fn func(decl *ElementDecl)) {
	switch p.Kind {
	case ElementParticle:
		fn(p.Element)
	case SequenceParticle, ChoiceParticle, AllParticle:
		for _, child := range p.Children {
			child.walkElements(fn)
		}
	}
}

// emptiable reports whether the particle can match an empty sequence of elements.
func (p *Particle) emptiable() bool {
	if p.Min == 0 {
		return true
	}
	switch p.Kind {
	case SequenceParticle, AllParticle:
		for _, child := range p.Children {
			if !child.emptiable() {
				return false
			}
		}
		return true
	case ChoiceParticle:
		for _, child := range p.Children {
			if child.emptiable() {
				return true
			}
		}
		return len(p.Children) == 0
	}
	return false
}

// nameMatches implements the namespace matching of element names, an unqualified name matches
// a name in the default namespace when a default namespace is set.
func nameMatches(actual, expected xml.Name, defaultNS string) bool {
	if actual.Local != expected.Local {
		return false
	}
	return actual.Space == expected.Space || (actual.Space == "" && defaultNS != "" && expected.Space == defaultNS)
}
