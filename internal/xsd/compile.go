package xsd

import (
	"encoding/xml"
	"errors"
	"sort"
	"strconv"
	"strings"
)

type compiler struct {
	main      *document
	documents map[string]*document

	rawElements   map[xml.Name]*node
	rawTypes      map[xml.Name]*node
	rawGroups     map[xml.Name]*node
	rawAttrGroups map[xml.Name]*node
	rawAttributes map[xml.Name]*node

	elements   map[xml.Name]*ElementDecl
	types      map[xml.Name]Type
	groups     map[xml.Name]*Particle
	attrGroups map[xml.Name]*attributeGroup
	attributes map[xml.Name]*AttributeDecl

	inProgressGroups map[xml.Name]bool

	complexTypes []*ComplexType
	errs         []error
}

type attributeGroup struct {
	uses     []*AttributeUse
	wildcard *Wildcard
	state    state
}

func newCompiler() *compiler {
	return &compiler{
		documents:        map[string]*document{},
		rawElements:      map[xml.Name]*node{},
		rawTypes:         map[xml.Name]*node{},
		rawGroups:        map[xml.Name]*node{},
		rawAttrGroups:    map[xml.Name]*node{},
		rawAttributes:    map[xml.Name]*node{},
		elements:         map[xml.Name]*ElementDecl{},
		types:            map[xml.Name]Type{},
		groups:           map[xml.Name]*Particle{},
		attrGroups:       map[xml.Name]*attributeGroup{},
		attributes:       map[xml.Name]*AttributeDecl{},
		inProgressGroups: map[xml.Name]bool{},
	}
}

func (c *compiler) register(n *node, name xml.Name) {
	var table map[xml.Name]*node
	switch n.name.Local {
	case "element":
		table = c.rawElements
	case "complexType", "simpleType":
		table = c.rawTypes
	case "group":
		table = c.rawGroups
	case "attributeGroup":
		table = c.rawAttrGroups
	case "attribute":
		table = c.rawAttributes
	}
	if _, ok := table[name]; ok {
		//the same document can be reached by several paths.
		return
	}
	table[name] = n
}

func (c *compiler) fail(err error) {
	if len(c.errs) < MAX_ERRORS {
		c.errs = append(c.errs, err)
	}
}

func (c *compiler) compile() (*Schema, error) {
	for _, name := range sortedNames(c.rawTypes) {
		c.namedType(name)
	}
	for _, name := range sortedNames(c.rawGroups) {
		c.group(name)
	}
	for _, name := range sortedNames(c.rawAttrGroups) {
		c.attributeGroup(name)
	}
	for _, name := range sortedNames(c.rawAttributes) {
		c.globalAttribute(name)
	}
	for _, name := range sortedNames(c.rawElements) {
		c.globalElement(name)
	}

	c.linkSubstitutionGroups()

	if len(c.errs) > 0 {
		return nil, errors.Join(c.errs...)
	}

	for _, complexType := range c.complexTypes {
		complexType.model = newAutomaton(complexType.Content)
	}

	schema := &Schema{
		elements: c.elements,
		types:    c.types,
	}
	if c.main != nil {
		schema.targetNamespace = c.main.targetNamespace
		schema.path = c.main.path
	}
	return schema, nil
}

// global elements

func (c *compiler) globalElement(name xml.Name) *ElementDecl {
	if decl, ok := c.elements[name]; ok {
		return decl
	}
	n, ok := c.rawElements[name]
	if !ok {
		return nil
	}

	decl := &ElementDecl{Name: name, Global: true}
	c.elements[name] = decl

	if head := n.attr("substitutionGroup"); head != "" {
		headName, err := n.resolveQName(head)
		if err != nil {
			c.fail(n.errorf("%s", err))
		} else {
			decl.substHead = headName
		}
	}

	c.fillElement(decl, n)
	return decl
}

func (c *compiler) localElement(n *node) *ElementDecl {
	if ref := n.attr("ref"); ref != "" {
		name, err := n.resolveQName(ref)
		if err != nil {
			c.fail(n.errorf("%s", err))
			return nil
		}
		decl := c.globalElement(name)
		if decl == nil {
			c.fail(n.errorf("element %s is not declared", formatName(name)))
		}
		return decl
	}

	name := n.attr("name")
	if name == "" {
		c.fail(n.errorf("local element without a name or a reference"))
		return nil
	}

	qualified := n.doc.elementFormQualified
	if form := n.attr("form"); form != "" {
		qualified = form == "qualified"
	}

	decl := &ElementDecl{Name: xml.Name{Local: name}}
	if qualified {
		decl.Name.Space = n.doc.targetNamespace
	}
	c.fillElement(decl, n)
	return decl
}

func (c *compiler) fillElement(decl *ElementDecl, n *node) {
	decl.Abstract = n.attr("abstract") == "true"
	decl.Nillable = n.attr("nillable") == "true"
	decl.Fixed = n.optionalAttr("fixed")
	decl.Default = n.optionalAttr("default")

	switch {
	case n.hasAttr("type"):
		typeName, err := n.resolveQName(n.attr("type"))
		if err != nil {
			c.fail(n.errorf("%s", err))
			decl.Type = anyType
			return
		}
		decl.Type = c.typeByName(typeName, n)
	case n.child("complexType") != nil:
		decl.Type = c.complexType(n.child("complexType"), xml.Name{})
	case n.child("simpleType") != nil:
		decl.Type = c.simpleType(n.child("simpleType"), xml.Name{})
	case decl.substHead.Local != "":
		decl.Type = anyType
		if head := c.globalElement(decl.substHead); head != nil && head.Type != nil {
			decl.Type = head.Type
		}
	default:
		decl.Type = anyType
	}
}

func (c *compiler) linkSubstitutionGroups() {
	for _, name := range sortedNames(c.elements) {
		member := c.elements[name]
		visited := map[*ElementDecl]bool{member: true}

		headName := member.substHead
		for headName.Local != "" {
			head := c.elements[headName]
			if head == nil {
				c.fail(c.rawElements[name].errorf("substitution group head %s is not declared", formatName(headName)))
				break
			}
			if visited[head] {
				c.fail(c.rawElements[name].errorf("circular substitution group"))
				break
			}
			visited[head] = true
			head.substitutes = append(head.substitutes, member)
			headName = head.substHead
		}
	}
}

// types

func (c *compiler) namedType(name xml.Name) Type {
	if t, ok := c.types[name]; ok {
		return t
	}
	n, ok := c.rawTypes[name]
	if !ok {
		return nil
	}
	if n.name.Local == "complexType" {
		return c.complexType(n, name)
	}
	return c.simpleType(n, name)
}

// typeByName resolves a type reference, it returns anyType after reporting an error if the type is not found.
func (c *compiler) typeByName(name xml.Name, referencing *node) Type {
	if name.Space == XSD_NAMESPACE {
		if name.Local == "anyType" {
			return anyType
		}
		if builtin, ok := builtinTypes[name.Local]; ok {
			return builtin
		}
		c.fail(referencing.errorf("unknown builtin type xs:%s", name.Local))
		return anyType
	}

	t := c.namedType(name)
	if t == nil {
		c.fail(referencing.errorf("type %s is not declared", formatName(name)))
		return anyType
	}
	return t
}

func (c *compiler) simpleTypeByName(name xml.Name, referencing *node) *SimpleType {
	t := c.typeByName(name, referencing)
	simple, ok := t.(*SimpleType)
	if !ok {
		if t != anyType {
			c.fail(referencing.errorf("type %s is not a simple type", formatName(name)))
		}
		return anySimpleType
	}
	return simple
}

func (c *compiler) complexType(n *node, name xml.Name) *ComplexType {
	t := &ComplexType{Name: name, Anonymous: name.Local == ""}
	if !t.Anonymous {
		c.types[name] = t
	}
	c.complexTypes = append(c.complexTypes, t)

	t.resolve = resolving
	defer func() { t.resolve = resolved }()

	t.Abstract = n.attr("abstract") == "true"
	mixed := n.attr("mixed") == "true"

	if simpleContent := n.child("simpleContent"); simpleContent != nil {
		c.simpleContent(t, simpleContent)
		return t
	}

	if complexContent := n.child("complexContent"); complexContent != nil {
		if complexContent.hasAttr("mixed") {
			mixed = complexContent.attr("mixed") == "true"
		}
		c.complexContent(t, complexContent, mixed)
		return t
	}

	t.Content = c.contentParticle(n)
	t.Attributes, t.AnyAttribute = c.attributeUses(n)
	t.Kind = contentKind(t.Content, mixed)
	return t
}

func contentKind(content *Particle, mixed bool) ContentKind {
	switch {
	case mixed:
		return MixedContent
	case content == nil:
		return EmptyContent
	default:
		return ElementOnlyContent
	}
}

// contentParticle returns the model group particle among the children of n, nil if there is none or if it is empty.
func (c *compiler) contentParticle(n *node) *Particle {
	for _, child := range n.xsdChildren() {
		switch child.name.Local {
		case "sequence", "choice", "all", "group":
			p := c.particle(child)
			if p == nil || (p.Kind != ElementParticle && p.Kind != AnyParticle && len(p.Children) == 0) {
				return nil
			}
			return p
		}
	}
	return nil
}

func (c *compiler) complexBase(n *node) (*ComplexType, Type, bool) {
	baseName, err := n.resolveQName(n.attr("base"))
	if err != nil || n.attr("base") == "" {
		c.fail(n.errorf("missing or invalid base type"))
		return nil, nil, false
	}
	base := c.typeByName(baseName, n)

	if complexBase, ok := base.(*ComplexType); ok {
		if complexBase.resolve == resolving {
			c.fail(n.errorf("circular derivation of type %s", formatName(baseName)))
			return nil, nil, false
		}
		return complexBase, base, true
	}
	return nil, base, true
}

func (c *compiler) complexContent(t *ComplexType, n *node, mixed bool) {
	derivation := n.child("extension")
	extension := true
	if derivation == nil {
		derivation = n.child("restriction")
		extension = false
	}
	if derivation == nil {
		c.fail(n.errorf("xs:complexContent requires xs:extension or xs:restriction"))
		return
	}

	base, baseType, ok := c.complexBase(derivation)
	if !ok {
		return
	}
	if base == nil {
		c.fail(derivation.errorf("the base of a complex content derivation should be a complex type, not %s", formatName(baseType.TypeName())))
		return
	}
	t.base = base

	own := c.contentParticle(derivation)
	ownAttributes, ownWildcard := c.attributeUses(derivation)

	if extension {
		baseContent := base.Content
		if base == anyType {
			baseContent = nil
		}
		switch {
		case baseContent == nil:
			t.Content = own
		case own == nil:
			t.Content = baseContent
		default:
			t.Content = &Particle{Kind: SequenceParticle, Min: 1, Max: 1, Children: []*Particle{baseContent, own}}
		}
		t.Attributes = mergeAttributeUses(base.Attributes, ownAttributes)
		t.AnyAttribute = ownWildcard
		if t.AnyAttribute == nil {
			t.AnyAttribute = base.AnyAttribute
		}
		t.Kind = contentKind(t.Content, mixed || base.Kind == MixedContent && base != anyType)
		return
	}

	t.Content = own
	t.Attributes = mergeAttributeUses(base.Attributes, ownAttributes)
	t.AnyAttribute = ownWildcard
	t.Kind = contentKind(t.Content, mixed)
}

func (c *compiler) simpleContent(t *ComplexType, n *node) {
	t.Kind = SimpleContent

	derivation := n.child("extension")
	extension := true
	if derivation == nil {
		derivation = n.child("restriction")
		extension = false
	}
	if derivation == nil {
		c.fail(n.errorf("xs:simpleContent requires xs:extension or xs:restriction"))
		t.SimpleContent = anySimpleType
		return
	}

	base, baseType, ok := c.complexBase(derivation)
	if !ok {
		t.SimpleContent = anySimpleType
		return
	}

	var baseSimple *SimpleType
	switch {
	case base != nil && base.Kind == SimpleContent:
		baseSimple = base.SimpleContent
		t.base = base
	case base != nil && base == anyType:
		baseSimple = anySimpleType
		t.base = base
	case base != nil:
		c.fail(derivation.errorf("the base of a simple content derivation should have a simple content"))
		t.SimpleContent = anySimpleType
		return
	default:
		baseSimple = baseType.(*SimpleType)
		t.base = baseSimple
	}

	ownAttributes, ownWildcard := c.attributeUses(derivation)
	var baseAttributes []*AttributeUse
	var baseWildcard *Wildcard
	if base != nil {
		baseAttributes = base.Attributes
		baseWildcard = base.AnyAttribute
	}
	t.Attributes = mergeAttributeUses(baseAttributes, ownAttributes)
	t.AnyAttribute = ownWildcard

	if extension {
		t.SimpleContent = baseSimple
		if t.AnyAttribute == nil {
			t.AnyAttribute = baseWildcard
		}
		return
	}

	if inline := derivation.child("simpleType"); inline != nil {
		baseSimple = c.simpleType(inline, xml.Name{})
	}
	restricted := deriveSimpleType(baseSimple)
	restricted.Anonymous = true
	c.facets(restricted, derivation)
	t.SimpleContent = restricted
}

func mergeAttributeUses(base, own []*AttributeUse) []*AttributeUse {
	var merged []*AttributeUse
	overridden := map[xml.Name]bool{}
	for _, use := range own {
		overridden[use.Decl.Name] = true
	}
	for _, use := range base {
		if !overridden[use.Decl.Name] {
			merged = append(merged, use)
		}
	}
	for _, use := range own {
		if !use.Prohibited {
			merged = append(merged, use)
		}
	}
	return merged
}

// particles

func (c *compiler) particle(n *node) *Particle {
	min, max, ok := c.occurs(n)
	if !ok || max == 0 {
		return nil
	}

	p := &Particle{Min: min, Max: max}

	switch n.name.Local {
	case "element":
		p.Kind = ElementParticle
		p.Element = c.localElement(n)
		if p.Element == nil {
			return nil
		}
	case "any":
		p.Kind = AnyParticle
		p.Wildcard = c.wildcard(n)
	case "sequence", "choice", "all":
		switch n.name.Local {
		case "sequence":
			p.Kind = SequenceParticle
		case "choice":
			p.Kind = ChoiceParticle
		default:
			p.Kind = AllParticle
		}
		for _, child := range n.xsdChildren() {
			if childParticle := c.particle(child); childParticle != nil {
				p.Children = append(p.Children, childParticle)
			}
		}
	case "group":
		ref, err := n.resolveQName(n.attr("ref"))
		if err != nil || n.attr("ref") == "" {
			c.fail(n.errorf("group reference without a valid ref"))
			return nil
		}
		group := c.group(ref)
		if group == nil {
			if !c.inProgressGroups[ref] {
				c.fail(n.errorf("group %s is not declared", formatName(ref)))
			}
			return nil
		}
		copied := *group
		copied.Min, copied.Max = min, max
		return &copied
	default:
		return nil
	}
	return p
}

func (c *compiler) occurs(n *node) (min, max int, ok bool) {
	min, max = 1, 1
	if value := strings.TrimSpace(n.attr("minOccurs")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			c.fail(n.errorf("invalid minOccurs %q", value))
			return 0, 0, false
		}
		min = parsed
	}
	if value := strings.TrimSpace(n.attr("maxOccurs")); value != "" {
		if value == "unbounded" {
			max = UNBOUNDED
		} else {
			parsed, err := strconv.Atoi(value)
			if err != nil || parsed < 0 {
				c.fail(n.errorf("invalid maxOccurs %q", value))
				return 0, 0, false
			}
			max = parsed
		}
	}
	if max != UNBOUNDED && max < min {
		c.fail(n.errorf("maxOccurs is less than minOccurs"))
		return 0, 0, false
	}
	return min, max, true
}

func (c *compiler) group(name xml.Name) *Particle {
	if group, ok := c.groups[name]; ok {
		return group
	}
	n, ok := c.rawGroups[name]
	if !ok {
		return nil
	}
	if c.inProgressGroups[name] {
		c.fail(n.errorf("circular group reference %s", formatName(name)))
		return nil
	}
	c.inProgressGroups[name] = true
	defer delete(c.inProgressGroups, name)

	for _, child := range n.xsdChildren() {
		switch child.name.Local {
		case "sequence", "choice", "all":
			p := c.particle(child)
			if p != nil {
				c.groups[name] = p
			}
			return p
		}
	}
	c.fail(n.errorf("group %s has no model group", formatName(name)))
	return nil
}

func (c *compiler) wildcard(n *node) *Wildcard {
	w := &Wildcard{}

	switch n.attr("processContents") {
	case "lax":
		w.ProcessContents = Lax
	case "skip":
		w.ProcessContents = Skip
	}

	namespace := strings.TrimSpace(n.attr("namespace"))
	targetNamespace := n.doc.targetNamespace

	switch namespace {
	case "", "##any":
		w.Any = true
	case "##other":
		w.Not = []string{targetNamespace}
	default:
		for _, token := range strings.Fields(namespace) {
			switch token {
			case "##targetNamespace":
				w.Namespaces = append(w.Namespaces, targetNamespace)
			case "##local":
				w.Namespaces = append(w.Namespaces, "")
			default:
				w.Namespaces = append(w.Namespaces, token)
			}
		}
	}
	return w
}

// attributes

func (c *compiler) attributeUses(n *node) (uses []*AttributeUse, wildcard *Wildcard) {
	for _, child := range n.xsdChildren() {
		switch child.name.Local {
		case "attribute":
			if use := c.attributeUse(child); use != nil {
				uses = append(uses, use)
			}
		case "attributeGroup":
			ref, err := child.resolveQName(child.attr("ref"))
			if err != nil || child.attr("ref") == "" {
				c.fail(child.errorf("attribute group reference without a valid ref"))
				continue
			}
			group := c.attributeGroup(ref)
			if group == nil {
				c.fail(child.errorf("attribute group %s is not declared", formatName(ref)))
				continue
			}
			uses = mergeAttributeUses(uses, group.uses)
			if wildcard == nil {
				wildcard = group.wildcard
			}
		case "anyAttribute":
			wildcard = c.wildcard(child)
		}
	}
	return
}

func (c *compiler) attributeUse(n *node) *AttributeUse {
	use := &AttributeUse{Fixed: n.optionalAttr("fixed")}

	switch n.attr("use") {
	case "required":
		use.Required = true
	case "prohibited":
		use.Prohibited = true
	}

	if ref := n.attr("ref"); ref != "" {
		name, err := n.resolveQName(ref)
		if err != nil {
			c.fail(n.errorf("%s", err))
			return nil
		}
		decl := c.globalAttribute(name)
		if decl == nil {
			c.fail(n.errorf("attribute %s is not declared", formatName(name)))
			return nil
		}
		use.Decl = decl
		if use.Fixed == nil {
			use.Fixed = decl.Fixed
		}
		return use
	}

	name := n.attr("name")
	if name == "" {
		c.fail(n.errorf("local attribute without a name or a reference"))
		return nil
	}

	qualified := n.doc.attributeFormQualified
	if form := n.attr("form"); form != "" {
		qualified = form == "qualified"
	}

	decl := &AttributeDecl{Name: xml.Name{Local: name}}
	if qualified {
		decl.Name.Space = n.doc.targetNamespace
	}
	c.fillAttribute(decl, n)
	use.Decl = decl
	if use.Fixed == nil {
		use.Fixed = decl.Fixed
	}
	return use
}

func (c *compiler) globalAttribute(name xml.Name) *AttributeDecl {
	if decl, ok := c.attributes[name]; ok {
		return decl
	}
	n, ok := c.rawAttributes[name]
	if !ok {
		if name.Space == XML_NAMESPACE {
			decl := &AttributeDecl{Name: name, Type: anySimpleType}
			c.attributes[name] = decl
			return decl
		}
		return nil
	}
	decl := &AttributeDecl{Name: name}
	c.attributes[name] = decl
	c.fillAttribute(decl, n)
	return decl
}

func (c *compiler) fillAttribute(decl *AttributeDecl, n *node) {
	decl.Fixed = n.optionalAttr("fixed")
	decl.Default = n.optionalAttr("default")

	switch {
	case n.hasAttr("type"):
		typeName, err := n.resolveQName(n.attr("type"))
		if err != nil {
			c.fail(n.errorf("%s", err))
			decl.Type = anySimpleType
			return
		}
		decl.Type = c.simpleTypeByName(typeName, n)
	case n.child("simpleType") != nil:
		decl.Type = c.simpleType(n.child("simpleType"), xml.Name{})
	default:
		decl.Type = anySimpleType
	}
}

func (c *compiler) attributeGroup(name xml.Name) *attributeGroup {
	if group, ok := c.attrGroups[name]; ok {
		if group.state == resolving {
			return &attributeGroup{}
		}
		return group
	}
	n, ok := c.rawAttrGroups[name]
	if !ok {
		return nil
	}

	group := &attributeGroup{state: resolving}
	c.attrGroups[name] = group
	group.uses, group.wildcard = c.attributeUses(n)
	group.state = resolved
	return group
}

// simple types

func (c *compiler) simpleType(n *node, name xml.Name) *SimpleType {
	t := &SimpleType{Name: name, Anonymous: name.Local == ""}
	if !t.Anonymous {
		c.types[name] = t
	}

	t.resolve = resolving
	defer func() { t.resolve = resolved }()

	switch {
	case n.child("restriction") != nil:
		restriction := n.child("restriction")

		var base *SimpleType
		if inline := restriction.child("simpleType"); inline != nil {
			base = c.simpleType(inline, xml.Name{})
		} else {
			baseName, err := restriction.resolveQName(restriction.attr("base"))
			if err != nil || restriction.attr("base") == "" {
				c.fail(restriction.errorf("missing or invalid base type"))
				base = anySimpleType
			} else {
				base = c.simpleTypeByName(baseName, restriction)
			}
		}

		if base.resolve == resolving {
			c.fail(restriction.errorf("circular derivation of simple type"))
			base = anySimpleType
		}

		derived := deriveSimpleType(base)
		t.Variety = derived.Variety
		t.Primitive = derived.Primitive
		t.Builtin = derived.Builtin
		t.ItemType = derived.ItemType
		t.MemberTypes = derived.MemberTypes
		t.Base = base
		c.facets(t, restriction)
	case n.child("list") != nil:
		list := n.child("list")
		t.Variety = List
		t.Builtin = "list"
		t.Base = anySimpleType
		if inline := list.child("simpleType"); inline != nil {
			t.ItemType = c.simpleType(inline, xml.Name{})
		} else {
			itemName, err := list.resolveQName(list.attr("itemType"))
			if err != nil || list.attr("itemType") == "" {
				c.fail(list.errorf("list without a valid item type"))
				t.ItemType = anySimpleType
			} else {
				t.ItemType = c.simpleTypeByName(itemName, list)
			}
		}
	case n.child("union") != nil:
		union := n.child("union")
		t.Variety = Union
		t.Builtin = "union"
		t.Base = anySimpleType
		for _, member := range strings.Fields(union.attr("memberTypes")) {
			memberName, err := union.resolveQName(member)
			if err != nil {
				c.fail(union.errorf("%s", err))
				continue
			}
			t.MemberTypes = append(t.MemberTypes, c.simpleTypeByName(memberName, union))
		}
		for _, child := range union.xsdChildren() {
			if child.name.Local == "simpleType" {
				t.MemberTypes = append(t.MemberTypes, c.simpleType(child, xml.Name{}))
			}
		}
	default:
		c.fail(n.errorf("xs:simpleType requires xs:restriction, xs:list or xs:union"))
		t.Base = anySimpleType
		t.Primitive = "anySimpleType"
		t.Builtin = "anySimpleType"
	}
	return t
}

// deriveSimpleType returns a type without facets having the same variety as base.
func deriveSimpleType(base *SimpleType) *SimpleType {
	return &SimpleType{
		Variety:     base.Variety,
		Primitive:   base.Primitive,
		Builtin:     base.Builtin,
		ItemType:    base.ItemType,
		MemberTypes: base.MemberTypes,
		Base:        base,
		resolve:     resolved,
	}
}

func (c *compiler) facets(t *SimpleType, restriction *node) {
	for _, child := range restriction.xsdChildren() {
		value := child.attr("value")

		switch child.name.Local {
		case "enumeration":
			t.Facets.enumeration = append(t.Facets.enumeration, value)
		case "pattern":
			t.Facets.addPattern(value)
		case "length", "minLength", "maxLength", "totalDigits", "fractionDigits":
			parsed, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || parsed < 0 {
				c.fail(child.errorf("invalid value %q for facet %s", value, child.name.Local))
				continue
			}
			switch child.name.Local {
			case "length":
				t.Facets.length = &parsed
			case "minLength":
				t.Facets.minLength = &parsed
			case "maxLength":
				t.Facets.maxLength = &parsed
			case "totalDigits":
				t.Facets.totalDigits = &parsed
			case "fractionDigits":
				t.Facets.fractionDigits = &parsed
			}
		case "minInclusive":
			t.Facets.minInclusive = &value
		case "maxInclusive":
			t.Facets.maxInclusive = &value
		case "minExclusive":
			t.Facets.minExclusive = &value
		case "maxExclusive":
			t.Facets.maxExclusive = &value
		case "whiteSpace":
			t.Facets.whiteSpace = value
		}
	}
}

func sortedNames[V any](m map[xml.Name]V) []xml.Name {
	names := make([]xml.Name, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i].Space != names[j].Space {
			return names[i].Space < names[j].Space
		}
		return names[i].Local < names[j].Local
	})
	return names
}
