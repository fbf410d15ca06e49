package xsd

import (
	"encoding/xml"
	"errors"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	POM_NAMESPACE = "http://maven.apache.org/POM/4.0.0"

	POM_SCHEMA = `<?xml version="1.0" encoding="UTF-8"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" targetNamespace="http://maven.apache.org/POM/4.0.0"
	xmlns="http://maven.apache.org/POM/4.0.0" elementFormDefault="qualified">
  <xs:element name="project" type="Model"/>
  <xs:complexType name="Model">
    <xs:all>
      <xs:element name="modelVersion" type="xs:string"/>
      <xs:element name="groupId" type="xs:string" minOccurs="0"/>
      <xs:element name="artifactId" type="xs:string" minOccurs="0"/>
      <xs:element name="dependencies" minOccurs="0">
        <xs:complexType>
          <xs:sequence>
            <xs:element name="dependency" type="Dependency" minOccurs="0" maxOccurs="unbounded"/>
          </xs:sequence>
        </xs:complexType>
      </xs:element>
    </xs:all>
  </xs:complexType>
  <xs:complexType name="Dependency">
    <xs:sequence>
      <xs:element name="groupId" type="xs:string"/>
      <xs:element name="artifactId" type="xs:string"/>
      <xs:element name="scope" type="xs:string" minOccurs="0"/>
    </xs:sequence>
  </xs:complexType>
</xs:schema>`

	ORDER_SCHEMA = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:element name="order">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="id" type="xs:int"/>
        <xs:element name="item" type="itemType" maxOccurs="unbounded"/>
        <xs:element name="note" type="xs:string" minOccurs="0"/>
      </xs:sequence>
      <xs:attribute name="status" type="statusType" use="required"/>
      <xs:attribute name="code" type="codeType"/>
    </xs:complexType>
  </xs:element>
  <xs:complexType name="itemType">
    <xs:simpleContent>
      <xs:extension base="xs:string">
        <xs:attribute name="qty" type="xs:positiveInteger"/>
      </xs:extension>
    </xs:simpleContent>
  </xs:complexType>
  <xs:simpleType name="statusType">
    <xs:restriction base="xs:string">
      <xs:enumeration value="open"/>
      <xs:enumeration value="closed"/>
    </xs:restriction>
  </xs:simpleType>
  <xs:simpleType name="codeType">
    <xs:restriction base="xs:string">
      <xs:pattern value="[A-Z]{3}-\d+"/>
    </xs:restriction>
  </xs:simpleType>
</xs:schema>`
)

func writeFile(t *testing.T, fls billy.Filesystem, path string, content string) {
	t.Helper()
	require.NoError(t, util.WriteFile(fls, path, []byte(content), 0600))
}

func loadSchema(t *testing.T, files map[string]string, path string) *Schema {
	t.Helper()

	fls := memfs.New()
	for name, content := range files {
		writeFile(t, fls, name, content)
	}

	schema, err := NewLoader(fls).Load(path)
	require.NoError(t, err)
	return schema
}

func codes(errs []Error) []ErrorCode {
	var result []ErrorCode
	for _, err := range errs {
		result = append(result, err.Code)
	}
	return result
}

func TestLoad(t *testing.T) {

	t.Run("target namespace", func(t *testing.T) {
		schema := loadSchema(t, map[string]string{"/schemas/pom.xsd": POM_SCHEMA}, "/schemas/pom.xsd")
		assert.Equal(t, POM_NAMESPACE, schema.TargetNamespace())
		assert.Equal(t, "/schemas/pom.xsd", schema.Path())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewLoader(memfs.New()).Load("/schemas/missing.xsd")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSchema))
	})

	t.Run("undeclared type", func(t *testing.T) {
		fls := memfs.New()
		writeFile(t, fls, "/a.xsd", `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
			<xs:element name="a" type="missingType"/>
		</xs:schema>`)

		_, err := NewLoader(fls).Load("/a.xsd")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSchema))
		assert.Contains(t, err.Error(), "missingType")
	})

	t.Run("not a schema", func(t *testing.T) {
		fls := memfs.New()
		writeFile(t, fls, "/a.xsd", `<project/>`)

		_, err := NewLoader(fls).Load("/a.xsd")
		assert.ErrorIs(t, err, ErrSchema)
	})

	t.Run("malformed schema", func(t *testing.T) {
		fls := memfs.New()
		writeFile(t, fls, "/a.xsd", `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"><xs:element name="a">`)

		_, err := NewLoader(fls).Load("/a.xsd")
		assert.ErrorIs(t, err, ErrSchema)
	})

	t.Run("redefine is not supported", func(t *testing.T) {
		fls := memfs.New()
		writeFile(t, fls, "/a.xsd", `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
			<xs:redefine schemaLocation="b.xsd"/>
		</xs:schema>`)

		_, err := NewLoader(fls).Load("/a.xsd")
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrUnsupportedSchema.Error())
	})

	t.Run("chameleon include", func(t *testing.T) {
		schema := loadSchema(t, map[string]string{
			"/schemas/main.xsd": `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" xmlns:t="urn:test"
				targetNamespace="urn:test" elementFormDefault="qualified">
				<xs:include schemaLocation="common/types.xsd"/>
				<xs:element name="root" type="t:rootType"/>
			</xs:schema>`,
			"/schemas/common/types.xsd": `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
				<xs:complexType name="rootType">
					<xs:sequence><xs:element name="child" type="xs:string"/></xs:sequence>
				</xs:complexType>
			</xs:schema>`,
		}, "/schemas/main.xsd")

		errs := schema.Validate(`<t:root xmlns:t="urn:test"><child>text</child></t:root>`, Options{})
		assert.Empty(t, errs)
	})

	t.Run("import", func(t *testing.T) {
		schema := loadSchema(t, map[string]string{
			"/schemas/main.xsd": `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" xmlns:o="urn:other"
				targetNamespace="urn:main">
				<xs:import namespace="urn:other" schemaLocation="other.xsd"/>
				<xs:import namespace="urn:remote" schemaLocation="http://example.com/remote.xsd"/>
				<xs:element name="root">
					<xs:complexType>
						<xs:sequence><xs:element ref="o:value"/></xs:sequence>
					</xs:complexType>
				</xs:element>
			</xs:schema>`,
			"/schemas/other.xsd": `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" targetNamespace="urn:other">
				<xs:element name="value" type="xs:int"/>
			</xs:schema>`,
		}, "/schemas/main.xsd")

		errs := schema.Validate(`<m:root xmlns:m="urn:main" xmlns:o="urn:other"><o:value>1</o:value></m:root>`, Options{})
		assert.Empty(t, errs)

		errs = schema.Validate(`<m:root xmlns:m="urn:main" xmlns:o="urn:other"><o:value>one</o:value></m:root>`, Options{})
		assert.Equal(t, []ErrorCode{ErrDatatypeInvalid}, codes(errs))
	})
}

func TestValidate(t *testing.T) {
	order := loadSchema(t, map[string]string{"/order.xsd": ORDER_SCHEMA}, "/order.xsd")

	t.Run("valid document", func(t *testing.T) {
		errs := order.Validate(`<order status="open"><id>1</id><item qty="2">a</item><item>b</item></order>`, Options{})
		assert.Empty(t, errs)
	})

	t.Run("invalid datatype", func(t *testing.T) {
		errs := order.Validate(`<order status="open"><id>x</id><item>a</item></order>`, Options{})
		require.Len(t, errs, 1)
		assert.Equal(t, Error{
			Line:    1,
			Column:  22,
			Code:    ErrDatatypeInvalid,
			Message: "Element 'id': 'x' is not a valid value of the atomic type 'xs:int'.",
		}, errs[0])
	})

	t.Run("enumeration", func(t *testing.T) {
		errs := order.Validate(`<order status="pending"><id>1</id><item>a</item></order>`, Options{})
		require.Len(t, errs, 1)
		assert.Equal(t, ErrFacetEnumeration, errs[0].Code)
		assert.Equal(t, "Element 'order', attribute 'status': [facet 'enumeration'] The value 'pending' is not an element of the set {'open', 'closed'}.", errs[0].Message)
	})

	t.Run("pattern", func(t *testing.T) {
		errs := order.Validate(`<order status="open" code="ABC-12"><id>1</id><item>a</item></order>`, Options{})
		assert.Empty(t, errs)

		errs = order.Validate(`<order status="open" code="ab-1"><id>1</id><item>a</item></order>`, Options{})
		assert.Equal(t, []ErrorCode{ErrFacetPattern}, codes(errs))
	})

	t.Run("builtin facet", func(t *testing.T) {
		errs := order.Validate(`<order status="open"><id>1</id><item qty="0">a</item></order>`, Options{})
		require.Len(t, errs, 1)
		assert.Equal(t, ErrDatatypeInvalid, errs[0].Code)
		assert.Contains(t, errs[0].Message, "xs:positiveInteger")
	})

	t.Run("missing required attribute", func(t *testing.T) {
		errs := order.Validate(`<order><id>1</id><item>a</item></order>`, Options{})
		require.Len(t, errs, 1)
		assert.Equal(t, ErrRequiredAttributeMissing, errs[0].Code)
		assert.Equal(t, "Element 'order': The attribute 'status' is required but missing.", errs[0].Message)
	})

	t.Run("attribute not allowed", func(t *testing.T) {
		errs := order.Validate(`<order status="open" foo="1"><id>1</id><item>a</item></order>`, Options{})
		assert.Equal(t, []ErrorCode{ErrAttributeNotAllowed}, codes(errs))
	})

	t.Run("unexpected element", func(t *testing.T) {
		errs := order.Validate(`<order status="open"><item>a</item></order>`, Options{})
		require.Len(t, errs, 1)
		assert.Equal(t, ErrUnexpectedElement, errs[0].Code)
		assert.Equal(t, "Element 'item': This element is not expected. Expected is ( id ).", errs[0].Message)
	})

	t.Run("elements after an unexpected element are still validated", func(t *testing.T) {
		errs := order.Validate(`<order status="open"><item>a</item><id>x</id></order>`, Options{})
		assert.Equal(t, []ErrorCode{ErrUnexpectedElement, ErrDatatypeInvalid}, codes(errs))
	})

	t.Run("missing child element", func(t *testing.T) {
		errs := order.Validate("<order status=\"open\">\n  <id>1</id>\n</order>", Options{})
		require.Len(t, errs, 1)
		assert.Equal(t, Error{
			Line:    1,
			Column:  1,
			Code:    ErrMissingChildElement,
			Message: "Element 'order': Missing child element(s). Expected is ( item ).",
		}, errs[0])
	})

	t.Run("line & column", func(t *testing.T) {
		errs := order.Validate("<order status=\"open\">\r\n  <id>1</id>\r\n  <itém/>\n</order>", Options{})
		require.NotEmpty(t, errs)
		assert.Equal(t, 3, errs[0].Line)
		assert.Equal(t, 3, errs[0].Column)
	})

	t.Run("character content in element-only content", func(t *testing.T) {
		errs := order.Validate(`<order status="open">text<id>1</id><item>a</item></order>`, Options{})
		assert.Equal(t, []ErrorCode{ErrTextInElementOnly}, codes(errs))
	})

	t.Run("element in simple content", func(t *testing.T) {
		errs := order.Validate(`<order status="open"><id>1</id><item><b/></item></order>`, Options{})
		assert.Equal(t, []ErrorCode{ErrSimpleTypeHasElement}, codes(errs))
	})

	t.Run("root not declared", func(t *testing.T) {
		errs := order.Validate(`<invoice/>`, Options{})
		require.Len(t, errs, 1)
		assert.Equal(t, ErrRootNotDeclared, errs[0].Code)
		assert.Equal(t, "Element 'invoice': No matching global declaration available for the validation root.", errs[0].Message)
	})

	t.Run("malformed document", func(t *testing.T) {
		errs := order.Validate("<order status=\"open\">\n<id>1</order>", Options{})
		require.NotEmpty(t, errs)
		last := errs[len(errs)-1]
		assert.Equal(t, ErrXMLParse, last.Code)
		assert.Equal(t, 2, last.Line)
	})

	t.Run("extra content after the root element", func(t *testing.T) {
		errs := order.Validate(`<order status="open"><id>1</id><item>a</item></order><order/>`, Options{})
		assert.Equal(t, []ErrorCode{ErrExtraContentAfterRootElem}, codes(errs))
	})

	t.Run("empty document", func(t *testing.T) {
		errs := order.Validate(``, Options{})
		assert.Equal(t, []ErrorCode{ErrNoRoot}, codes(errs))
	})

	t.Run("error count is bounded", func(t *testing.T) {
		text := `<order status="open"><id>1</id>`
		for i := 0; i < MAX_ERRORS+50; i++ {
			text += `<item qty="x">a</item>`
		}
		text += `</order>`

		errs := order.Validate(text, Options{})
		assert.Len(t, errs, MAX_ERRORS)
	})
}

func TestValidateNamespaces(t *testing.T) {
	pom := loadSchema(t, map[string]string{"/pom.xsd": POM_SCHEMA}, "/pom.xsd")

	t.Run("missing child in xs:all", func(t *testing.T) {
		errs := pom.Validate(`<project xmlns="http://maven.apache.org/POM/4.0.0"><groupId>g</groupId></project>`, Options{})
		require.Len(t, errs, 1)
		assert.Equal(t, ErrMissingChildElement, errs[0].Code)
		assert.Equal(t,
			"Element '{http://maven.apache.org/POM/4.0.0}project': Missing child element(s). Expected is ( {http://maven.apache.org/POM/4.0.0}modelVersion ).",
			errs[0].Message,
		)
	})

	t.Run("xs:all in any order", func(t *testing.T) {
		errs := pom.Validate(`<project xmlns="http://maven.apache.org/POM/4.0.0">
			<artifactId>a</artifactId>
			<modelVersion>4.0.0</modelVersion>
			<groupId>g</groupId>
		</project>`, Options{})
		assert.Empty(t, errs)
	})

	t.Run("element repeated in xs:all", func(t *testing.T) {
		errs := pom.Validate(`<project xmlns="http://maven.apache.org/POM/4.0.0">
			<modelVersion>4.0.0</modelVersion>
			<modelVersion>4.0.0</modelVersion>
		</project>`, Options{})
		assert.Equal(t, []ErrorCode{ErrUnexpectedElement}, codes(errs))
	})

	t.Run("unqualified document", func(t *testing.T) {
		text := `<project><modelVersion>4.0.0</modelVersion></project>`

		errs := pom.Validate(text, Options{})
		assert.Equal(t, []ErrorCode{ErrRootNotDeclared}, codes(errs))

		errs = pom.Validate(text, Options{DefaultNamespace: POM_NAMESPACE})
		assert.Empty(t, errs)
	})

	t.Run("prefixed document", func(t *testing.T) {
		errs := pom.Validate(`<p:project xmlns:p="http://maven.apache.org/POM/4.0.0"><p:modelVersion>4</p:modelVersion></p:project>`, Options{})
		assert.Empty(t, errs)
	})

	t.Run("unbound prefix", func(t *testing.T) {
		errs := pom.Validate(`<project xmlns="http://maven.apache.org/POM/4.0.0"><modelVersion>4</modelVersion><x:a/></project>`, Options{})
		assert.Contains(t, codes(errs), ErrXMLParse)
	})

	t.Run("xsi attributes are ignored", func(t *testing.T) {
		errs := pom.Validate(`<project xmlns="http://maven.apache.org/POM/4.0.0"
			xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
			xsi:schemaLocation="http://maven.apache.org/POM/4.0.0 https://maven.apache.org/xsd/maven-4.0.0.xsd">
			<modelVersion>4.0.0</modelVersion>
		</project>`, Options{})
		assert.Empty(t, errs)
	})
}

func TestValidateDerivation(t *testing.T) {
	schema := loadSchema(t, map[string]string{"/shapes.xsd": `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
		<xs:element name="shapes">
			<xs:complexType>
				<xs:sequence>
					<xs:element ref="shape" minOccurs="0" maxOccurs="unbounded"/>
					<xs:any namespace="##other" processContents="skip" minOccurs="0"/>
				</xs:sequence>
			</xs:complexType>
		</xs:element>
		<xs:element name="shape" type="shapeType" abstract="true"/>
		<xs:element name="circle" substitutionGroup="shape">
			<xs:complexType>
				<xs:complexContent>
					<xs:extension base="shapeType">
						<xs:attribute name="radius" type="xs:decimal" use="required"/>
					</xs:extension>
				</xs:complexContent>
			</xs:complexType>
		</xs:element>
		<xs:element name="square" type="shapeType" substitutionGroup="shape"/>
		<xs:element name="size" type="xs:int" nillable="true"/>
		<xs:element name="version" type="xs:string" fixed="1.0"/>
		<xs:complexType name="shapeType">
			<xs:sequence>
				<xs:element name="label" type="xs:string" minOccurs="0"/>
			</xs:sequence>
			<xs:attribute name="color" type="xs:string" default="black"/>
		</xs:complexType>
		<xs:complexType name="labeledShape">
			<xs:complexContent>
				<xs:extension base="shapeType">
					<xs:attribute name="caption" type="xs:string"/>
				</xs:extension>
			</xs:complexContent>
		</xs:complexType>
	</xs:schema>`}, "/shapes.xsd")

	t.Run("substitution group", func(t *testing.T) {
		errs := schema.Validate(`<shapes><circle radius="1.5"><label>c</label></circle><square color="red"/></shapes>`, Options{})
		assert.Empty(t, errs)
	})

	t.Run("abstract head", func(t *testing.T) {
		errs := schema.Validate(`<shapes><shape/></shapes>`, Options{})
		require.Len(t, errs, 1)
		assert.Equal(t, ErrUnexpectedElement, errs[0].Code)
		assert.Contains(t, errs[0].Message, "circle")
		assert.Contains(t, errs[0].Message, "square")
	})

	t.Run("extension inherits content & attributes", func(t *testing.T) {
		errs := schema.Validate(`<shapes><circle><label>c</label></circle></shapes>`, Options{})
		assert.Equal(t, []ErrorCode{ErrRequiredAttributeMissing}, codes(errs))
	})

	t.Run("skip wildcard", func(t *testing.T) {
		errs := schema.Validate(`<shapes><square/><o:anything xmlns:o="urn:o"><nested/></o:anything></shapes>`, Options{})
		assert.Empty(t, errs)
	})

	t.Run("xsi:type", func(t *testing.T) {
		errs := schema.Validate(`<shapes xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
			<square xsi:type="labeledShape" caption="a"/>
		</shapes>`, Options{})
		assert.Empty(t, errs)

		errs = schema.Validate(`<shapes xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
			<square xsi:type="missing"/>
		</shapes>`, Options{})
		assert.Equal(t, []ErrorCode{ErrXsiTypeInvalid}, codes(errs))

		errs = schema.Validate(`<shapes xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xs="http://www.w3.org/2001/XMLSchema">
			<square xsi:type="xs:int"/>
		</shapes>`, Options{})
		assert.Equal(t, []ErrorCode{ErrXsiTypeInvalid}, codes(errs))
	})

	t.Run("xsi:nil", func(t *testing.T) {
		errs := schema.Validate(`<size xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:nil="true"/>`, Options{})
		assert.Empty(t, errs)

		errs = schema.Validate(`<size xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:nil="true">1</size>`, Options{})
		assert.Equal(t, []ErrorCode{ErrNilElementNotEmpty}, codes(errs))

		errs = schema.Validate(`<size/>`, Options{})
		assert.Equal(t, []ErrorCode{ErrDatatypeInvalid}, codes(errs))
	})

	t.Run("fixed value", func(t *testing.T) {
		assert.Empty(t, schema.Validate(`<version>1.0</version>`, Options{}))
		assert.Empty(t, schema.Validate(`<version/>`, Options{}))
		assert.Equal(t, []ErrorCode{ErrElementFixedValue}, codes(schema.Validate(`<version>2.0</version>`, Options{})))
	})
}

func TestCheckWellFormed(t *testing.T) {
	assert.Empty(t, CheckWellFormed(`<?xml version="1.0"?><a><b/><!-- c --></a>`))
	assert.Equal(t, []ErrorCode{ErrNoRoot}, codes(CheckWellFormed("  ")))
	assert.Equal(t, []ErrorCode{ErrXMLParse}, codes(CheckWellFormed(`<a><b></a>`)))
	assert.Equal(t, []ErrorCode{ErrXMLParse}, codes(CheckWellFormed(`text`)))
	assert.Equal(t, []ErrorCode{ErrXMLParse}, codes(CheckWellFormed(`<p:a/>`)))
	assert.Equal(t, []ErrorCode{ErrExtraContentAfterRootElem}, codes(CheckWellFormed(`<a/>text`)))
}

func TestSchemaQueries(t *testing.T) {
	pom := loadSchema(t, map[string]string{"/pom.xsd": POM_SCHEMA}, "/pom.xsd")

	project := xml.Name{Space: POM_NAMESPACE, Local: "project"}
	dependencies := xml.Name{Space: POM_NAMESPACE, Local: "dependencies"}
	dependency := xml.Name{Space: POM_NAMESPACE, Local: "dependency"}

	t.Run("GlobalElements", func(t *testing.T) {
		decls := pom.GlobalElements()
		require.Len(t, decls, 1)
		assert.Equal(t, project, decls[0].Name)
	})

	t.Run("ChildElements", func(t *testing.T) {
		decl, ok := pom.Element(project)
		require.True(t, ok)

		assert.Equal(t, []string{
			"{" + POM_NAMESPACE + "}artifactId",
			"{" + POM_NAMESPACE + "}dependencies",
			"{" + POM_NAMESPACE + "}groupId",
			"{" + POM_NAMESPACE + "}modelVersion",
		}, ElementNames(decl.ChildElements()))
	})

	t.Run("LookupPath", func(t *testing.T) {
		decl, ok := pom.LookupPath([]xml.Name{project, dependencies, dependency}, "")
		require.True(t, ok)
		assert.Equal(t, dependency, decl.Name)
		assert.Len(t, decl.ChildElements(), 3)

		unqualified := []xml.Name{{Local: "project"}, {Local: "dependencies"}}
		_, ok = pom.LookupPath(unqualified, "")
		assert.False(t, ok)

		decl, ok = pom.LookupPath(unqualified, POM_NAMESPACE)
		require.True(t, ok)
		assert.Equal(t, dependencies, decl.Name)

		_, ok = pom.LookupPath([]xml.Name{project, {Space: POM_NAMESPACE, Local: "unknown"}}, "")
		assert.False(t, ok)
	})

	t.Run("FindElement", func(t *testing.T) {
		decl, ok := pom.FindElement("dependency")
		require.True(t, ok)
		assert.Equal(t, dependency, decl.Name)

		_, ok = pom.FindElement("unknown")
		assert.False(t, ok)
	})
}
