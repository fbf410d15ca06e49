package xsd

import (
	"encoding/base64"
	"encoding/xml"
	"regexp"
	"strings"
)

var (
	timezone = `(Z|[+-]((0\d|1[0-3]):[0-5]\d|14:00))?`

	booleanRegex    = regexp.MustCompile(`^(true|false|1|0)$`)
	decimalRegex    = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)
	integerRegex    = regexp.MustCompile(`^[+-]?\d+$`)
	floatRegex      = regexp.MustCompile(`^([+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?|[+-]?INF|NaN)$`)
	durationRegex   = regexp.MustCompile(`^-?P(\d+Y)?(\d+M)?(\d+D)?(T(\d+H)?(\d+M)?(\d+(\.\d+)?S)?)?$`)
	dateTimeRegex   = regexp.MustCompile(`^-?\d{4,}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])T(([01]\d|2[0-3]):[0-5]\d:[0-5]\d(\.\d+)?|24:00:00(\.0+)?)` + timezone + `$`)
	dateRegex       = regexp.MustCompile(`^-?\d{4,}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])` + timezone + `$`)
	timeRegex       = regexp.MustCompile(`^(([01]\d|2[0-3]):[0-5]\d:[0-5]\d(\.\d+)?|24:00:00(\.0+)?)` + timezone + `$`)
	gYearMonthRegex = regexp.MustCompile(`^-?\d{4,}-(0[1-9]|1[0-2])` + timezone + `$`)
	gYearRegex      = regexp.MustCompile(`^-?\d{4,}` + timezone + `$`)
	gMonthDayRegex  = regexp.MustCompile(`^--(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])` + timezone + `$`)
	gDayRegex       = regexp.MustCompile(`^---(0[1-9]|[12]\d|3[01])` + timezone + `$`)
	gMonthRegex     = regexp.MustCompile(`^--(0[1-9]|1[0-2])` + timezone + `$`)
	hexBinaryRegex  = regexp.MustCompile(`^([0-9a-fA-F]{2})*$`)
	languageRegex   = regexp.MustCompile(`^[a-zA-Z]{1,8}(-[a-zA-Z0-9]{1,8})*$`)
	nameRegex       = regexp.MustCompile(`^[\p{L}_:][\p{L}\p{N}\p{Mn}\p{Mc}._:\-·]*$`)
	ncNameRegex     = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}\p{Mn}\p{Mc}._\-·]*$`)
	nmtokenRegex    = regexp.MustCompile(`^[\p{L}\p{N}\p{Mn}\p{Mc}._:\-·]+$`)
	qnameRegex      = regexp.MustCompile(`^([\p{L}_][\p{L}\p{N}\p{Mn}\p{Mc}._\-·]*:)?[\p{L}_][\p{L}\p{N}\p{Mn}\p{Mc}._\-·]*$`)

	dayTimeDurationRegex   = regexp.MustCompile(`^-?P(\d+D)?(T(\d+H)?(\d+M)?(\d+(\.\d+)?S)?)?$`)
	yearMonthDurationRegex = regexp.MustCompile(`^-?P(\d+Y)?(\d+M)?$`)
)

var (
	anySimpleType = &SimpleType{
		Name:      xml.Name{Space: XSD_NAMESPACE, Local: "anySimpleType"},
		Primitive: "anySimpleType",
		Builtin:   "anySimpleType",
		resolve:   resolved,
	}

	anyType = func() *ComplexType {
		t := &ComplexType{
			Name: xml.Name{Space: XSD_NAMESPACE, Local: "anyType"},
			Kind: MixedContent,
			Content: &Particle{
				Kind:     AnyParticle,
				Min:      0,
				Max:      UNBOUNDED,
				Wildcard: &Wildcard{Any: true, ProcessContents: Lax},
			},
			AnyAttribute: &Wildcard{Any: true, ProcessContents: Lax},
			resolve:      resolved,
		}
		t.model = newAutomaton(t.Content)
		return t
	}()

	builtinTypes = makeBuiltinTypes()
)

type builtinDefinition struct {
	name       string
	base       string
	lexical    func(string) bool
	whiteSpace string
	min, max   string
	listOf     string
	integer    bool
}

func makeBuiltinTypes() map[string]*SimpleType {
	matches := func(r *regexp.Regexp) func(string) bool {
		return r.MatchString
	}

	definitions := []builtinDefinition{
		{name: "anyAtomicType", base: "anySimpleType"},

		{name: "string", base: "anySimpleType", whiteSpace: "preserve"},
		{name: "boolean", base: "anySimpleType", lexical: matches(booleanRegex)},
		{name: "decimal", base: "anySimpleType", lexical: matches(decimalRegex)},
		{name: "float", base: "anySimpleType", lexical: matches(floatRegex)},
		{name: "double", base: "anySimpleType", lexical: matches(floatRegex)},
		{name: "duration", base: "anySimpleType", lexical: isDuration},
		{name: "dateTime", base: "anySimpleType", lexical: matches(dateTimeRegex)},
		{name: "time", base: "anySimpleType", lexical: matches(timeRegex)},
		{name: "date", base: "anySimpleType", lexical: matches(dateRegex)},
		{name: "gYearMonth", base: "anySimpleType", lexical: matches(gYearMonthRegex)},
		{name: "gYear", base: "anySimpleType", lexical: matches(gYearRegex)},
		{name: "gMonthDay", base: "anySimpleType", lexical: matches(gMonthDayRegex)},
		{name: "gDay", base: "anySimpleType", lexical: matches(gDayRegex)},
		{name: "gMonth", base: "anySimpleType", lexical: matches(gMonthRegex)},
		{name: "hexBinary", base: "anySimpleType", lexical: matches(hexBinaryRegex)},
		{name: "base64Binary", base: "anySimpleType", lexical: isBase64},
		{name: "anyURI", base: "anySimpleType"},
		{name: "QName", base: "anySimpleType", lexical: matches(qnameRegex)},
		{name: "NOTATION", base: "anySimpleType", lexical: matches(qnameRegex)},

		{name: "normalizedString", base: "string", whiteSpace: "replace"},
		{name: "token", base: "normalizedString", whiteSpace: "collapse"},
		{name: "language", base: "token", lexical: matches(languageRegex)},
		{name: "NMTOKEN", base: "token", lexical: matches(nmtokenRegex)},
		{name: "Name", base: "token", lexical: matches(nameRegex)},
		{name: "NCName", base: "Name", lexical: matches(ncNameRegex)},
		{name: "ID", base: "NCName"},
		{name: "IDREF", base: "NCName"},
		{name: "ENTITY", base: "NCName"},
		{name: "NMTOKENS", listOf: "NMTOKEN"},
		{name: "IDREFS", listOf: "IDREF"},
		{name: "ENTITIES", listOf: "ENTITY"},

		{name: "integer", base: "decimal", lexical: matches(integerRegex), integer: true},
		{name: "nonPositiveInteger", base: "integer", max: "0"},
		{name: "negativeInteger", base: "nonPositiveInteger", max: "-1"},
		{name: "long", base: "integer", min: "-9223372036854775808", max: "9223372036854775807"},
		{name: "int", base: "long", min: "-2147483648", max: "2147483647"},
		{name: "short", base: "int", min: "-32768", max: "32767"},
		{name: "byte", base: "short", min: "-128", max: "127"},
		{name: "nonNegativeInteger", base: "integer", min: "0"},
		{name: "unsignedLong", base: "nonNegativeInteger", max: "18446744073709551615"},
		{name: "unsignedInt", base: "unsignedLong", max: "4294967295"},
		{name: "unsignedShort", base: "unsignedInt", max: "65535"},
		{name: "unsignedByte", base: "unsignedShort", max: "255"},
		{name: "positiveInteger", base: "nonNegativeInteger", min: "1"},

		{name: "dateTimeStamp", base: "dateTime", lexical: hasTimezone},
		{name: "dayTimeDuration", base: "duration", lexical: matches(dayTimeDurationRegex)},
		{name: "yearMonthDuration", base: "duration", lexical: matches(yearMonthDurationRegex)},
	}

	types := map[string]*SimpleType{
		"anySimpleType": anySimpleType,
	}

	for _, def := range definitions {
		t := &SimpleType{
			Name:    xml.Name{Space: XSD_NAMESPACE, Local: def.name},
			Builtin: def.name,
			lexical: def.lexical,
			resolve: resolved,
		}

		if def.listOf != "" {
			t.Variety = List
			t.Base = anySimpleType
			t.ItemType = types[def.listOf]
			t.Primitive = "anySimpleType"
			one := 1
			t.Facets.minLength = &one
			types[def.name] = t
			continue
		}

		base := types[def.base]
		t.Base = base
		if base == anySimpleType {
			t.Primitive = def.name
		} else {
			t.Primitive = base.Primitive
		}

		t.Facets.whiteSpace = def.whiteSpace
		if def.min != "" {
			min := def.min
			t.Facets.minInclusive = &min
		}
		if def.max != "" {
			max := def.max
			t.Facets.maxInclusive = &max
		}
		if def.integer {
			zero := 0
			t.Facets.fractionDigits = &zero
		}
		types[def.name] = t
	}

	return types
}

func isDuration(value string) bool {
	if !durationRegex.MatchString(value) {
		return false
	}
	trimmed := strings.TrimPrefix(value, "-")
	return trimmed != "P" && !strings.HasSuffix(trimmed, "T")
}

func isBase64(value string) bool {
	compact := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, value)
	_, err := base64.StdEncoding.DecodeString(compact)
	return err == nil
}

func hasTimezone(value string) bool {
	return strings.HasSuffix(value, "Z") || len(value) > 6 && (value[len(value)-6] == '+' || value[len(value)-6] == '-')
}
