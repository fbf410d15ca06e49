package xsd

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var errUnsupportedPattern = errors.New("unsupported pattern")

type facets struct {
	enumeration    []string
	patterns       []*regexp.Regexp
	patternSources []string

	length, minLength, maxLength *int
	totalDigits, fractionDigits  *int

	minInclusive, maxInclusive *string
	minExclusive, maxExclusive *string

	whiteSpace string
}

// addPattern adds a pattern facet, patterns using constructs that cannot be translated are ignored.
func (f *facets) addPattern(pattern string) {
	regex, err := compileXSDPattern(pattern)
	if err != nil {
		return
	}
	f.patterns = append(f.patterns, regex)
	f.patternSources = append(f.patternSources, pattern)
}

type valueError struct {
	code    ErrorCode
	message string
}

// validateValue checks a lexical value against the type, it returns the normalized value.
func (t *SimpleType) validateValue(raw string) (string, *valueError) {
	value := normalizeWhiteSpace(raw, t.whiteSpace())

	switch t.Variety {
	case List:
		items := strings.Fields(value)
		for _, item := range items {
			if _, err := t.ItemType.validateValue(item); err != nil {
				return value, &valueError{
					code:    ErrDatatypeInvalid,
					message: fmt.Sprintf("'%s' is not a valid value of the %s.", value, t.description()),
				}
			}
		}
		for step := t; step != nil && step.Variety == List; step = step.Base {
			if err := step.checkFacets(t, value, len(items)); err != nil {
				return value, err
			}
		}
	case Union:
		valid := false
		for _, member := range t.MemberTypes {
			if _, err := member.validateValue(value); err == nil {
				valid = true
				break
			}
		}
		if !valid && len(t.MemberTypes) > 0 {
			return value, &valueError{
				code:    ErrDatatypeInvalid,
				message: fmt.Sprintf("'%s' is not a valid value of the %s.", value, t.description()),
			}
		}
		for step := t; step != nil && step.Variety == Union; step = step.Base {
			if err := step.checkFacets(t, value, -1); err != nil {
				return value, err
			}
		}
	default:
		for step := t; step != nil; step = step.Base {
			if step.lexical != nil && !step.lexical(value) {
				return value, &valueError{
					code:    ErrDatatypeInvalid,
					message: fmt.Sprintf("'%s' is not a valid value of the %s.", value, t.description()),
				}
			}
		}
		length := valueLength(t.Primitive, value)
		for step := t; step != nil; step = step.Base {
			if err := step.checkFacets(t, value, length); err != nil {
				return value, err
			}
		}
	}
	return value, nil
}

func (t *SimpleType) whiteSpace() string {
	if t.Variety == List {
		return "collapse"
	}
	for step := t; step != nil; step = step.Base {
		if step.Facets.whiteSpace != "" {
			return step.Facets.whiteSpace
		}
	}
	switch t.Primitive {
	case "string", "anySimpleType", "":
		return "preserve"
	}
	return "collapse"
}

func (t *SimpleType) description() string {
	variety := "atomic"
	switch t.Variety {
	case List:
		variety = "list"
	case Union:
		variety = "union"
	}

	if t.Anonymous || t.Name.Local == "" {
		return "local " + variety + " type"
	}
	return fmt.Sprintf("%s type '%s'", variety, displayTypeName(t))
}

func displayTypeName(t Type) string {
	name := t.TypeName()
	if name.Space == XSD_NAMESPACE {
		return "xs:" + name.Local
	}
	return formatName(name)
}

// checkFacets checks the facets of the restriction step, t is the type being validated. length is the length of
// the value or -1 if the length facets do not apply.
func (step *SimpleType) checkFacets(t *SimpleType, value string, length int) *valueError {
	f := &step.Facets
	builtin := step.Name.Space == XSD_NAMESPACE

	fail := func(code ErrorCode, facet string, format string, args ...any) *valueError {
		if builtin {
			return &valueError{
				code:    ErrDatatypeInvalid,
				message: fmt.Sprintf("'%s' is not a valid value of the %s.", value, t.description()),
			}
		}
		return &valueError{code: code, message: fmt.Sprintf("[facet '%s'] ", facet) + fmt.Sprintf(format, args...)}
	}

	if len(f.enumeration) > 0 {
		found := false
		for _, enumValue := range f.enumeration {
			if valuesEqual(t.Primitive, value, normalizeWhiteSpace(enumValue, t.whiteSpace())) {
				found = true
				break
			}
		}
		if !found {
			quoted := make([]string, len(f.enumeration))
			for i, enumValue := range f.enumeration {
				quoted[i] = "'" + enumValue + "'"
			}
			return fail(ErrFacetEnumeration, "enumeration", "The value '%s' is not an element of the set {%s}.", value, strings.Join(quoted, ", "))
		}
	}

	if len(f.patterns) > 0 {
		matched := false
		for _, pattern := range f.patterns {
			if pattern.MatchString(value) {
				matched = true
				break
			}
		}
		if !matched {
			return fail(ErrFacetPattern, "pattern", "The value '%s' is not accepted by the pattern '%s'.", value, strings.Join(f.patternSources, "|"))
		}
	}

	if length >= 0 {
		if f.length != nil && length != *f.length {
			return fail(ErrFacetLength, "length", "The value '%s' has a length of '%d'; this differs from the allowed length of '%d'.", value, length, *f.length)
		}
		if f.minLength != nil && length < *f.minLength {
			return fail(ErrFacetMinLength, "minLength", "The value '%s' has a length of '%d'; this underruns the allowed minimum length of '%d'.", value, length, *f.minLength)
		}
		if f.maxLength != nil && length > *f.maxLength {
			return fail(ErrFacetMaxLength, "maxLength", "The value '%s' has a length of '%d'; this exceeds the allowed maximum length of '%d'.", value, length, *f.maxLength)
		}
	}

	if t.Variety == Atomic {
		if f.minInclusive != nil {
			if cmp, ok := compareValues(t.Primitive, value, *f.minInclusive); ok && cmp < 0 {
				return fail(ErrFacetMinInclusive, "minInclusive", "The value '%s' is less than the minimum value allowed ('%s').", value, *f.minInclusive)
			}
		}
		if f.maxInclusive != nil {
			if cmp, ok := compareValues(t.Primitive, value, *f.maxInclusive); ok && cmp > 0 {
				return fail(ErrFacetMaxInclusive, "maxInclusive", "The value '%s' is greater than the maximum value allowed ('%s').", value, *f.maxInclusive)
			}
		}
		if f.minExclusive != nil {
			if cmp, ok := compareValues(t.Primitive, value, *f.minExclusive); ok && cmp <= 0 {
				return fail(ErrFacetMinExclusive, "minExclusive", "The value '%s' must be greater than '%s'.", value, *f.minExclusive)
			}
		}
		if f.maxExclusive != nil {
			if cmp, ok := compareValues(t.Primitive, value, *f.maxExclusive); ok && cmp >= 0 {
				return fail(ErrFacetMaxExclusive, "maxExclusive", "The value '%s' must be less than '%s'.", value, *f.maxExclusive)
			}
		}

		if t.Primitive == "decimal" && (f.totalDigits != nil || f.fractionDigits != nil) {
			total, fraction := countDigits(value)
			if f.totalDigits != nil && total > *f.totalDigits {
				return fail(ErrFacetTotalDigits, "totalDigits", "The value '%s' has more digits than are allowed ('%d').", value, *f.totalDigits)
			}
			if f.fractionDigits != nil && fraction > *f.fractionDigits {
				return fail(ErrFacetFractionDigits, "fractionDigits", "The value '%s' has more fractional digits than are allowed ('%d').", value, *f.fractionDigits)
			}
		}
	}

	return nil
}

func normalizeWhiteSpace(value string, mode string) string {
	switch mode {
	case "replace":
		return strings.Map(func(r rune) rune {
			if r == '\t' || r == '\n' || r == '\r' {
				return ' '
			}
			return r
		}, value)
	case "collapse":
		return strings.Join(strings.Fields(value), " ")
	}
	return value
}

// valueLength returns the length of a value as defined for the length facets, -1 if they do not apply.
func valueLength(primitive string, value string) int {
	switch primitive {
	case "hexBinary":
		return len(value) / 2
	case "base64Binary":
		compact := strings.Join(strings.Fields(value), "")
		decoded, err := base64.StdEncoding.DecodeString(compact)
		if err != nil {
			return -1
		}
		return len(decoded)
	case "string", "anyURI", "anySimpleType":
		return utf8.RuneCountInString(value)
	}
	return -1
}

func valuesEqual(primitive string, a, b string) bool {
	switch primitive {
	case "decimal", "float", "double":
		if cmp, ok := compareValues(primitive, a, b); ok {
			return cmp == 0
		}
	case "boolean":
		return (a == "true" || a == "1") == (b == "true" || b == "1")
	}
	return a == b
}

// compareValues compares two values of the primitive type, ok is false if the values are not comparable.
func compareValues(primitive string, a, b string) (cmp int, ok bool) {
	switch primitive {
	case "decimal":
		x, okX := new(big.Rat).SetString(strings.TrimPrefix(a, "+"))
		y, okY := new(big.Rat).SetString(strings.TrimPrefix(b, "+"))
		if !okX || !okY {
			return 0, false
		}
		return x.Cmp(y), true
	case "float", "double":
		x, errX := strconv.ParseFloat(a, 64)
		y, errY := strconv.ParseFloat(b, 64)
		if errX != nil || errY != nil || math.IsNaN(x) || math.IsNaN(y) {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case "dateTime", "date", "time", "gYear", "gYearMonth", "gMonthDay", "gDay", "gMonth":
		if len(a) != len(b) || strings.HasPrefix(a, "-") || strings.HasPrefix(b, "-") {
			return 0, false
		}
		return strings.Compare(a, b), true
	}
	return 0, false
}

func countDigits(value string) (total, fraction int) {
	value = strings.TrimLeft(value, "+-")
	integerPart, fractionPart, _ := strings.Cut(value, ".")
	integerPart = strings.TrimLeft(integerPart, "0")
	fractionPart = strings.TrimRight(fractionPart, "0")
	total = len(integerPart) + len(fractionPart)
	if total == 0 {
		total = 1
	}
	return total, len(fractionPart)
}

const (
	nameStartChars = `_:A-Za-z\p{L}`
	nameChars      = `\-._:A-Za-z0-9\p{L}\p{N}\p{Mn}\p{Mc}`
)

// compileXSDPattern translates a pattern of the XML Schema regular expression language to a Go regular
// expression. XSD patterns are implicitly anchored and have no anchor characters.
func compileXSDPattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`^(?:`)

	classDepth := 0
	runes := []rune(pattern)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes):
			i++
			escaped := runes[i]
			switch escaped {
			case 'i', 'c', 'I', 'C':
				chars := nameStartChars
				if escaped == 'c' || escaped == 'C' {
					chars = nameChars
				}
				negated := escaped == 'I' || escaped == 'C'
				switch {
				case classDepth > 0 && negated:
					return nil, errUnsupportedPattern
				case classDepth > 0:
					b.WriteString(chars)
				case negated:
					b.WriteString("[^" + chars + "]")
				default:
					b.WriteString("[" + chars + "]")
				}
			default:
				b.WriteRune('\\')
				b.WriteRune(escaped)
			}
		case r == '[':
			classDepth++
			b.WriteRune(r)
		case r == ']' && classDepth > 0:
			classDepth--
			b.WriteRune(r)
		case r == '-' && classDepth > 0 && i+1 < len(runes) && runes[i+1] == '[':
			//character class subtraction
			return nil, errUnsupportedPattern
		case (r == '^' && classDepth == 0) || r == '$':
			b.WriteRune('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}

	b.WriteString(`)$`)
	return regexp.Compile(b.String())
}
