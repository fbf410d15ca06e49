package xsd

import (
	"errors"
	"fmt"
)

// ErrorCode is the W3C validation rule an error refers to, or a local code for errors
// that are not covered by a rule.
type ErrorCode string

const (
	ErrXMLParse ErrorCode = "xml-parse-error"
	ErrNoRoot   ErrorCode = "xsd-no-root"

	ErrRootNotDeclared      ErrorCode = "cvc-elt.1.a"
	ErrElementAbstract      ErrorCode = "cvc-elt.2"
	ErrElementNotNillable   ErrorCode = "cvc-elt.3.1"
	ErrNilElementNotEmpty   ErrorCode = "cvc-elt.3.2.1"
	ErrXsiTypeInvalid       ErrorCode = "cvc-elt.4.2"
	ErrElementFixedValue    ErrorCode = "cvc-elt.5.2.2.2.2"
	ErrSimpleTypeHasElement ErrorCode = "cvc-type.3.1.2"
	ErrSimpleTypeHasAttr    ErrorCode = "cvc-type.3.1.1"

	ErrEmptyContent              ErrorCode = "cvc-complex-type.2.1"
	ErrTextInElementOnly         ErrorCode = "cvc-complex-type.2.3"
	ErrMissingChildElement       ErrorCode = "cvc-complex-type.2.4.b"
	ErrUnexpectedElement         ErrorCode = "cvc-complex-type.2.4.a"
	ErrWildcardNotDeclared       ErrorCode = "cvc-complex-type.2.4.c"
	ErrAttributeNotAllowed       ErrorCode = "cvc-complex-type.3.2.2"
	ErrRequiredAttributeMissing  ErrorCode = "cvc-complex-type.4"
	ErrAttributeFixedValue       ErrorCode = "cvc-attribute.4"
	ErrDatatypeInvalid           ErrorCode = "cvc-datatype-valid.1.2.1"
	ErrFacetEnumeration          ErrorCode = "cvc-enumeration-valid"
	ErrFacetPattern              ErrorCode = "cvc-pattern-valid"
	ErrFacetLength               ErrorCode = "cvc-length-valid"
	ErrFacetMinLength            ErrorCode = "cvc-minLength-valid"
	ErrFacetMaxLength            ErrorCode = "cvc-maxLength-valid"
	ErrFacetMinInclusive         ErrorCode = "cvc-minInclusive-valid"
	ErrFacetMaxInclusive         ErrorCode = "cvc-maxInclusive-valid"
	ErrFacetMinExclusive         ErrorCode = "cvc-minExclusive-valid"
	ErrFacetMaxExclusive         ErrorCode = "cvc-maxExclusive-valid"
	ErrFacetTotalDigits          ErrorCode = "cvc-totalDigits-valid"
	ErrFacetFractionDigits       ErrorCode = "cvc-fractionDigits-valid"
	ErrExtraContentAfterRootElem ErrorCode = "xml-extra-content"
)

const MAX_ERRORS = 200

var (
	ErrSchema            = errors.New("invalid schema")
	ErrTooManyDocuments  = errors.New("too many schema documents")
	ErrUnsupportedSchema = errors.New("unsupported schema construct")
)

// An Error is a validation error, Line & Column are 1-based and Column is counted in characters.
type Error struct {
	Line    int
	Column  int
	Code    ErrorCode
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%d:%d: [%s] %s", e.Line, e.Column, e.Code, e.Message)
}

// A SchemaError is returned by the loader when a schema document cannot be parsed or compiled.
type SchemaError struct {
	Path    string
	Line    int
	Message string
}

func (e *SchemaError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *SchemaError) Unwrap() error {
	return ErrSchema
}
