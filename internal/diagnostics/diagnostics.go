package diagnostics

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/xmlls/xmlls/internal/lsp/defines"
	"github.com/xmlls/xmlls/internal/schemacache"
	"github.com/xmlls/xmlls/internal/xmldoc"
	"github.com/xmlls/xmlls/internal/xsd"
)

const (
	SOURCE = "xmlls"

	PUBLISH_DIAGNOSTICS_METHOD = "textDocument/publishDiagnostics"
)

// FromErrors converts validation errors to diagnostics, the diagnostics have an empty range located at the
// position of the error.
func FromErrors(text string, errs []xsd.Error) []defines.Diagnostic {
	diagnostics := make([]defines.Diagnostic, 0, len(errs))

	for _, err := range errs {
		line := max(0, err.Line-1)
		lineText := xmldoc.LineText(text, line)
		character := xmldoc.UTF16Column(lineText, max(0, err.Column-1))

		pos := defines.Position{Line: uint(line), Character: uint(character)}
		diagnostics = append(diagnostics, newDiagnostic(defines.Range{Start: pos, End: pos}, string(err.Code), err.Message))
	}
	return diagnostics
}

// FromSchemaLoadError returns a diagnostic spanning the start tag of the root element, or the start of
// the document if there is no root element.
func FromSchemaLoadError(text string, err error) defines.Diagnostic {
	rng := defines.Range{}

	if root, rootErr := xmldoc.ReadRoot(text); rootErr == nil {
		rng.Start = toLSPPosition(xmldoc.PositionAt(text, root.Start))
		rng.End = toLSPPosition(xmldoc.PositionAt(text, root.End))
	}

	message := err.Error()
	var loadErr *schemacache.SchemaLoadError
	if errors.As(err, &loadErr) {
		message = "schema " + loadErr.Path + " could not be loaded: " + loadErr.Err.Error()
	}
	return newDiagnostic(rng, "schema-load-error", message)
}

func newDiagnostic(rng defines.Range, code string, message string) defines.Diagnostic {
	severity := defines.DiagnosticSeverityError
	source := SOURCE

	return defines.Diagnostic{
		Range:    rng,
		Severity: &severity,
		Code:     code,
		Source:   &source,
		Message:  message,
	}
}

func toLSPPosition(pos xmldoc.Position) defines.Position {
	return defines.Position{Line: uint(pos.Line), Character: uint(pos.Character)}
}

// A Notifier sends a notification to the client, *jsonrpc.Session implements Notifier.
type Notifier interface {
	NotifyWithParams(method string, params interface{}) error
}

// Publisher sends diagnostics to the client, each publication replaces the previous set of the document.
type Publisher struct {
	notifier Notifier
	logger   zerolog.Logger
}

func NewPublisher(notifier Notifier, logger zerolog.Logger) *Publisher {
	return &Publisher{notifier: notifier, logger: logger}
}

func (p *Publisher) Publish(uri string, version int32, diagnostics []defines.Diagnostic) error {
	if diagnostics == nil {
		diagnostics = []defines.Diagnostic{}
	}
	v := int(version)

	err := p.notifier.NotifyWithParams(PUBLISH_DIAGNOSTICS_METHOD, defines.PublishDiagnosticsParams{
		Uri:         defines.DocumentUri(uri),
		Version:     &v,
		Diagnostics: diagnostics,
	})

	if err != nil {
		p.logger.Error().Err(err).Str("uri", uri).Msg("failed to publish diagnostics")
		return err
	}

	p.logger.Debug().Str("uri", uri).Int32("version", version).Int("count", len(diagnostics)).Msg("diagnostics published")
	return nil
}
