package completion

import (
	"context"
	"encoding/xml"
	"errors"

	"github.com/rs/zerolog"
	"github.com/xmlls/xmlls/internal/locator"
	"github.com/xmlls/xmlls/internal/lsp/defines"
	"github.com/xmlls/xmlls/internal/xmldoc"
	"github.com/xmlls/xmlls/internal/xsd"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const CLOSE_LABEL_PREFIX = "close "

var ErrNoSchema = errors.New("no schema resolved for the document")

// An Item is a completion suggestion, it is converted to a defines.CompletionItem by ToLSP.
type Item struct {
	Label      string
	InsertText string
	Detail     string
	Kind       defines.CompletionItemKind
}

type Request struct {
	Text string

	// zero-based, Character is counted in UTF-16 code units.
	Line      int
	Character int

	// nil if no schema applies to the document.
	Resolved *locator.ResolvedSchema
}

// SchemaSource is implemented by *schemacache.Cache.
type SchemaSource interface {
	GetOrCompile(ctx context.Context, path string) (*xsd.Schema, error)
}

type Provider struct {
	schemas SchemaSource
	logger  zerolog.Logger
}

func NewProvider(schemas SchemaSource, logger zerolog.Logger) *Provider {
	return &Provider{
		schemas: schemas,
		logger:  logger,
	}
}

// Complete returns the child elements permitted at the cursor followed by an item closing the innermost
// open element. The returned error is only informative: the item list is empty in that case and callers
// should answer the request with it.
func (p *Provider) Complete(ctx context.Context, req Request) ([]Item, error) {
	if req.Resolved == nil {
		return []Item{}, ErrNoSchema
	}

	schema, err := p.schemas.GetOrCompile(ctx, req.Resolved.CanonicalPath)
	if err != nil {
		return []Item{}, err
	}

	offset := xmldoc.OffsetAt(req.Text, xmldoc.Position{Line: req.Line, Character: req.Character})
	cursor, err := xmldoc.ContextAt(req.Text, offset)
	if err != nil {
		return []Item{}, err
	}

	parent, ok := cursor.Parent()
	if !ok || cursor.InsideStartTag {
		return []Item{}, nil
	}

	defaultNS := req.Resolved.DefaultNamespaceOverride
	decl, ok := lookupParent(schema, cursor.Stack, defaultNS)

	var items []Item
	if ok {
		items = childItems(decl.ChildElements(), parent, defaultNS, cursor.AfterLessThan)
	} else {
		p.logger.Debug().Str("schema", schema.Path()).Str("element", parent.QualifiedName()).
			Msg("no declaration found for the parent element")
	}

	closeTag := "</" + parent.QualifiedName() + ">"
	if cursor.AfterLessThan {
		closeTag = closeTag[1:]
	}

	items = append(items, Item{
		Label:      CLOSE_LABEL_PREFIX + parent.LocalName,
		InsertText: closeTag,
		Kind:       defines.CompletionItemKindStruct,
	})
	return items, nil
}

func lookupParent(schema *xsd.Schema, stack []xmldoc.Element, defaultNS string) (*xsd.ElementDecl, bool) {
	path := make([]xml.Name, 0, len(stack))
	for _, elem := range stack {
		path = append(path, xml.Name{Space: elem.Namespace, Local: elem.LocalName})
	}

	if decl, ok := schema.LookupPath(path, defaultNS); ok {
		return decl, true
	}

	//documents that are not valid can still get suggestions.
	return schema.FindElement(stack[len(stack)-1].LocalName)
}

// childItems returns one item per distinct label, sorted by label.
func childItems(children []*xsd.ElementDecl, parent xmldoc.Element, defaultNS string, afterLessThan bool) []Item {
	byLabel := map[string]Item{}

	for _, child := range children {
		label, detail := renderName(child.Name, parent, defaultNS)
		if _, ok := byLabel[label]; ok {
			continue
		}

		insertText := "<" + label + ">"
		if afterLessThan {
			insertText = label
		}

		byLabel[label] = Item{
			Label:      label,
			InsertText: insertText,
			Detail:     detail,
			Kind:       defines.CompletionItemKindStruct,
		}
	}

	labels := maps.Keys(byLabel)
	slices.Sort(labels)

	items := make([]Item, 0, len(labels))
	for _, label := range labels {
		items = append(items, byLabel[label])
	}
	return items
}

// renderName returns the name as it should be written inside parent. detail is the namespace when no prefix
// is bound to it.
func renderName(name xml.Name, parent xmldoc.Element, defaultNS string) (label string, detail string) {
	if name.Space == "" || name.Space == defaultNS {
		return name.Local, ""
	}

	prefix, ok := parent.PrefixFor(name.Space)
	switch {
	case !ok:
		return name.Local, name.Space
	case prefix == "":
		return name.Local, ""
	default:
		return prefix + ":" + name.Local, ""
	}
}

func ToLSP(items []Item) []defines.CompletionItem {
	completions := make([]defines.CompletionItem, 0, len(items))
	for _, item := range items {
		kind := item.Kind
		insertText := item.InsertText

		completion := defines.CompletionItem{
			Label:      item.Label,
			Kind:       &kind,
			InsertText: &insertText,
		}
		if item.Detail != "" {
			detail := item.Detail
			completion.Detail = &detail
		}
		completions = append(completions, completion)
	}
	return completions
}
