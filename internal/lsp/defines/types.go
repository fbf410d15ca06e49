package defines

type DocumentUri string

type URI string

/**
 * Position in a text document expressed as zero-based line and zero-based character offset.
 * A position is between two characters like an 'insert' cursor in a editor.
 *
 * The offsets are based on a UTF-16 string representation. So a string of the form
 * `a𐐀b` the character offset of the character `a` is 0, the character offset of `𐐀`
 * is 1 and the character offset of b is 3 since `𐐀` is represented using two code
 * units in UTF-16.
 */
type Position struct {

	// Line position in a document (zero-based).
	Line uint `json:"line"`

	// Character offset on a line in a document (zero-based). If the character value is greater
	// than the line length it defaults back to the line length.
	Character uint `json:"character"`
}

/**
 * A range in a text document expressed as (zero-based) start and end positions.
 */
type Range struct {

	// The range's start position
	Start Position `json:"start"`

	// The range's end position.
	End Position `json:"end"`
}

/**
 * Represents a location inside a resource, such as a line
 * inside a text file.
 */
type Location struct {
	Uri DocumentUri `json:"uri,omitempty"`

	Range Range `json:"range"`
}

/**
 * Represents a diagnostic, such as a compiler error or warning. Diagnostic objects
 * are only valid in the scope of a resource.
 */
type Diagnostic struct {

	// The range at which the message applies
	Range Range `json:"range"`

	// The diagnostic's severity. Can be omitted. If omitted it is up to the
	// client to interpret diagnostics as error, warning, info or hint.
	Severity *DiagnosticSeverity `json:"severity,omitempty"`

	// The diagnostic's code, which usually appear in the user interface.
	Code interface{} `json:"code,omitempty"` // int, string,

	// A human-readable string describing the source of this
	// diagnostic, e.g. 'typescript' or 'super lint'. It usually
	// appears in the user interface.
	Source *string `json:"source,omitempty"`

	// The diagnostic's message. It usually appears in the user interface
	Message string `json:"message"`

	// A data entry field that is preserved between a `textDocumentpublishDiagnostics`
	// notification and `textDocumentcodeAction` request.
	Data interface{} `json:"data,omitempty"`
}

/**
 * A textual edit applicable to a text document.
 */
type TextEdit struct {

	// The range of the text document to be manipulated. To insert
	// text into a document create a range where start === end.
	Range Range `json:"range"`

	// The string to be inserted. For delete operations use an
	// empty string.
	NewText string `json:"newText"`
}

/**
 * A literal to identify a text document in the client.
 */
type TextDocumentIdentifier struct {

	// The text document's uri.
	Uri DocumentUri `json:"uri"`
}

/**
 * A text document identifier to denote a specific version of a text document.
 */
type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier

	// The version number of this document.
	Version int `json:"version"`
}

/**
 * An item to transfer a text document from the client to the
 * server.
 */
type TextDocumentItem struct {

	// The text document's uri.
	Uri DocumentUri `json:"uri"`

	// The text document's language identifier
	LanguageId string `json:"languageId,omitempty"`

	// The version number of this document (it will increase after each
	// change, including undoredo).
	Version int `json:"version"`

	// The content of the opened text document.
	Text string `json:"text"`
}

/**
 * A completion item represents a text snippet that is
 * proposed to complete text that is being typed.
 */
type CompletionItem struct {

	// The label of this completion item.
	//
	// The label property is also by default the text that
	// is inserted when selecting this completion.
	Label string `json:"label"`

	// The kind of this completion item. Based of the kind
	// an icon is chosen by the editor.
	Kind *CompletionItemKind `json:"kind,omitempty"`

	// A human-readable string with additional information
	// about this item, like type or symbol information.
	Detail *string `json:"detail,omitempty"`

	// A human-readable string that represents a doc-comment.
	Documentation interface{} `json:"documentation,omitempty"` // string, MarkupContent,

	// A string that should be used when comparing this item
	// with other items. When `falsy` the [label](#CompletionItem.label)
	// is used.
	SortText *string `json:"sortText,omitempty"`

	// A string that should be used when filtering a set of
	// completion items. When `falsy` the [label](#CompletionItem.label)
	// is used.
	FilterText *string `json:"filterText,omitempty"`

	// A string that should be inserted into a document when selecting
	// this completion. When `falsy` the [label](#CompletionItem.label)
	// is used.
	InsertText *string `json:"insertText,omitempty"`
}

/**
 * Represents a collection of [completion items](#CompletionItem) to be presented
 * in the editor.
 */
type CompletionList struct {

	// This list it not complete. Further typing results in recomputing this list.
	IsIncomplete bool `json:"isIncomplete"`

	// The completion items.
	Items []CompletionItem `json:"items"`
}

/**
 * The diagnostic's severity.
 */
type DiagnosticSeverity int

var diagnosticSeverityStringMap = map[DiagnosticSeverity]string{
	DiagnosticSeverityError:       "Error",
	DiagnosticSeverityWarning:     "Warning",
	DiagnosticSeverityInformation: "Information",
	DiagnosticSeverityHint:        "Hint",
}

func (i DiagnosticSeverity) String() string {
	if s, ok := diagnosticSeverityStringMap[i]; ok {
		return s
	}
	return "unknown"
}

const (
	/**
	 * Reports an error.
	 */
	DiagnosticSeverityError DiagnosticSeverity = 1
	/**
	 * Reports a warning.
	 */
	DiagnosticSeverityWarning DiagnosticSeverity = 2
	/**
	 * Reports an information.
	 */
	DiagnosticSeverityInformation DiagnosticSeverity = 3
	/**
	 * Reports a hint.
	 */
	DiagnosticSeverityHint DiagnosticSeverity = 4
)

/**
 * The kind of a completion entry.
 */
type CompletionItemKind int

var completionItemKindStringMap = map[CompletionItemKind]string{
	CompletionItemKindText:          "Text",
	CompletionItemKindMethod:        "Method",
	CompletionItemKindFunction:      "Function",
	CompletionItemKindConstructor:   "Constructor",
	CompletionItemKindField:         "Field",
	CompletionItemKindVariable:      "Variable",
	CompletionItemKindClass:         "Class",
	CompletionItemKindInterface:     "Interface",
	CompletionItemKindModule:        "Module",
	CompletionItemKindProperty:      "Property",
	CompletionItemKindUnit:          "Unit",
	CompletionItemKindValue:         "Value",
	CompletionItemKindEnum:          "Enum",
	CompletionItemKindKeyword:       "Keyword",
	CompletionItemKindSnippet:       "Snippet",
	CompletionItemKindColor:         "Color",
	CompletionItemKindFile:          "File",
	CompletionItemKindReference:     "Reference",
	CompletionItemKindFolder:        "Folder",
	CompletionItemKindEnumMember:    "EnumMember",
	CompletionItemKindConstant:      "Constant",
	CompletionItemKindStruct:        "Struct",
	CompletionItemKindEvent:         "Event",
	CompletionItemKindOperator:      "Operator",
	CompletionItemKindTypeParameter: "TypeParameter",
}

func (i CompletionItemKind) String() string {
	if s, ok := completionItemKindStringMap[i]; ok {
		return s
	}
	return "unknown"
}

const (
	CompletionItemKindText          CompletionItemKind = 1
	CompletionItemKindMethod        CompletionItemKind = 2
	CompletionItemKindFunction      CompletionItemKind = 3
	CompletionItemKindConstructor   CompletionItemKind = 4
	CompletionItemKindField         CompletionItemKind = 5
	CompletionItemKindVariable      CompletionItemKind = 6
	CompletionItemKindClass         CompletionItemKind = 7
	CompletionItemKindInterface     CompletionItemKind = 8
	CompletionItemKindModule        CompletionItemKind = 9
	CompletionItemKindProperty      CompletionItemKind = 10
	CompletionItemKindUnit          CompletionItemKind = 11
	CompletionItemKindValue         CompletionItemKind = 12
	CompletionItemKindEnum          CompletionItemKind = 13
	CompletionItemKindKeyword       CompletionItemKind = 14
	CompletionItemKindSnippet       CompletionItemKind = 15
	CompletionItemKindColor         CompletionItemKind = 16
	CompletionItemKindFile          CompletionItemKind = 17
	CompletionItemKindReference     CompletionItemKind = 18
	CompletionItemKindFolder        CompletionItemKind = 19
	CompletionItemKindEnumMember    CompletionItemKind = 20
	CompletionItemKindConstant      CompletionItemKind = 21
	CompletionItemKindStruct        CompletionItemKind = 22
	CompletionItemKindEvent         CompletionItemKind = 23
	CompletionItemKindOperator      CompletionItemKind = 24
	CompletionItemKindTypeParameter CompletionItemKind = 25
)

/**
 * Defines how the host (editor) should sync document changes to the language server.
 */
type TextDocumentSyncKind int

var textDocumentSyncKindStringMap = map[TextDocumentSyncKind]string{
	TextDocumentSyncKindNone:        "None",
	TextDocumentSyncKindFull:        "Full",
	TextDocumentSyncKindIncremental: "Incremental",
}

func (i TextDocumentSyncKind) String() string {
	if s, ok := textDocumentSyncKindStringMap[i]; ok {
		return s
	}
	return "unknown"
}

const (
	/**
	 * Documents should not be synced at all.
	 */
	TextDocumentSyncKindNone TextDocumentSyncKind = 0
	/**
	 * Documents are synced by always sending the full content
	 * of the document.
	 */
	TextDocumentSyncKindFull TextDocumentSyncKind = 1
	/**
	 * Documents are synced by sending the full content on open.
	 * After that only incremental updates to the document are
	 * send.
	 */
	TextDocumentSyncKindIncremental TextDocumentSyncKind = 2
)

/**
 * The message type
 */
type MessageType int

var messageTypeStringMap = map[MessageType]string{
	MessageTypeError:   "Error",
	MessageTypeWarning: "Warning",
	MessageTypeInfo:    "Info",
	MessageTypeLog:     "Log",
}

func (i MessageType) String() string {
	if s, ok := messageTypeStringMap[i]; ok {
		return s
	}
	return "unknown"
}

const (
	/**
	 * An error message.
	 */
	MessageTypeError MessageType = 1
	/**
	 * A warning message.
	 */
	MessageTypeWarning MessageType = 2
	/**
	 * An information message.
	 */
	MessageTypeInfo MessageType = 3
	/**
	 * A log message.
	 */
	MessageTypeLog MessageType = 4
)

/**
 * How a completion was triggered
 */
type CompletionTriggerKind int

const (
	/**
	 * Completion was triggered by typing an identifier (24x7 code
	 * complete), manual invocation (e.g Ctrl+Space) or via API.
	 */
	CompletionTriggerKindInvoked CompletionTriggerKind = 1
	/**
	 * Completion was triggered by a trigger character specified by
	 * the `triggerCharacters` properties of the `CompletionRegistrationOptions`.
	 */
	CompletionTriggerKindTriggerCharacter CompletionTriggerKind = 2
	/**
	 * Completion was re-triggered as current completion list is incomplete
	 */
	CompletionTriggerKindTriggerForIncompleteCompletions CompletionTriggerKind = 3
)
