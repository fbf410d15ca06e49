package lsp

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/xmlls/xmlls/internal/jsonrpc"
	"github.com/xmlls/xmlls/internal/lsp/defines"
)

type Config struct {
	OnSession jsonrpc.SessionCreationCallbackFn

	// if StdioInput & StdioOutput are nil, os.Stdin & os.Stdout are used.
	StdioInput  io.Reader
	StdioOutput io.Writer
	Logger      zerolog.Logger

	// if not nil, used instead of stdio
	MessageReaderWriter jsonrpc.MessageReaderWriter

	ServerName    string
	ServerVersion string

	TextDocumentSync   *defines.TextDocumentSyncOptions
	CompletionProvider *defines.CompletionOptions
}
