package lsp

import (
	"context"

	"github.com/xmlls/xmlls/internal/jsonrpc"
	"github.com/xmlls/xmlls/internal/lsp/defines"
)

type Methods struct {
	Opt                      Config
	onInitialize             func(ctx context.Context, req *defines.InitializeParams) (*defines.InitializeResult, *defines.InitializeError)
	onInitialized            func(ctx context.Context, req *defines.InitializedParams) error
	onShutdown               func(ctx context.Context, req *defines.NoParams) error
	onExit                   func(ctx context.Context, req *defines.NoParams) error
	onDidChangeConfiguration func(ctx context.Context, req *defines.DidChangeConfigurationParams) error
	onDidOpenTextDocument    func(ctx context.Context, req *defines.DidOpenTextDocumentParams) error
	onDidChangeTextDocument  func(ctx context.Context, req *defines.DidChangeTextDocumentParams) error
	onDidCloseTextDocument   func(ctx context.Context, req *defines.DidCloseTextDocumentParams) error
	onDidSaveTextDocument    func(ctx context.Context, req *defines.DidSaveTextDocumentParams) error
	onCompletion             func(ctx context.Context, req *defines.CompletionParams) (*[]defines.CompletionItem, error)
}

func (m *Methods) OnInitialize(f func(ctx context.Context, req *defines.InitializeParams) (result *defines.InitializeResult, err *defines.InitializeError)) {
	m.onInitialize = f
}

func (m *Methods) initialize(ctx context.Context, req interface{}) (interface{}, error) {
	params := req.(*defines.InitializeParams)
	if m.onInitialize != nil {
		res, err := m.onInitialize(ctx, params)
		if err != nil {
			return nil, jsonrpc.ResponseError{
				Code:    1,
				Message: "initialization failed",
				Data:    err,
			}
		}
		return res, nil
	}

	res, err := m.builtinInitialize(ctx, params)
	e := wrapErrorToRespError(err, 1)
	return res, e
}

func (m *Methods) initializeMethodInfo() *jsonrpc.MethodInfo {
	return &jsonrpc.MethodInfo{
		Name: "initialize",
		NewRequest: func() interface{} {
			return &defines.InitializeParams{}
		},
		Handler: m.initialize,
	}
}

func (m *Methods) OnInitialized(f func(ctx context.Context, req *defines.InitializedParams) (err error)) {
	m.onInitialized = f
}

func (m *Methods) initialized(ctx context.Context, req interface{}) (interface{}, error) {
	params := req.(*defines.InitializedParams)
	if m.onInitialized != nil {
		err := m.onInitialized(ctx, params)
		e := wrapErrorToRespError(err, 0)
		return nil, e
	}
	return nil, nil
}

func (m *Methods) initializedMethodInfo() *jsonrpc.MethodInfo {
	return &jsonrpc.MethodInfo{
		Name: "initialized",
		NewRequest: func() interface{} {
			return &defines.InitializedParams{}
		},
		Handler: m.initialized,
	}
}

func (m *Methods) OnShutdown(f func(ctx context.Context, req *defines.NoParams) (err error)) {
	m.onShutdown = f
}

func (m *Methods) shutdown(ctx context.Context, req interface{}) (interface{}, error) {
	params := req.(*defines.NoParams)
	if m.onShutdown != nil {
		err := m.onShutdown(ctx, params)
		e := wrapErrorToRespError(err, 0)
		return nil, e
	}
	return nil, nil
}

func (m *Methods) shutdownMethodInfo() *jsonrpc.MethodInfo {
	return &jsonrpc.MethodInfo{
		Name: "shutdown",
		NewRequest: func() interface{} {
			return &defines.NoParams{}
		},
		Handler: m.shutdown,
	}
}

func (m *Methods) OnExit(f func(ctx context.Context, req *defines.NoParams) (err error)) {
	m.onExit = f
}

func (m *Methods) exit(ctx context.Context, req interface{}) (interface{}, error) {
	params := req.(*defines.NoParams)
	if m.onExit != nil {
		err := m.onExit(ctx, params)
		e := wrapErrorToRespError(err, 0)
		return nil, e
	}
	if session := jsonrpc.GetSession(ctx); session != nil {
		session.Close()
	}
	return nil, nil
}

func (m *Methods) exitMethodInfo() *jsonrpc.MethodInfo {
	return &jsonrpc.MethodInfo{
		Name: "exit",
		NewRequest: func() interface{} {
			return &defines.NoParams{}
		},
		Handler: m.exit,
	}
}

func (m *Methods) OnDidChangeConfiguration(f func(ctx context.Context, req *defines.DidChangeConfigurationParams) (err error)) {
	m.onDidChangeConfiguration = f
}

func (m *Methods) didChangeConfiguration(ctx context.Context, req interface{}) (interface{}, error) {
	params := req.(*defines.DidChangeConfigurationParams)
	if m.onDidChangeConfiguration != nil {
		err := m.onDidChangeConfiguration(ctx, params)
		e := wrapErrorToRespError(err, 0)
		return nil, e
	}
	return nil, nil
}

func (m *Methods) didChangeConfigurationMethodInfo() *jsonrpc.MethodInfo {
	if m.onDidChangeConfiguration == nil {
		return nil
	}
	return &jsonrpc.MethodInfo{
		Name: "workspace/didChangeConfiguration",
		NewRequest: func() interface{} {
			return &defines.DidChangeConfigurationParams{}
		},
		Handler: m.didChangeConfiguration,
	}
}

func (m *Methods) OnDidOpenTextDocument(f func(ctx context.Context, req *defines.DidOpenTextDocumentParams) (err error)) {
	m.onDidOpenTextDocument = f
}

func (m *Methods) didOpenTextDocument(ctx context.Context, req interface{}) (interface{}, error) {
	params := req.(*defines.DidOpenTextDocumentParams)
	if m.onDidOpenTextDocument != nil {
		err := m.onDidOpenTextDocument(ctx, params)
		e := wrapErrorToRespError(err, 0)
		return nil, e
	}
	return nil, nil
}

func (m *Methods) didOpenTextDocumentMethodInfo() *jsonrpc.MethodInfo {
	if m.onDidOpenTextDocument == nil {
		return nil
	}
	return &jsonrpc.MethodInfo{
		Name: "textDocument/didOpen",
		NewRequest: func() interface{} {
			return &defines.DidOpenTextDocumentParams{}
		},
		Handler: m.didOpenTextDocument,
	}
}

func (m *Methods) OnDidChangeTextDocument(f func(ctx context.Context, req *defines.DidChangeTextDocumentParams) (err error)) {
	m.onDidChangeTextDocument = f
}

func (m *Methods) didChangeTextDocument(ctx context.Context, req interface{}) (interface{}, error) {
	params := req.(*defines.DidChangeTextDocumentParams)
	if m.onDidChangeTextDocument != nil {
		err := m.onDidChangeTextDocument(ctx, params)
		e := wrapErrorToRespError(err, 0)
		return nil, e
	}
	return nil, nil
}

func (m *Methods) didChangeTextDocumentMethodInfo() *jsonrpc.MethodInfo {
	if m.onDidChangeTextDocument == nil {
		return nil
	}
	return &jsonrpc.MethodInfo{
		Name: "textDocument/didChange",
		NewRequest: func() interface{} {
			return &defines.DidChangeTextDocumentParams{}
		},
		Handler: m.didChangeTextDocument,
	}
}

func (m *Methods) OnDidCloseTextDocument(f func(ctx context.Context, req *defines.DidCloseTextDocumentParams) (err error)) {
	m.onDidCloseTextDocument = f
}

func (m *Methods) didCloseTextDocument(ctx context.Context, req interface{}) (interface{}, error) {
	params := req.(*defines.DidCloseTextDocumentParams)
	if m.onDidCloseTextDocument != nil {
		err := m.onDidCloseTextDocument(ctx, params)
		e := wrapErrorToRespError(err, 0)
		return nil, e
	}
	return nil, nil
}

func (m *Methods) didCloseTextDocumentMethodInfo() *jsonrpc.MethodInfo {
	if m.onDidCloseTextDocument == nil {
		return nil
	}
	return &jsonrpc.MethodInfo{
		Name: "textDocument/didClose",
		NewRequest: func() interface{} {
			return &defines.DidCloseTextDocumentParams{}
		},
		Handler: m.didCloseTextDocument,
	}
}

func (m *Methods) OnDidSaveTextDocument(f func(ctx context.Context, req *defines.DidSaveTextDocumentParams) (err error)) {
	m.onDidSaveTextDocument = f
}

func (m *Methods) didSaveTextDocument(ctx context.Context, req interface{}) (interface{}, error) {
	params := req.(*defines.DidSaveTextDocumentParams)
	if m.onDidSaveTextDocument != nil {
		err := m.onDidSaveTextDocument(ctx, params)
		e := wrapErrorToRespError(err, 0)
		return nil, e
	}
	return nil, nil
}

func (m *Methods) didSaveTextDocumentMethodInfo() *jsonrpc.MethodInfo {
	if m.onDidSaveTextDocument == nil {
		return nil
	}
	return &jsonrpc.MethodInfo{
		Name: "textDocument/didSave",
		NewRequest: func() interface{} {
			return &defines.DidSaveTextDocumentParams{}
		},
		Handler: m.didSaveTextDocument,
	}
}

func (m *Methods) OnCompletion(f func(ctx context.Context, req *defines.CompletionParams) (result *[]defines.CompletionItem, err error)) {
	m.onCompletion = f
}

func (m *Methods) completion(ctx context.Context, req interface{}) (interface{}, error) {
	params := req.(*defines.CompletionParams)
	if m.onCompletion != nil {
		res, err := m.onCompletion(ctx, params)
		e := wrapErrorToRespError(err, 0)
		return res, e
	}
	return nil, nil
}

func (m *Methods) completionMethodInfo() *jsonrpc.MethodInfo {
	if m.onCompletion == nil {
		return nil
	}
	return &jsonrpc.MethodInfo{
		Name: "textDocument/completion",
		NewRequest: func() interface{} {
			return &defines.CompletionParams{}
		},
		Handler: m.completion,
	}
}

func (m *Methods) builtinInitialize(ctx context.Context, req *defines.InitializeParams) (*defines.InitializeResult, error) {
	resp := &defines.InitializeResult{}

	if m.Opt.TextDocumentSync != nil {
		resp.Capabilities.TextDocumentSync = m.Opt.TextDocumentSync
	} else {
		resp.Capabilities.TextDocumentSync = defines.TextDocumentSyncKindFull
	}

	if m.Opt.CompletionProvider != nil {
		resp.Capabilities.CompletionProvider = m.Opt.CompletionProvider
	} else if m.onCompletion != nil {
		resp.Capabilities.CompletionProvider = &defines.CompletionOptions{
			TriggerCharacters: &[]string{"<"},
		}
	}

	if m.Opt.ServerName != "" {
		resp.ServerInfo = &defines.ServerInfo{Name: m.Opt.ServerName}
		if m.Opt.ServerVersion != "" {
			version := m.Opt.ServerVersion
			resp.ServerInfo.Version = &version
		}
	}
	return resp, nil
}

// BuiltinInitializeResult returns the result the initialize method returns when no handler is set,
// it is used by custom initialize handlers to compute the capabilities.
func (m *Methods) BuiltinInitializeResult(ctx context.Context, req *defines.InitializeParams) *defines.InitializeResult {
	res, _ := m.builtinInitialize(ctx, req)
	return res
}

func (m *Methods) GetMethods() []*jsonrpc.MethodInfo {
	return []*jsonrpc.MethodInfo{
		m.initializeMethodInfo(),
		m.initializedMethodInfo(),
		m.shutdownMethodInfo(),
		m.exitMethodInfo(),
		m.didChangeConfigurationMethodInfo(),
		m.didOpenTextDocumentMethodInfo(),
		m.didChangeTextDocumentMethodInfo(),
		m.didCloseTextDocumentMethodInfo(),
		m.didSaveTextDocumentMethodInfo(),
		m.completionMethodInfo(),
	}
}
