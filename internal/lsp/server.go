package lsp

import (
	"context"
	"fmt"
	"reflect"

	"github.com/xmlls/xmlls/internal/jsonrpc"
)

type Server struct {
	Methods
	customMethods []*jsonrpc.MethodInfo
	rpcServer     *jsonrpc.Server
	ctx           context.Context //same context as the JSON RPC server.
}

func NewServer(ctx context.Context, opt *Config) *Server {
	s := &Server{
		ctx: ctx,
	}
	s.Opt = *opt
	s.rpcServer = jsonrpc.NewServer(ctx, opt.Logger, opt.OnSession)
	return s
}

func (s *Server) Context() context.Context {
	return s.ctx
}

// Run registers the methods and serves a single connection, it returns when the session ends.
func (s *Server) Run() error {
	mtds := s.GetMethods()
	for _, m := range mtds {
		if m != nil {
			s.rpcServer.RegisterMethod(*m)
		}
	}

	for _, m := range s.customMethods {
		if m != nil {
			s.rpcServer.RegisterMethod(*m)
		}
	}

	return s.run()
}

func (s *Server) OnCustom(info jsonrpc.MethodInfo) {
	for _, m := range s.customMethods {
		if m.Name == info.Name {
			panic(fmt.Errorf("handler for method %s is already set", m.Name))
		}
	}
	s.customMethods = append(s.customMethods, &info)
}

func (s *Server) run() error {
	logger := s.Opt.Logger

	if s.Opt.MessageReaderWriter != nil {
		logger.Info().Msg("use custom message reader+writer")
		s.rpcServer.MsgConnComeIn(s.Opt.MessageReaderWriter, func(session *jsonrpc.Session) {})
		return nil
	}

	logger.Info().Msg("use stdio mode")

	var stdio jsonrpc.ReaderWriter
	if s.Opt.StdioInput != nil && s.Opt.StdioOutput != nil {
		stdio = &stdioReaderWriter{
			reader: s.Opt.StdioInput,
			writer: s.Opt.StdioOutput,
		}
	} else {
		stdio = NewStdio()
	}

	s.rpcServer.ConnComeIn(stdio)
	return nil
}

func wrapErrorToRespError(err interface{}, code int) error {
	if isNil(err) {
		return nil
	}
	if e, ok := err.(error); ok {
		return e
	}
	return jsonrpc.ResponseError{
		Code:    code,
		Message: fmt.Sprintf("%v", err),
		Data:    err,
	}
}

func isNil(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	if v.Kind() == reflect.Ptr && v.IsNil() {
		return true
	}
	return false
}
