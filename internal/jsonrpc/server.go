package jsonrpc

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

type MethodInfo struct {
	Name          string
	NewRequest    func() interface{} //nil if the method has no parameters
	Handler       func(ctx context.Context, req interface{}) (interface{}, error)
	SensitiveData bool
}

type Server struct {
	session     map[int]*Session
	nowId       int
	methods     map[string]MethodInfo
	methodLock  sync.RWMutex
	sessionLock sync.Mutex
	onSession   SessionCreationCallbackFn
	ctx         context.Context
	logger      zerolog.Logger
}

// Called before starting each new JSON RPC session.
type SessionCreationCallbackFn func(rpcServerContext context.Context, session *Session) error

func NewServer(ctx context.Context, logger zerolog.Logger, onSession SessionCreationCallbackFn) *Server {
	if onSession == nil {
		onSession = func(ctx context.Context, s *Session) error { return nil }
	}

	s := &Server{
		onSession: onSession,
		ctx:       ctx,
		logger:    logger,
	}
	s.session = make(map[int]*Session)
	s.methods = make(map[string]MethodInfo)

	// Register Builtin
	s.RegisterMethod(CancelRequest())

	return s
}

func (server *Server) RegisterMethod(m MethodInfo) {
	server.methodLock.Lock()
	defer server.methodLock.Unlock()
	server.methods[m.Name] = m
}

func (server *Server) getMethod(name string) (MethodInfo, bool) {
	server.methodLock.RLock()
	defer server.methodLock.RUnlock()
	m, ok := server.methods[name]
	return m, ok
}

// ConnComeIn creates a session for conn and runs it, it returns when the session is closed.
func (server *Server) ConnComeIn(conn ReaderWriter) {
	session := server.newSession(conn)
	if err := server.onSession(server.ctx, session); err != nil {
		server.logger.Error().Err(err).Msg("session creation callback failed")
		session.Close()
		return
	}
	session.Start()
}

// MsgConnComeIn creates a session for conn and runs it, it returns when the session is closed.
func (server *Server) MsgConnComeIn(conn MessageReaderWriter, onCreatedSession func(session *Session)) {
	session := server.newSessionWithMsgConn(conn)
	if err := server.onSession(server.ctx, session); err != nil {
		server.logger.Error().Err(err).Msg("session creation callback failed")
		session.Close()
		return
	}
	if onCreatedSession != nil {
		onCreatedSession(session)
	}
	session.Start()
}

func (s *Server) SessionCount() int {
	s.sessionLock.Lock()
	defer s.sessionLock.Unlock()
	return len(s.session)
}

func (s *Server) removeSession(id int) {
	s.sessionLock.Lock()
	defer s.sessionLock.Unlock()
	delete(s.session, id)
}

func (s *Server) newSession(conn ReaderWriter) *Session {
	s.sessionLock.Lock()
	defer s.sessionLock.Unlock()

	id := s.nowId
	s.nowId += 1

	session := newSessionWithConn(id, s, conn)
	s.session[id] = session
	return session
}

func (s *Server) newSessionWithMsgConn(conn MessageReaderWriter) *Session {
	s.sessionLock.Lock()
	defer s.sessionLock.Unlock()

	id := s.nowId
	s.nowId += 1

	session := newSessionWithMessageConn(id, s, conn)
	s.session[id] = session
	return session
}
