package jsonrpc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xmlls/xmlls/internal/utils"
)

const (
	JSONRPC_VERSION = "2.0"

	MAX_PARAMS_LOGGING_SIZE = 3000
)

var (
	ErrAlreadyClosed       = errors.New("session is already closed")
	ErrAlreadyShuttingDown = errors.New("session is already shutting down")
)

type sessionKeyType struct{}

var sessionKey = sessionKeyType{}

// A Session handles the messages of a single peer. Notifications are handled synchronously in the read loop,
// in the order they arrive. Requests are handled in their own goroutine and can be cancelled by the
// peer with $/cancelRequest.
type Session struct {
	id        int
	server    *Server
	ctx       context.Context
	cancelCtx context.CancelFunc
	logger    zerolog.Logger

	// Only one connection is non-nil
	conn      ReaderWriter
	reader    *bufio.Reader
	msgConn   MessageReaderWriter
	writeLock sync.Mutex
	framing   atomic.Int32 //framing of the first message read on conn.

	executors    map[interface{}]*executor
	executorLock sync.Mutex

	closed       atomic.Bool
	shuttingDown atomic.Bool

	callbackLock     sync.Mutex
	closedCallback   func(*Session)
	shutdownCallback func(*Session)
}

type executor struct {
	id     interface{}
	cancel context.CancelFunc
}

func newSessionWithConn(id int, server *Server, conn ReaderWriter) *Session {
	s := newSession(id, server)
	s.conn = conn
	s.reader = bufio.NewReader(conn)
	return s
}

func newSessionWithMessageConn(id int, server *Server, conn MessageReaderWriter) *Session {
	s := newSession(id, server)
	s.msgConn = conn
	return s
}

func newSession(id int, server *Server) *Session {
	ctx, cancel := context.WithCancel(server.ctx)
	s := &Session{
		id:        id,
		server:    server,
		ctx:       ctx,
		cancelCtx: cancel,
		logger:    server.logger.With().Int("session", id).Logger(),
	}
	s.executors = make(map[interface{}]*executor)
	return s
}

func GetSession(ctx context.Context) *Session {
	val := ctx.Value(sessionKey)
	if utils.IsNil(val) {
		return nil
	}
	return val.(*Session)
}

// Start runs the read loop of the session, it returns when the connection is closed.
func (s *Session) Start() {
	defer s.Close()

	for {
		if continueLoop := s.handle(); !continueLoop {
			return
		}

		if s.closed.Load() {
			return
		}
	}
}

func (s *Session) handle() (continueLoop bool) {
	msg, err := s.readMessage()
	if err != nil {
		var respErr ResponseError
		if errors.As(err, &respErr) {
			err := s.handlerResponse(nil, nil, respErr, false)
			if err != nil {
				return s.handlerError(err)
			}
			return true
		}
		return s.handlerError(err)
	}

	if msg.Method == "" {
		if msg.ID != nil {
			//response to a request sent by SendRequest.
			s.logger.Debug().Interface("id", msg.ID).Bool("error", msg.Error != nil).Msg("response from client")
			return true
		}
		err = InvalidRequest
	} else {
		err = s.handlerRequest(RequestMessage{
			BaseMessage: msg.BaseMessage,
			ID:          msg.ID,
			Method:      msg.Method,
			Params:      msg.Params,
		})
	}
	//if error is nil the request is handled or still being processed in another goroutine

	if err != nil {
		if msg.ID == nil {
			s.logger.Warn().Err(err).Str("method", msg.Method).Msg("failed to handle notification")
			return true
		}
		err := s.handlerResponse(msg.ID, nil, err, false)
		if err != nil {
			return s.handlerError(err)
		}
	}
	return true
}

func (s *Session) readMessage() (incomingMessage, error) {
	var contentBytes []byte

	if s.msgConn != nil {
		msg, err := s.msgConn.ReadMessage()
		if err != nil {
			return incomingMessage{}, err
		}
		contentBytes = msg
	} else {
		msg, f, err := s.readFramed()
		if err != nil {
			return incomingMessage{}, err
		}
		if s.framing.CompareAndSwap(int32(framingUnknown), int32(f)) {
			s.logger.Debug().Str("framing", f.String()).Msg("message framing detected")
		}
		contentBytes = msg
	}

	msg := incomingMessage{}
	err := json.Unmarshal(contentBytes, &msg)
	if err != nil {
		e := ParseError
		e.Data = err.Error()
		return incomingMessage{}, e
	}
	return msg, nil
}

func (s *Session) readFramed() ([]byte, framing, error) {
	return readFramedMessage(s.reader)
}

func (s *Session) registerExecutor(executor *executor) {
	s.executorLock.Lock()
	defer s.executorLock.Unlock()
	s.executors[executor.id] = executor
}

func (s *Session) removeExecutor(executor *executor) {
	s.executorLock.Lock()
	defer s.executorLock.Unlock()
	if s.executors[executor.id] == executor {
		delete(s.executors, executor.id)
	}
}

func (s *Session) getExecutor(id interface{}) *executor {
	if utils.IsNil(id) {
		return nil
	}
	s.executorLock.Lock()
	defer s.executorLock.Unlock()
	exec, ok := s.executors[id]
	if !ok {
		return nil
	}
	return exec
}

func (s *Session) cancelJob(id interface{}) {
	exec := s.getExecutor(id)
	if exec == nil {
		return
	}
	exec.cancel()
	s.removeExecutor(exec)
}

func (s *Session) execute(mtdInfo MethodInfo, req RequestMessage, args interface{}) {
	ctx, cancel := context.WithCancel(s.ctx)
	ctx = context.WithValue(ctx, sessionKey, s)
	exec := &executor{
		id:     req.ID,
		cancel: cancel,
	}
	s.registerExecutor(exec)

	go func() {
		defer cancel()
		defer s.removeExecutor(exec)

		resp, err := s.callHandler(ctx, mtdInfo, args)

		if ctx.Err() != nil {
			if s.closed.Load() || s.ctx.Err() != nil {
				return
			}
			//cancelled by the peer
			resp, err = nil, RequestCancelled
		}

		err = s.handlerResponse(req.ID, resp, err, mtdInfo.SensitiveData)
		if err != nil {
			s.handlerError(err)
		}
	}()
}

func (s *Session) executeSync(mtdInfo MethodInfo, args interface{}) {
	ctx := context.WithValue(s.ctx, sessionKey, s)
	_, err := s.callHandler(ctx, mtdInfo, args)
	if err != nil {
		s.logger.Error().Err(err).Str("method", mtdInfo.Name).Msg("notification handler returned an error")
	}
}

func (s *Session) callHandler(ctx context.Context, mtdInfo MethodInfo, args interface{}) (resp interface{}, err error) {
	defer func() {
		if e := recover(); e != nil {
			panicErr := utils.ConvertPanicValueToError(e)
			s.logger.Error().Err(panicErr).Str("method", mtdInfo.Name).Str("stack", string(debug.Stack())).Msg("handler panicked")
			resp = nil
			err = ResponseError{
				Code:    InternalErrorCode,
				Message: panicErr.Error(),
			}
		}
	}()

	return mtdInfo.Handler(ctx, args)
}

func (s *Session) handlerRequest(req RequestMessage) error {
	mtdInfo, ok := s.server.getMethod(req.Method)
	stringifiedID := fmt.Sprintf("%v", req.ID)

	if !ok || !mtdInfo.SensitiveData {
		params := req.Params
		suffix := ""
		if len(params) > MAX_PARAMS_LOGGING_SIZE {
			params = params[:MAX_PARAMS_LOGGING_SIZE]
			suffix = "..."
		}
		s.logger.Debug().Str("id", stringifiedID).Str("method", req.Method).Msgf("request, content: [%s]%s", params, suffix)
	} else {
		s.logger.Debug().Str("id", stringifiedID).Str("method", req.Method).Msg("request, content: ...")
	}

	if !ok {
		return MethodNotFound
	}

	if s.IsShuttingDown() && mtdInfo.Name != "exit" {
		return ResponseError{
			Code:    InvalidRequest.Code,
			Message: "session is shutting down",
		}
	}

	var reqArgs interface{}
	if mtdInfo.NewRequest != nil {
		reqArgs = mtdInfo.NewRequest()
		if len(req.Params) > 0 && string(req.Params) != "null" {
			err := json.Unmarshal(req.Params, reqArgs)
			if err != nil {
				e := InvalidParams
				e.Data = err.Error()
				return e
			}
		}
	}

	if req.IsNotification() {
		s.executeSync(mtdInfo, reqArgs)
		return nil
	}

	s.execute(mtdInfo, req, reqArgs)
	return nil
}

func (s *Session) handlerResponse(id interface{}, result interface{}, err error, sensitiveDataMethod bool) error {
	resp := ResponseMessage{ID: id}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		var respErr ResponseError
		if errors.As(err, &respErr) {
			resp.Error = &respErr
		} else {
			resp.Error = &ResponseError{
				Code:    InternalErrorCode,
				Message: err.Error(),
			}
		}
	} else {
		resp.Result = result
	}
	return s.write(resp, sensitiveDataMethod)
}

func (s *Session) write(resp ResponseMessage, sensitiveMethod bool) error {
	resp.BaseMessage = BaseMessage{Jsonrpc: JSONRPC_VERSION}

	res, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	if sensitiveMethod {
		s.logger.Debug().Interface("id", resp.ID).Msg("response: ...")
	} else {
		s.logger.Debug().Interface("id", resp.ID).Msgf("response: [%s]", res)
	}

	return s.writeMessage(res)
}

// Notify sends a notification to the client, NotificationMessage.BaseMessage
// is set by the callee.
func (s *Session) Notify(notif NotificationMessage) error {
	notif.BaseMessage = BaseMessage{Jsonrpc: JSONRPC_VERSION}

	notifBytes, err := json.Marshal(notif)
	if err != nil {
		return err
	}
	s.logger.Debug().Str("method", notif.Method).Msgf("notification: [%s]", notifBytes)

	return s.writeMessage(notifBytes)
}

// NotifyWithParams marshals params and sends a notification to the client.
func (s *Session) NotifyWithParams(method string, params interface{}) error {
	paramsBytes, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return s.Notify(NotificationMessage{
		Method: method,
		Params: paramsBytes,
	})
}

// SendRequest sends a request to the client, RequestMessage.ID & RequestMessage.BaseMessage
// are set by the callee. The response is not waited for.
func (s *Session) SendRequest(req RequestMessage) (id string, _ error) {
	req.BaseMessage = BaseMessage{Jsonrpc: JSONRPC_VERSION}
	id = uuid.NewString()
	req.ID = id

	reqBytes, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	s.logger.Debug().Str("method", req.Method).Msgf("request to client: [%s]", reqBytes)

	return id, s.writeMessage(reqBytes)
}

// SendRequestWithParams marshals params and sends a request to the client.
func (s *Session) SendRequestWithParams(method string, params interface{}) (id string, _ error) {
	paramsBytes, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	return s.SendRequest(RequestMessage{
		Method: method,
		Params: paramsBytes,
	})
}

func (s *Session) writeMessage(msg []byte) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if s.closed.Load() {
		return ErrAlreadyClosed
	}

	if s.msgConn != nil {
		return s.msgConn.WriteMessage(msg)
	}

	f := framing(s.framing.Load())
	if f == framingUnknown {
		f = framingLine
	}
	return s.mustWrite(frameMessage(f, msg))
}

func (s *Session) mustWrite(data []byte) error {
	t := 0
	for t != len(data) {
		n, err := s.conn.Write(data[t:])
		if err != nil {
			return err
		}
		t += n
	}
	return nil
}

func (s *Session) handlerError(err error) (continueLoop bool) {
	continueLoop = true

	isEof := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
	isClosed := errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, ErrAlreadyClosed)

	if isEof || isClosed {
		continueLoop = false
		s.logger.Debug().Err(err).Msg("connection closed")
		return
	}

	s.logger.Error().Err(err).Msg("session error")
	return
}

func (s *Session) ID() int {
	return s.id
}

func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) Logger() zerolog.Logger {
	return s.logger
}

func (s *Session) SetClosedCallbackFn(fn func(session *Session)) {
	s.callbackLock.Lock()
	defer s.callbackLock.Unlock()
	if s.closedCallback != nil {
		panic(errors.New("closed callback function already set"))
	}
	s.closedCallback = fn
}

func (s *Session) SetShutdownCallbackFn(fn func(session *Session)) {
	s.callbackLock.Lock()
	defer s.callbackLock.Unlock()
	if s.shutdownCallback != nil {
		panic(errors.New("shutdown callback function already set"))
	}
	s.shutdownCallback = fn
}

func (s *Session) IsShuttingDown() bool {
	return s.shuttingDown.Load()
}

func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Close shutdowns the session & closes the connection.
func (s *Session) Close() error {
	if s.closed.Load() {
		return ErrAlreadyClosed
	}

	//shutdown: call the callback function in another goroutine
	if !s.shuttingDown.CompareAndSwap(false, true) {
		return ErrAlreadyShuttingDown
	}

	s.callbackLock.Lock()
	shutdownCallback := s.shutdownCallback
	closedCallback := s.closedCallback
	s.shutdownCallback = nil
	s.closedCallback = nil
	s.callbackLock.Unlock()

	if shutdownCallback != nil {
		go func(session *Session) {
			defer utils.Recover(s.logger)
			shutdownCallback(session)
		}(s)
	}

	s.writeLock.Lock()
	s.closed.Store(true)
	s.writeLock.Unlock()

	//close
	if s.conn != nil {
		err := s.conn.Close()
		if err != nil {
			s.logger.Error().Err(err).Msg("close error")
		}
	} else {
		err := s.msgConn.Close()
		if err != nil {
			s.logger.Error().Err(err).Msg("message connection: close error")
		}
	}

	s.cancelCtx()

	//cancel all executors
	func() {
		defer utils.Recover(s.logger)
		s.executorLock.Lock()
		defer s.executorLock.Unlock()

		for _, v := range s.executors {
			if v != nil {
				v.cancel()
			}
		}
	}()

	s.server.removeSession(s.id)
	s.shuttingDown.Store(false)

	if closedCallback != nil {
		go func(session *Session) {
			defer utils.Recover(s.logger)
			closedCallback(session)
		}(s)
	}
	return nil
}
