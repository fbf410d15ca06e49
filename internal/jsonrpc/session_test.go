package jsonrpc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoParams struct {
	Text string `json:"text"`
}

type pipeClient struct {
	t      *testing.T
	in     *io.PipeWriter
	outR   *io.PipeReader
	out    *bufio.Reader
	done   chan struct{}
	header bool
}

func newTestServer() (*Server, *[]int, *sync.Mutex) {
	server := NewServer(context.Background(), zerolog.Nop(), nil)

	var received []int
	var lock sync.Mutex

	server.RegisterMethod(MethodInfo{
		Name:       "echo",
		NewRequest: func() interface{} { return &echoParams{} },
		Handler: func(ctx context.Context, req interface{}) (interface{}, error) {
			return req, nil
		},
	})
	server.RegisterMethod(MethodInfo{
		Name:       "append",
		NewRequest: func() interface{} { return &struct{ N int }{} },
		Handler: func(ctx context.Context, req interface{}) (interface{}, error) {
			lock.Lock()
			defer lock.Unlock()
			received = append(received, req.(*struct{ N int }).N)
			return nil, nil
		},
	})
	server.RegisterMethod(MethodInfo{
		Name: "panic",
		Handler: func(ctx context.Context, req interface{}) (interface{}, error) {
			panic(errors.New("boom"))
		},
	})
	server.RegisterMethod(MethodInfo{
		Name: "fail",
		Handler: func(ctx context.Context, req interface{}) (interface{}, error) {
			return nil, errors.New("plain error")
		},
	})
	server.RegisterMethod(MethodInfo{
		Name: "block",
		Handler: func(ctx context.Context, req interface{}) (interface{}, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	return server, &received, &lock
}

// pipeConn is the server side of the pipes, closing it leaves the pipes open.
type pipeConn struct {
	io.Reader
	io.Writer
}

func (pipeConn) Close() error {
	return nil
}

func newPipeClient(t *testing.T, server *Server) *pipeClient {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	client := &pipeClient{
		t:    t,
		in:   inW,
		outR: outR,
		out:  bufio.NewReader(outR),
		done: make(chan struct{}),
	}

	go func() {
		defer close(client.done)
		server.ConnComeIn(pipeConn{Reader: inR, Writer: outW})
	}()

	t.Cleanup(func() {
		inW.Close()
		outR.Close()
		select {
		case <-client.done:
		case <-time.After(2 * time.Second):
			t.Error("session did not stop")
		}
	})
	return client
}

func (c *pipeClient) send(msg string) {
	if c.header {
		msg = "Content-Length: " + strconv.Itoa(len(msg)) + "\r\n\r\n" + msg
	} else {
		msg += "\n"
	}
	_, err := c.in.Write([]byte(msg))
	require.NoError(c.t, err)
}

func (c *pipeClient) receive() map[string]interface{} {
	var content []byte

	if c.header {
		length := -1
		for {
			line, err := c.out.ReadString('\n')
			require.NoError(c.t, err)
			line = strings.TrimSpace(line)
			if line == "" {
				break
			}
			if strings.HasPrefix(line, "Content-Length: ") {
				length, err = strconv.Atoi(strings.TrimPrefix(line, "Content-Length: "))
				require.NoError(c.t, err)
			}
		}
		require.GreaterOrEqual(c.t, length, 0)
		content = make([]byte, length)
		_, err := io.ReadFull(c.out, content)
		require.NoError(c.t, err)
	} else {
		line, err := c.out.ReadBytes('\n')
		require.NoError(c.t, err)
		content = line
	}

	var msg map[string]interface{}
	require.NoError(c.t, json.Unmarshal(content, &msg))
	return msg
}

func errorCode(t *testing.T, resp map[string]interface{}) int {
	errObj, ok := resp["error"].(map[string]interface{})
	require.True(t, ok, "response has no error: %v", resp)
	return int(errObj["code"].(float64))
}

func TestSession(t *testing.T) {

	t.Run("line framed request", func(t *testing.T) {
		server, _, _ := newTestServer()
		client := newPipeClient(t, server)

		client.send(`{"jsonrpc":"2.0","id":1,"method":"echo","params":{"text":"hi"}}`)
		resp := client.receive()

		assert.Equal(t, "2.0", resp["jsonrpc"])
		assert.EqualValues(t, 1, resp["id"])
		assert.Equal(t, map[string]interface{}{"text": "hi"}, resp["result"])
		assert.Nil(t, resp["error"])
	})

	t.Run("header framed request: the response uses the same framing", func(t *testing.T) {
		server, _, _ := newTestServer()
		client := newPipeClient(t, server)
		client.header = true

		client.send(`{"jsonrpc":"2.0","id":"a","method":"echo","params":{"text":"hi"}}`)
		resp := client.receive()

		assert.Equal(t, "a", resp["id"])
		assert.Equal(t, map[string]interface{}{"text": "hi"}, resp["result"])
	})

	t.Run("unknown method", func(t *testing.T) {
		server, _, _ := newTestServer()
		client := newPipeClient(t, server)

		client.send(`{"jsonrpc":"2.0","id":2,"method":"unknown","params":{}}`)
		resp := client.receive()

		assert.Equal(t, MethodNotFoundCode, errorCode(t, resp))
		assert.EqualValues(t, 2, resp["id"])
	})

	t.Run("malformed message", func(t *testing.T) {
		server, _, _ := newTestServer()
		client := newPipeClient(t, server)

		client.send(`{"jsonrpc":`)
		resp := client.receive()
		assert.Equal(t, ParseErrorCode, errorCode(t, resp))

		//the session is still usable
		client.send(`{"jsonrpc":"2.0","id":3,"method":"echo","params":{"text":"ok"}}`)
		resp = client.receive()
		assert.Equal(t, map[string]interface{}{"text": "ok"}, resp["result"])
	})

	t.Run("invalid params", func(t *testing.T) {
		server, _, _ := newTestServer()
		client := newPipeClient(t, server)

		client.send(`{"jsonrpc":"2.0","id":4,"method":"echo","params":{"text":1}}`)
		resp := client.receive()
		assert.Equal(t, InvalidParamsCode, errorCode(t, resp))
	})

	t.Run("panicking handler", func(t *testing.T) {
		server, _, _ := newTestServer()
		client := newPipeClient(t, server)

		client.send(`{"jsonrpc":"2.0","id":5,"method":"panic"}`)
		resp := client.receive()
		assert.Equal(t, InternalErrorCode, errorCode(t, resp))

		client.send(`{"jsonrpc":"2.0","id":6,"method":"echo","params":{"text":"still alive"}}`)
		resp = client.receive()
		assert.Equal(t, map[string]interface{}{"text": "still alive"}, resp["result"])
	})

	t.Run("non protocol errors are reported as internal errors", func(t *testing.T) {
		server, _, _ := newTestServer()
		client := newPipeClient(t, server)

		client.send(`{"jsonrpc":"2.0","id":7,"method":"fail"}`)
		resp := client.receive()
		assert.Equal(t, InternalErrorCode, errorCode(t, resp))
	})

	t.Run("notifications are handled in arrival order", func(t *testing.T) {
		server, received, lock := newTestServer()
		client := newPipeClient(t, server)

		for i := 0; i < 50; i++ {
			client.send(fmt.Sprintf(`{"jsonrpc":"2.0","method":"append","params":{"N":%d}}`, i))
		}
		client.send(`{"jsonrpc":"2.0","id":8,"method":"echo","params":{"text":"sync"}}`)
		client.receive()

		lock.Lock()
		defer lock.Unlock()
		require.Len(t, *received, 50)
		for i, n := range *received {
			assert.Equal(t, i, n)
		}
	})

	t.Run("cancelled request", func(t *testing.T) {
		server, _, _ := newTestServer()
		client := newPipeClient(t, server)

		client.send(`{"jsonrpc":"2.0","id":9,"method":"block"}`)
		client.send(`{"jsonrpc":"2.0","method":"$/cancelRequest","params":{"id":9}}`)

		resp := client.receive()
		assert.EqualValues(t, 9, resp["id"])
		assert.Equal(t, RequestCancelledCode, errorCode(t, resp))
	})

	t.Run("responses from the client are ignored", func(t *testing.T) {
		server, _, _ := newTestServer()
		client := newPipeClient(t, server)

		client.send(`{"jsonrpc":"2.0","id":"some-uuid","result":null}`)
		client.send(`{"jsonrpc":"2.0","id":10,"method":"echo","params":{"text":"x"}}`)
		resp := client.receive()
		assert.EqualValues(t, 10, resp["id"])
	})
}

func TestSessionWithMessageConn(t *testing.T) {
	server, _, _ := newTestServer()

	toServer := make(chan []byte, 10)
	fromServer := make(chan []byte, 10)
	closed := make(chan struct{})

	conn := FnMessageReaderWriter{
		ReadMessageFn: func() ([]byte, error) {
			select {
			case msg := <-toServer:
				return msg, nil
			case <-closed:
				return nil, io.EOF
			}
		},
		WriteMessageFn: func(msg []byte) error {
			fromServer <- msg
			return nil
		},
		CloseFn: func() error {
			return nil
		},
	}

	sessionCh := make(chan *Session, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.MsgConnComeIn(conn, func(session *Session) {
			sessionCh <- session
		})
	}()

	session := <-sessionCh
	assert.Equal(t, 1, server.SessionCount())

	toServer <- []byte(`{"jsonrpc":"2.0","id":1,"method":"echo","params":{"text":"hi"}}`)
	resp := <-fromServer
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{"text":"hi"}}`, string(resp))

	require.NoError(t, session.NotifyWithParams("custom/notif", map[string]int{"a": 1}))
	notif := <-fromServer
	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"custom/notif","params":{"a":1}}`, string(notif))

	id, err := session.SendRequest(RequestMessage{Method: "client/method"})
	require.NoError(t, err)
	req := <-fromServer
	assert.Contains(t, string(req), id)

	id, err = session.SendRequestWithParams("client/registerCapability", map[string]interface{}{"registrations": []interface{}{}})
	require.NoError(t, err)
	req = <-fromServer
	assert.Contains(t, string(req), id)
	assert.Contains(t, string(req), `"params":{"registrations":[]}`)

	close(closed)
	<-done

	assert.True(t, session.Closed())
	assert.Equal(t, 0, server.SessionCount())
	assert.ErrorIs(t, session.Close(), ErrAlreadyClosed)
	assert.ErrorIs(t, session.NotifyWithParams("x", nil), ErrAlreadyClosed)
}
