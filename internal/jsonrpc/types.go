package jsonrpc

import (
	"fmt"

	"github.com/goccy/go-json"
)

type BaseMessage struct {
	Jsonrpc string `json:"jsonrpc"`
}

type RequestMessage struct {
	BaseMessage
	ID     interface{}     `json:"id,omitempty"` // may be int or string
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"` // params, is some struct or slice
}

func (m RequestMessage) IsNotification() bool {
	return m.ID == nil
}

type NotificationMessage struct {
	BaseMessage
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"` // params, is some struct or slice
}

type ResponseMessage struct {
	BaseMessage
	ID     interface{}    `json:"id"` // may be int or string
	Result interface{}    `json:"result"`
	Error  *ResponseError `json:"error,omitempty"`
}

// incomingMessage is used to decode any message sent by the peer: requests, notifications
// and responses to requests sent by SendRequest.
type incomingMessage struct {
	BaseMessage
	ID     interface{}     `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *ResponseError  `json:"error"`
}

type ResponseError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (r ResponseError) Error() string {
	return fmt.Sprintf("code: %d, message: %s, data: %v", r.Code, r.Message, r.Data)
}

type BuiltInError = ResponseError

const ParseErrorCode = -32700
const InvalidRequestCode = -32600
const MethodNotFoundCode = -32601
const InvalidParamsCode = -32602
const InternalErrorCode = -32603
const ServerNotInitializedCode = -32002
const UnknownErrorCodeCode = -32001
const ContentModifiedCode = -32801
const RequestCancelledCode = -32800

var ParseError = BuiltInError{
	Code:    ParseErrorCode,
	Message: "ParseError",
}
var InvalidRequest = BuiltInError{
	Code:    InvalidRequestCode,
	Message: "InvalidRequest",
}
var MethodNotFound = BuiltInError{
	Code:    MethodNotFoundCode,
	Message: "MethodNotFound",
}
var InvalidParams = BuiltInError{
	Code:    InvalidParamsCode,
	Message: "InvalidParams",
}
var InternalError = BuiltInError{
	Code:    InternalErrorCode,
	Message: "InternalError",
}
var ServerNotInitialized = BuiltInError{
	Code:    ServerNotInitializedCode,
	Message: "ServerNotInitialized",
}
var ContentModified = BuiltInError{
	Code:    ContentModifiedCode,
	Message: "ContentModified",
}
var RequestCancelled = BuiltInError{
	Code:    RequestCancelledCode,
	Message: "RequestCancelled",
}
