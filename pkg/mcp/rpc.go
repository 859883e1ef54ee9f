package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Newline-delimited JSON-RPC 2.0, the framing MCP clients use over stdio.

const (
	jsonrpcVersion  = "2.0"
	protocolVersion = "2024-11-05"
)

const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// isNotification reports whether the client expects no reply.
func (r *request) isNotification() bool { return len(r.ID) == 0 }

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError is a protocol failure. A tool that fails still gets a successful
// response carrying an error result.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func reply(id json.RawMessage, result any) *response {
	return &response{JSONRPC: jsonrpcVersion, ID: id, Result: result}
}

// fail maps err onto a JSON-RPC error. Anything that is not an *rpcError is
// reported as an internal error.
func fail(id json.RawMessage, err error) *response {
	var re *rpcError
	if !errors.As(err, &re) {
		re = &rpcError{Code: codeInternalError, Message: err.Error()}
	}
	return &response{JSONRPC: jsonrpcVersion, ID: id, Error: re}
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type capabilities struct {
	Tools struct{} `json:"tools"`
}

type initializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      serverInfo   `json:"serverInfo"`
	Capabilities    capabilities `json:"capabilities"`
	Instructions    string       `json:"instructions,omitempty"`
}

type toolList struct {
	Tools []*tool `json:"tools"`
}

type toolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// toolResult carries a human-readable rendering plus, for successful calls,
// the same data as structured JSON.
type toolResult struct {
	Content           []textContent `json:"content"`
	StructuredContent any           `json:"structuredContent,omitempty"`
	IsError           bool          `json:"isError,omitempty"`
}

func typed(text string, data any) toolResult {
	return toolResult{
		Content:           []textContent{{Type: "text", Text: text}},
		StructuredContent: data,
	}
}

func failed(err error) toolResult {
	return toolResult{
		Content: []textContent{{Type: "text", Text: err.Error()}},
		IsError: true,
	}
}
