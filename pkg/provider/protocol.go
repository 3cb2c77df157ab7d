package provider

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const protocolVersion = "2024-11-05"

// JSON-RPC messages exchanged with a tool-server process over stdio.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      interface{} `json:"id,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      interface{}     `json:"id"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ToolInfo describes one tool in a provider's catalog.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// contentItem is one element of a tools/call response content array.
// Text items carry Text; binary items carry base64 Data.
type contentItem struct {
	Type     string `json:"type,omitempty"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

type callResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError"`
}

// Result is the uniform outcome of a provider tool call. Execute always
// returns one of these; remote failures become Status "error", never a
// Go error to the caller.
type Result struct {
	Tool      string          `json:"tool"`
	Status    string          `json:"status"`
	Output    string          `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
	ElapsedMS int64           `json:"elapsed_ms"`
}

const (
	// StatusSuccess marks a successful tool call.
	StatusSuccess = "success"
	// StatusError marks a failed tool call.
	StatusError = "error"
)

// normalizeCallResult flattens the heterogeneous content shapes of a
// tools/call response into a single output string. Binary blobs are
// summarized rather than inlined.
func normalizeCallResult(tool string, raw json.RawMessage) Result {
	var cr callResult
	if err := json.Unmarshal(raw, &cr); err != nil {
		return Result{
			Tool:   tool,
			Status: StatusError,
			Error:  fmt.Sprintf("malformed tool response: %v", err),
			Raw:    raw,
		}
	}

	parts := make([]string, 0, len(cr.Content))
	for _, item := range cr.Content {
		switch {
		case item.Text != "":
			parts = append(parts, item.Text)
		case item.Data != "":
			n := len(item.Data)
			if decoded, err := base64.StdEncoding.DecodeString(item.Data); err == nil {
				n = len(decoded)
			}
			parts = append(parts, fmt.Sprintf("[Binary Data: %d bytes]", n))
		}
	}
	output := strings.Join(parts, "\n")

	if cr.IsError {
		return Result{
			Tool:   tool,
			Status: StatusError,
			Error:  output,
			Raw:    raw,
		}
	}

	return Result{
		Tool:   tool,
		Status: StatusSuccess,
		Output: output,
		Raw:    raw,
	}
}
