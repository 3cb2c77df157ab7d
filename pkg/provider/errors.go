package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectTimeout is returned when the connect handshake does not
	// complete within the connect bound.
	ErrConnectTimeout = errors.New("provider connect timeout")

	// ErrExecuteTimeout is returned internally when a tool call does not
	// complete within the execute bound. Execute converts it into an
	// error Result.
	ErrExecuteTimeout = errors.New("provider execute timeout")

	// ErrNotConnected is returned when a call is attempted without a
	// live session.
	ErrNotConnected = errors.New("provider not connected")

	// ErrSessionClosed is returned to waiters whose pending call was
	// cut off by a disconnect or subprocess exit.
	ErrSessionClosed = errors.New("provider session closed")

	// ErrUnknownProvider is returned by the pool for unconfigured names.
	ErrUnknownProvider = errors.New("unknown provider")
)

// ProtocolError reports a malformed or failed RPC exchange.
type ProtocolError struct {
	Method  string
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("rpc %s failed (%d): %s", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("rpc %s failed: %s", e.Method, e.Message)
}
