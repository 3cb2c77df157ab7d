package provider

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/rs/zerolog/log"
)

// Transport is a line-delimited message channel to a tool server.
// Recv blocks until a message arrives or the channel is closed.
type Transport interface {
	Send(data []byte) error
	Recv() ([]byte, error)
	Close() error
}

// Dialer opens a transport to a tool server.
type Dialer func(ctx context.Context) (Transport, error)

// StdioDialer launches command with args and env (merged onto the parent
// environment) and speaks newline-delimited JSON over its stdio.
func StdioDialer(command string, args []string, env map[string]string) Dialer {
	return func(ctx context.Context) (Transport, error) {
		cmd := exec.Command(command, args...)
		cmd.Env = os.Environ()
		for k, v := range env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}

		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}

		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("failed to launch %s: %w", command, err)
		}

		scanner := bufio.NewScanner(stdout)
		// Tool responses can carry large payloads (e.g. base64 blobs).
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

		return &stdioTransport{
			cmd:     cmd,
			stdin:   stdin,
			scanner: scanner,
		}, nil
	}
}

type stdioTransport struct {
	cmd     *exec.Cmd
	scanner *bufio.Scanner

	mu     sync.Mutex
	stdin  io.WriteCloser
	closed bool
}

func (t *stdioTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrSessionClosed
	}
	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

func (t *stdioTransport) Recv() ([]byte, error) {
	if !t.scanner.Scan() {
		if err := t.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	// Scanner reuses its buffer between calls.
	line := make([]byte, len(t.scanner.Bytes()))
	copy(line, t.scanner.Bytes())
	return line, nil
}

// Close shuts the subprocess down. Idempotent; teardown errors are
// logged, not returned, beyond the first kill failure.
func (t *stdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if err := t.stdin.Close(); err != nil {
		log.Debug().Err(err).Msg("Tool server stdin close error")
	}

	if t.cmd.Process != nil {
		if err := t.cmd.Process.Kill(); err != nil {
			log.Debug().Err(err).Msg("Tool server kill error")
		}
	}
	// Reap the child so no zombie is left behind.
	if err := t.cmd.Wait(); err != nil {
		log.Debug().Err(err).Msg("Tool server exited")
	}
	return nil
}
