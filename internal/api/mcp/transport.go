package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
)

// maxFrameSize bounds a single JSON-RPC line. Tool arguments can carry
// whole documents, so this is deliberately generous.
const maxFrameSize = 4 << 20

// fallbackFault is emitted when even the error response fails to marshal,
// so the line framing never stalls.
const fallbackFault = `{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`

// StdioTransport serves the gateway over newline-delimited JSON-RPC 2.0:
// one request per line in, one response per line out. Diagnostics go to a
// stderr logger only; a stray byte on the out stream corrupts the framing.
//
// Frames are pulled by a reader goroutine and handed over a channel, so a
// cancelled context stops the transport even while the reader is blocked
// on input.
type StdioTransport struct {
	server *Server
	in     io.Reader
	out    io.Writer
	logger *log.Logger
}

// NewStdioTransport wires the gateway to an input and output stream,
// typically os.Stdin and os.Stdout.
func NewStdioTransport(srv *Server, in io.Reader, out io.Writer) *StdioTransport {
	return &StdioTransport{
		server: srv,
		in:     in,
		out:    out,
		logger: log.New(os.Stderr, "memoryd-mcp: ", log.LstdFlags),
	}
}

// Serve handles requests one at a time, in arrival order, until the input
// closes or ctx is cancelled.
func (t *StdioTransport) Serve(ctx context.Context) error {
	frames := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer close(frames)
		sc := bufio.NewScanner(t.in)
		sc.Buffer(make([]byte, 64*1024), maxFrameSize)
		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			frame := append([]byte(nil), line...)
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			t.logger.Println("context cancelled, shutting down")
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						t.logger.Printf("input error: %v", err)
						return fmt.Errorf("read frame: %w", err)
					}
				default:
				}
				t.logger.Println("input closed, shutting down")
				return nil
			}
			if err := t.respond(ctx, frame); err != nil {
				t.logger.Printf("write error: %v", err)
				return err
			}
		}
	}
}

// respond dispatches one frame and writes exactly one response line.
func (t *StdioTransport) respond(ctx context.Context, frame []byte) error {
	resp, err := t.server.HandleRequest(ctx, frame)
	if err != nil {
		t.logger.Printf("handler fault: %v", err)
		resp = faultResponse(frame, err)
	}
	if _, err := fmt.Fprintf(t.out, "%s\n", resp); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// faultResponse builds an internal-error frame for a request the server
// could not answer, recovering the request ID from the raw bytes when
// possible so the caller can still correlate it.
func faultResponse(frame []byte, cause error) []byte {
	id := json.RawMessage("null")
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if json.Unmarshal(frame, &probe) == nil && len(probe.ID) > 0 {
		id = probe.ID
	}

	resp, err := json.Marshal(JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &JSONRPCError{Code: ErrCodeInternalError, Message: cause.Error()},
	})
	if err != nil {
		return []byte(fallbackFault)
	}
	return resp
}
