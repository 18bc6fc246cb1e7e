// Package server binds the tool registry to a JSON-RPC 2.0 transport, over
// stdio by default or a TCP listener when configured.
package server

import (
	"context"
	"io"
	"log"
	"net"
	"os"
	"sync"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/winxlab/winx/core"
	"github.com/winxlab/winx/tools"
)

// Server dispatches JSON-RPC requests onto the tool registry. Each tool is a
// method; "tools/list" enumerates them.
type Server struct {
	Registry *tools.Registry
	Logger   *log.Logger
}

// handle is the jsonrpc2 handler; tool errors are mapped to protocol errors
// with an error_type tag and details blob.
func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	if req.Notif {
		return nil, nil
	}
	if req.Method == "tools/list" {
		return s.Registry.Names(), nil
	}
	var args []byte
	if req.Params != nil {
		args = *req.Params
	}
	result, err := s.Registry.Dispatch(ctx, req.Method, args)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Printf("%s failed: %v", req.Method, err)
		}
		return nil, core.ToRPCError(err)
	}
	return result, nil
}

// ServeStdio runs the server over stdin/stdout until the peer disconnects or
// the context is canceled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stream := jsonrpc2.NewBufferedStream(stdioPipe{}, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))
	if s.Logger != nil {
		s.Logger.Println("serving over stdio")
	}
	select {
	case <-ctx.Done():
		conn.Close()
		return ctx.Err()
	case <-conn.DisconnectNotify():
		return nil
	}
}

// ServeTCP accepts connections on addr, one jsonrpc2 session per connection,
// until the context is canceled.
func (s *Server) ServeTCP(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return core.NewError(core.ErrOther, "listen on %s: %v", addr, err)
	}
	if s.Logger != nil {
		s.Logger.Printf("listening on %s", addr)
	}

	var wg sync.WaitGroup
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	for {
		netConn, acceptErr := listener.Accept()
		if acceptErr != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return acceptErr
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			stream := jsonrpc2.NewBufferedStream(netConn, jsonrpc2.VSCodeObjectCodec{})
			conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))
			<-conn.DisconnectNotify()
		}()
	}
}

// stdioPipe adapts stdin/stdout into the ReadWriteCloser jsonrpc2 expects.
type stdioPipe struct{}

func (stdioPipe) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioPipe) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdioPipe) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}

var _ io.ReadWriteCloser = stdioPipe{}
