package server

import (
	"context"
	"net"
	"os"
	"testing"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/require"

	"github.com/winxlab/winx/core"
	"github.com/winxlab/winx/shell"
	"github.com/winxlab/winx/tools"
)

// newClientConn wires a client to the server handler over an in-memory pipe.
func newClientConn(t *testing.T) *jsonrpc2.Conn {
	t.Helper()
	deps := &tools.Deps{
		Engine:   core.NewEngine(),
		Sessions: shell.NewManager(&shell.ScreenManager{}),
	}
	t.Cleanup(deps.Sessions.CloseAll)
	srv := &Server{Registry: tools.NewRegistry(deps)}

	clientSide, serverSide := net.Pipe()
	ctx := context.Background()
	serverConn := jsonrpc2.NewConn(ctx,
		jsonrpc2.NewBufferedStream(serverSide, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(srv.handle))
	client := jsonrpc2.NewConn(ctx,
		jsonrpc2.NewBufferedStream(clientSide, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(func(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) (any, error) {
			return nil, nil
		}))
	t.Cleanup(func() {
		client.Close()
		serverConn.Close()
	})
	return client
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// TestToolsList enumerates the registered tool names.
func TestToolsList(t *testing.T) {
	client := newClientConn(t)
	var names []string
	err := client.Call(context.Background(), "tools/list", nil, &names)
	require.NoError(t, err)
	require.Contains(t, names, "initialize")
	require.Contains(t, names, "file_edit")
	require.Len(t, names, 7)
}

// TestDispatchBeforeInitialize maps the latch failure onto an invalid-request
// protocol error.
func TestDispatchBeforeInitialize(t *testing.T) {
	client := newClientConn(t)
	var result string
	err := client.Call(context.Background(), "read_files",
		map[string]any{"file_paths": []string{"a.txt"}}, &result)
	require.Error(t, err)
	rpcErr, ok := err.(*jsonrpc2.Error)
	require.True(t, ok, "expected a protocol error, got %T", err)
	require.Equal(t, int64(jsonrpc2.CodeInvalidRequest), rpcErr.Code)
}

// TestInitializeThenRead runs the happy path end to end over the wire.
func TestInitializeThenRead(t *testing.T) {
	client := newClientConn(t)
	ctx := context.Background()
	ws := t.TempDir()

	var result string
	err := client.Call(ctx, "initialize", map[string]any{
		"type":           "first_call",
		"workspace_path": ws,
	}, &result)
	require.NoError(t, err)
	require.Contains(t, result, "Initialized in full mode.")

	writeTestFile(t, ws+"/greet.txt", "hello wire\n")
	err = client.Call(ctx, "read_files", map[string]any{
		"file_paths": []string{"greet.txt"},
	}, &result)
	require.NoError(t, err)
	require.Contains(t, result, "hello wire")
}

// TestUnknownMethod maps onto invalid params.
func TestUnknownMethod(t *testing.T) {
	client := newClientConn(t)
	var result string
	err := client.Call(context.Background(), "bogus", map[string]any{}, &result)
	require.Error(t, err)
	rpcErr, ok := err.(*jsonrpc2.Error)
	require.True(t, ok)
	require.Equal(t, int64(jsonrpc2.CodeInvalidParams), rpcErr.Code)
}
