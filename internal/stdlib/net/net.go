// Package net implements the @std/net module: HTTP requests and
// WebSocket connections, exposed to scripts as synchronous-looking
// calls via internal/bridge so a single blocking HTTP round trip or
// WebSocket read never stalls the VM thread. Grounded on net/http for
// the HTTP transport itself (no pack repository ships a client wrapper
// worth adopting over the standard library) and github.com/gorilla/
// websocket for the WebSocket lane, whose Dialer.DialContext/
// ReadMessage/WriteMessage call shapes are confirmed by haivivi-giztoy's
// openai-realtime and doubaospeech packages.
package net

import (
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzip"

	"github.com/quillrt/quill/internal/bridge"
	"github.com/quillrt/quill/internal/engine"
	"github.com/quillrt/quill/internal/scheduler"
)

// decompressBody transparently unwraps gzip/deflate response bodies per
// their Content-Encoding, matching the automatic decompression the
// original Lune net.request performs. Brotli ("br") is left as-is: no
// repository in the retrieval pack imports a Go brotli decoder (see
// stdlib/serde's ErrUnsupportedCodec), so a brotli-encoded body is
// returned to the caller undecoded rather than silently mishandled.
func decompressBody(encoding string, body io.ReadCloser) (io.ReadCloser, error) {
	switch encoding {
	case "gzip":
		return gzip.NewReader(body)
	case "deflate":
		return zlib.NewReader(body)
	default:
		return body, nil
	}
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Loader returns the @std/net table bound to s, so its functions can
// run through the async bridge instead of blocking the VM thread.
func Loader(s *scheduler.Scheduler) func(m *engine.Machine) ([]engine.Value, error) {
	return func(m *engine.Machine) ([]engine.Value, error) {
		t := engine.NewTable()
		t.Set("request", bridge.Wrap("net.request", s, requestHost))
		t.Set("wsConnect", bridge.Wrap("net.wsConnect", s, wsConnectHost))
		t.Set("wsSend", bridge.Wrap("net.wsSend", s, wsSendHost))
		t.Set("wsReceive", bridge.Wrap("net.wsReceive", s, wsReceiveHost))
		t.Set("wsClose", bridge.Wrap("net.wsClose", s, wsCloseHost))
		t.Set("serve", serveFunc(s))
		return []engine.Value{t}, nil
	}
}

// request(options) -> {status, body, headers}, where options is a table
// with method, url, body, and headers fields.
func requestHost(ctx context.Context, args []engine.Value) ([]engine.Value, error) {
	if len(args) < 1 {
		return nil, engine.Errorf("request requires an options table")
	}
	opts, ok := args[0].(*engine.Table)
	if !ok {
		return nil, engine.Errorf("request: expected a table, got %s", engine.TypeName(args[0]))
	}
	method, _ := opts.Get("method").(string)
	if method == "" {
		method = http.MethodGet
	}
	url, _ := opts.Get("url").(string)
	if url == "" {
		return nil, engine.Errorf("request: missing url")
	}
	var body io.Reader
	if b, ok := opts.Get("body").(string); ok {
		body = strings.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, engine.Errorf("request: %v", err)
	}
	if headers, ok := opts.Get("headers").(*engine.Table); ok {
		for _, k := range headers.Keys() {
			key := engine.ToDisplayString(k)
			val := engine.ToDisplayString(headers.Get(k))
			req.Header.Set(key, val)
		}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, engine.Errorf("request: %v", err)
	}
	defer resp.Body.Close()

	decoded := resp.Body
	if !engine.Truthy(opts.Get("skipDecompress")) {
		decoded, err = decompressBody(resp.Header.Get("Content-Encoding"), resp.Body)
		if err != nil {
			return nil, engine.Errorf("request: %v", err)
		}
		if decoded != resp.Body {
			defer decoded.Close()
		}
	}
	respBody, err := io.ReadAll(decoded)
	if err != nil {
		return nil, engine.Errorf("request: %v", err)
	}
	result := engine.NewTable()
	result.Set("status", float64(resp.StatusCode))
	result.Set("body", string(respBody))
	respHeaders := engine.NewTable()
	for k := range resp.Header {
		respHeaders.Set(k, resp.Header.Get(k))
	}
	result.Set("headers", respHeaders)
	return []engine.Value{result}, nil
}

var sockets = struct {
	mu   sync.Mutex
	next int
	live map[int]*websocket.Conn
}{live: make(map[int]*websocket.Conn)}

func wsConnectHost(ctx context.Context, args []engine.Value) ([]engine.Value, error) {
	if len(args) < 1 {
		return nil, engine.Errorf("wsConnect requires a url")
	}
	url, ok := args[0].(string)
	if !ok {
		return nil, engine.Errorf("wsConnect: expected a string, got %s", engine.TypeName(args[0]))
	}
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, engine.Errorf("wsConnect: %v", err)
	}
	sockets.mu.Lock()
	sockets.next++
	id := sockets.next
	sockets.live[id] = conn
	sockets.mu.Unlock()
	return []engine.Value{float64(id)}, nil
}

func socketFor(args []engine.Value) (*websocket.Conn, error) {
	if len(args) < 1 {
		return nil, engine.Errorf("expected a socket handle")
	}
	n, ok := args[0].(float64)
	if !ok {
		return nil, engine.Errorf("expected a socket handle, got %s", engine.TypeName(args[0]))
	}
	sockets.mu.Lock()
	conn, ok := sockets.live[int(n)]
	sockets.mu.Unlock()
	if !ok {
		return nil, engine.Errorf("socket handle is closed or unknown")
	}
	return conn, nil
}

func wsSendHost(ctx context.Context, args []engine.Value) ([]engine.Value, error) {
	conn, err := socketFor(args)
	if err != nil {
		return nil, err
	}
	if len(args) < 2 {
		return nil, engine.Errorf("wsSend requires a message string")
	}
	text, ok := args[1].(string)
	if !ok {
		return nil, engine.Errorf("wsSend: expected a string, got %s", engine.TypeName(args[1]))
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return nil, engine.Errorf("wsSend: %v", err)
	}
	return nil, nil
}

func wsReceiveHost(ctx context.Context, args []engine.Value) ([]engine.Value, error) {
	conn, err := socketFor(args)
	if err != nil {
		return nil, err
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, engine.Errorf("wsReceive: %v", err)
	}
	return []engine.Value{string(data)}, nil
}

// serveFunc implements net.serve(options) -> {stop = fn()}: options.port
// (number) and options.handler (a function(request) -> response table, or
// -> a plain string body). The listener itself runs on the executor's
// background lane (spec.md §4.1's spawn_future), matching the teacher's
// "the bridge doesn't know how to run a server, the executor does" shape;
// each inbound request is marshaled onto the executor's local lane
// (spawn_local) so the handler runs on the VM thread like any other
// script code, and the request goroutine blocks until that completes.
//
// The handler is invoked outside any tracked coroutine (there is no
// script-level caller to yield back to when a raw net/http request
// arrives), so it must be purely synchronous: calling wait(), an @std
// async function, or require() of a still-pending module from inside a
// serve handler fails with "outside a running coroutine" rather than
// hanging the request. Scripts needing async work per-request should kick
// it off with task.spawn from the handler and return immediately.
func serveFunc(s *scheduler.Scheduler) *engine.NativeFunc {
	return &engine.NativeFunc{Name: "net.serve", Fn: func(f *engine.Frame, args []engine.Value) (engine.Value, error) {
		if len(args) < 1 {
			return nil, engine.Errorf("serve requires an options table")
		}
		opts, ok := args[0].(*engine.Table)
		if !ok {
			return nil, engine.Errorf("serve: expected a table, got %s", engine.TypeName(args[0]))
		}
		port, _ := opts.Get("port").(float64)
		if port <= 0 {
			return nil, engine.Errorf("serve: missing port")
		}
		handler := opts.Get("handler")
		if handler == nil {
			return nil, engine.Errorf("serve: missing handler")
		}
		machine := f.Machine

		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			serveRequest(s, machine, handler, w, r)
		})
		srv := &http.Server{Addr: fmt.Sprintf(":%d", int(port)), Handler: mux}

		s.Exec.SpawnFuture(func(ctx context.Context) error {
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})

		handle := engine.NewTable()
		handle.Set("stop", &engine.NativeFunc{Name: "net.serve.stop", Fn: func(f *engine.Frame, args []engine.Value) (engine.Value, error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return nil, srv.Shutdown(shutdownCtx)
		}})
		return handle, nil
	}}
}

type serveResult struct {
	values []engine.Value
	err    error
}

func serveRequest(s *scheduler.Scheduler, m *engine.Machine, handler engine.Value, w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	reqTable := engine.NewTable()
	reqTable.Set("method", r.Method)
	reqTable.Set("path", r.URL.Path)
	reqTable.Set("query", r.URL.RawQuery)
	reqTable.Set("body", string(body))
	headers := engine.NewTable()
	for k := range r.Header {
		headers.Set(k, r.Header.Get(k))
	}
	reqTable.Set("headers", headers)

	done := make(chan serveResult, 1)
	s.Exec.SpawnLocal(func() {
		values, err := engine.CallValue(&engine.Frame{Machine: m}, handler, []engine.Value{reqTable})
		done <- serveResult{values: values, err: err}
	})
	res := <-done
	writeServeResult(w, res)
}

func writeServeResult(w http.ResponseWriter, res serveResult) {
	if res.err != nil {
		http.Error(w, res.err.Error(), http.StatusInternalServerError)
		return
	}
	status := http.StatusOK
	body := ""
	if len(res.values) > 0 {
		switch v := res.values[0].(type) {
		case *engine.Table:
			if st, ok := v.Get("status").(float64); ok {
				status = int(st)
			}
			if b, ok := v.Get("body").(string); ok {
				body = b
			}
			if hdrs, ok := v.Get("headers").(*engine.Table); ok {
				for _, k := range hdrs.Keys() {
					w.Header().Set(engine.ToDisplayString(k), engine.ToDisplayString(hdrs.Get(k)))
				}
			}
		case string:
			body = v
		}
	}
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func wsCloseHost(ctx context.Context, args []engine.Value) ([]engine.Value, error) {
	if len(args) < 1 {
		return nil, engine.Errorf("wsClose requires a socket handle")
	}
	n, ok := args[0].(float64)
	if !ok {
		return nil, engine.Errorf("wsClose: expected a socket handle, got %s", engine.TypeName(args[0]))
	}
	id := int(n)
	sockets.mu.Lock()
	conn, ok := sockets.live[id]
	delete(sockets.live, id)
	sockets.mu.Unlock()
	if !ok {
		return nil, nil
	}
	if err := conn.Close(); err != nil {
		return nil, engine.Errorf("wsClose: %v", err)
	}
	return nil, nil
}
