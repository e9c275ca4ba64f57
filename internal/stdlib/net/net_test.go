package net

import (
	"fmt"
	"io"
	stdnet "net"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quillrt/quill/internal/engine"
	"github.com/quillrt/quill/internal/scheduler"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := stdnet.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*stdnet.TCPAddr).Port
	l.Close()
	return port
}

func TestRequestFetchesOverHTTP(t *testing.T) {
	const body = "hello from the server"
	srv := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	s := scheduler.New()
	loaded, err := Loader(s)(s.Machine)
	if err != nil {
		t.Fatalf("Loader: %v", err)
	}
	mod := loaded[0].(*engine.Table)
	s.Machine.Globals.Set("net", mod)

	src := fmt.Sprintf(`
		local opts = {}
		opts.method = "GET"
		opts.url = %q
		local resp = net.request(opts)
		status = resp.status
		responseBody = resp.body
	`, srv.URL)
	main, err := engine.NewMainCoroutine(s.Machine, src, "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	code := s.Run(main, nil)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if s.Machine.Globals.Get("status") != float64(200) {
		t.Fatalf("status = %v", s.Machine.Globals.Get("status"))
	}
	if s.Machine.Globals.Get("responseBody") != body {
		t.Fatalf("responseBody = %v", s.Machine.Globals.Get("responseBody"))
	}
}

func TestRequestReportsHostErrorForBadURL(t *testing.T) {
	s := scheduler.New()
	var reported error
	s.SetErrorCallback(func(err error) { reported = err })
	loaded, _ := Loader(s)(s.Machine)
	mod := loaded[0].(*engine.Table)
	s.Machine.Globals.Set("net", mod)

	main, err := engine.NewMainCoroutine(s.Machine, `
		local opts = {}
		opts.url = "http://127.0.0.1:0/unreachable"
		net.request(opts)
	`, "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s.Run(main, nil)
	if reported == nil {
		t.Fatalf("expected a reported error for an unreachable host")
	}
}

func TestServeHandlesRequestsOnVMThread(t *testing.T) {
	s := scheduler.New()
	loaded, err := Loader(s)(s.Machine)
	if err != nil {
		t.Fatalf("Loader: %v", err)
	}
	mod := loaded[0].(*engine.Table)
	s.Machine.Globals.Set("net", mod)

	port := freePort(t)
	src := fmt.Sprintf(`
		local opts = {}
		opts.port = %d
		opts.handler = function(req)
			local resp = {}
			resp.status = 200
			resp.body = "hello " .. req.path
			return resp
		end
		handle = net.serve(opts)
	`, port)
	main, err := engine.NewMainCoroutine(s.Machine, src, "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	done := make(chan int, 1)
	go func() { done <- s.Run(main, nil) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/world", port)
	var resp *stdhttp.Response
	for i := 0; i < 100; i++ {
		resp, err = stdhttp.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "hello /world" {
		t.Fatalf("body = %q, want %q", body, "hello /world")
	}

	handle, ok := s.Machine.Globals.Get("handle").(*engine.Table)
	if !ok {
		t.Fatalf("handle not recorded as a table")
	}
	if _, err := engine.CallValue(&engine.Frame{Machine: s.Machine}, handle.Get("stop"), nil); err != nil {
		t.Fatalf("stop: %v", err)
	}

	select {
	case code := <-done:
		if code != 0 {
			t.Fatalf("exit code = %d, want 0", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not terminate after stop")
	}
}
