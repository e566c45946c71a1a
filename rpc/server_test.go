package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type echoHandler struct{}

func (echoHandler) Handle(ctx context.Context, method string, params json.RawMessage) (interface{}, *Error) {
	switch method {
	case "test_echo":
		var args []string
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, NewError(ErrCodeInvalidParams, err.Error())
		}
		return args, nil
	case "test_fail":
		return nil, NewError(ErrCodeServer, "boom")
	}
	return nil, NewError(ErrCodeMethodNotFound, "unknown method")
}

func post(t *testing.T, srv *httptest.Server, body string) []byte {
	t.Helper()
	resp, err := http.Post(srv.URL, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return buf.Bytes()
}

func TestServerSingleRequest(t *testing.T) {
	srv := httptest.NewServer(NewServer(echoHandler{}))
	defer srv.Close()

	body := post(t, srv, `{"jsonrpc":"2.0","id":1,"method":"test_echo","params":["a","b"]}`)
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, body)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	var result []string
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("result: %v", err)
	}
	if len(result) != 2 || result[0] != "a" || result[1] != "b" {
		t.Errorf("result = %v", result)
	}
}

func TestServerErrorResponse(t *testing.T) {
	srv := httptest.NewServer(NewServer(echoHandler{}))
	defer srv.Close()

	body := post(t, srv, `{"jsonrpc":"2.0","id":2,"method":"test_fail"}`)
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeServer {
		t.Errorf("error = %v, want code %d", resp.Error, ErrCodeServer)
	}
}

func TestServerBatch(t *testing.T) {
	srv := httptest.NewServer(NewServer(echoHandler{}))
	defer srv.Close()

	body := post(t, srv, `[
		{"jsonrpc":"2.0","id":1,"method":"test_echo","params":["x"]},
		{"jsonrpc":"2.0","id":2,"method":"test_missing"}
	]`)
	var resps []Response
	if err := json.Unmarshal(body, &resps); err != nil {
		t.Fatalf("unmarshal batch: %v (%s)", err, body)
	}
	if len(resps) != 2 {
		t.Fatalf("batch size = %d, want 2", len(resps))
	}
	if resps[0].Error != nil {
		t.Errorf("first response errored: %v", resps[0].Error)
	}
	if resps[1].Error == nil || resps[1].Error.Code != ErrCodeMethodNotFound {
		t.Errorf("second response = %v, want method-not-found", resps[1].Error)
	}
}

func TestServerParseError(t *testing.T) {
	srv := httptest.NewServer(NewServer(echoHandler{}))
	defer srv.Close()

	body := post(t, srv, `{not json`)
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeParse {
		t.Errorf("error = %v, want parse error", resp.Error)
	}
}

func TestServerRejectsGet(t *testing.T) {
	srv := httptest.NewServer(NewServer(echoHandler{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
