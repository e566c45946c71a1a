package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/devchain-eth/devchain/log"
)

// maxRequestSize bounds request bodies. Blob transactions dominate the
// size of realistic payloads.
const maxRequestSize = 16 * 1024 * 1024

// Handler executes one JSON-RPC method.
type Handler interface {
	Handle(ctx context.Context, method string, params json.RawMessage) (interface{}, *Error)
}

// Server serves JSON-RPC 2.0 over HTTP, single calls and batches.
type Server struct {
	handler Handler
	logger  *log.Logger

	httpServer *http.Server
}

// NewServer wraps handler in an HTTP JSON-RPC endpoint.
func NewServer(handler Handler) *Server {
	s := &Server{
		handler: handler,
		logger:  log.Module("rpc"),
	}
	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("rpc server listening", "addr", ln.Addr().String())
	err := s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// ListenAndServe binds addr and serves until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize))
	if err != nil {
		writeJSON(w, ErrorResponse(nil, NewError(ErrCodeInvalidRequest, "unable to read request body")))
		return
	}
	w.Header().Set("Content-Type", "application/json")

	batch, isBatch, parseErr := parseRequests(body)
	if parseErr != nil {
		writeJSON(w, ErrorResponse(nil, parseErr))
		return
	}
	responses := make([]*Response, 0, len(batch))
	for _, req := range batch {
		responses = append(responses, s.dispatch(r.Context(), req))
	}
	if isBatch {
		writeJSON(w, responses)
		return
	}
	writeJSON(w, responses[0])
}

func (s *Server) dispatch(ctx context.Context, req Request) *Response {
	if req.Method == "" {
		return ErrorResponse(req.ID, NewError(ErrCodeInvalidRequest, "missing method"))
	}
	start := time.Now()
	result, rpcErr := s.handler.Handle(ctx, req.Method, req.Params)
	if rpcErr != nil {
		s.logger.Debug("rpc call failed", "method", req.Method, "code", rpcErr.Code, "err", rpcErr.Message)
		return ErrorResponse(req.ID, rpcErr)
	}
	s.logger.Debug("rpc call", "method", req.Method, "elapsed", time.Since(start))
	return NewResponse(req.ID, result)
}

func parseRequests(body []byte) ([]Request, bool, *Error) {
	trimmed := firstNonSpace(body)
	if trimmed == '[' {
		var batch []Request
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, false, NewError(ErrCodeParse, "invalid JSON")
		}
		if len(batch) == 0 {
			return nil, false, NewError(ErrCodeInvalidRequest, "empty batch")
		}
		return batch, true, nil
	}
	var single Request
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, false, NewError(ErrCodeParse, "invalid JSON")
	}
	return []Request{single}, false, nil
}

func firstNonSpace(b []byte) byte {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return c
	}
	return 0
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}
