package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/bitnetwork/bvm/log"
	"github.com/bitnetwork/bvm/metrics"
)

const (
	// maxRequestSize bounds the body of a single HTTP request.
	maxRequestSize = 5 * 1024 * 1024
	// maxBatchSize bounds the number of calls in one batch.
	maxBatchSize = 100
)

// Server is a JSON-RPC HTTP server that dispatches requests to the EthAPI.
// It also exposes the metrics registry at /metrics.
type Server struct {
	api *EthAPI
	mux *http.ServeMux
	log *log.Logger
}

// NewServer creates a new JSON-RPC server.
func NewServer(backend Backend) *Server {
	s := &Server{
		api: NewEthAPI(backend),
		mux: http.NewServeMux(),
		log: log.Default().Module("rpc"),
	}
	s.mux.HandleFunc("/", s.handleRPC)
	s.mux.Handle("/metrics", metrics.DefaultRegistry.Handler())
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize+1))
	if err != nil {
		writeError(w, nil, ErrCodeParse, "failed to read request body")
		return
	}
	if len(body) > maxRequestSize {
		writeError(w, nil, ErrCodeInvalidRequest, "request too large")
		return
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		s.handleBatch(w, r, body)
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, ErrCodeParse, "invalid JSON")
		return
	}
	writeJSON(w, s.serve(r, &req))
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request, body []byte) {
	var reqs []Request
	if err := json.Unmarshal(body, &reqs); err != nil {
		writeError(w, nil, ErrCodeParse, "invalid JSON")
		return
	}
	if len(reqs) == 0 {
		writeError(w, nil, ErrCodeInvalidRequest, "empty batch")
		return
	}
	if len(reqs) > maxBatchSize {
		writeError(w, nil, ErrCodeInvalidRequest, "batch too large")
		return
	}
	resps := make([]*Response, len(reqs))
	for i := range reqs {
		resps[i] = s.serve(r, &reqs[i])
	}
	writeJSON(w, resps)
}

func (s *Server) serve(r *http.Request, req *Request) *Response {
	metrics.RPCRequests.Inc()
	var resp *Response
	if req.JSONRPC != "2.0" || req.Method == "" {
		resp = errorResponse(req.ID, ErrCodeInvalidRequest, "invalid request")
	} else {
		resp = s.api.HandleRequest(r.Context(), req)
	}
	if resp.Error != nil {
		metrics.RPCErrors.Inc()
		s.log.Debug("request failed", "method", req.Method, "code", resp.Error.Code, "err", resp.Error.Message)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	metrics.RPCErrors.Inc()
	resp := &Response{
		JSONRPC: "2.0",
		Error:   &RPCError{Code: code, Message: message},
		ID:      id,
	}
	writeJSON(w, resp)
}
