package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/xhad/lawrag/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Asker answers one question from the indexed precedents.
type Asker interface {
	Ask(ctx context.Context, question string, k int) (string, []models.Citation, error)
}

type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Data    any    `json:"data,omitempty"`
}

type QueryRequest struct {
	Question string `json:"question" validate:"required"`
	TopK     int    `json:"top_k" validate:"omitempty,min=1,max=50"`
	Sources  bool   `json:"sources"`
}

type QueryResponse struct {
	Answer  string            `json:"answer"`
	Sources []models.Citation `json:"sources,omitempty"`
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type Config struct {
	Addr           string
	RequestTimeout time.Duration
	TopK           int
}

type Server struct {
	config   Config
	asker    Asker
	validate *validator.Validate
	logger   *slog.Logger
}

func New(config Config, asker Asker, logger *slog.Logger) *Server {
	if config.Addr == "" {
		config.Addr = ":8001"
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 120 * time.Second
	}
	if config.TopK <= 0 {
		config.TopK = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:   config,
		asker:    asker,
		validate: validator.New(),
		logger:   logger,
	}
}

// Handler returns the routes wrapped in CORS and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
	})

	// Anything the routes above do not take still gets a JSON body.
	mux.HandleFunc("/query", methodNotAllowed(http.MethodPost))
	mux.HandleFunc("/ws", methodNotAllowed(http.MethodGet))
	mux.HandleFunc("/health", methodNotAllowed(http.MethodGet))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found: " + r.URL.Path})
	})

	return s.recoverer(cors(mux))
}

func methodNotAllowed(allow ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", strings.Join(allow, ", "))
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed: " + r.Method})
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting query server", "addr", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down query server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.RequestTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	req.Question = strings.TrimSpace(req.Question)

	if fields := s.validateRequest(&req); fields != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Fields: fields})
		return
	}

	k := req.TopK
	if k == 0 {
		k = s.config.TopK
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	start := time.Now()
	answer, citations, err := s.asker.Ask(ctx, req.Question, k)
	if err != nil {
		s.logger.Error("query failed", "error", err, "elapsed", time.Since(start))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	s.logger.Info("query answered", "top_k", k, "citations", len(citations), "elapsed", time.Since(start))

	resp := QueryResponse{Answer: answer}
	if req.Sources {
		resp.Sources = citations
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) validateRequest(req *QueryRequest) map[string]string {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	fields := make(map[string]string)
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		for _, e := range errs {
			fields[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
	} else {
		fields["request"] = err.Error()
	}
	return fields
}

// handleWebSocket treats every text message as a question. Questions on
// one connection are answered in order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			msg = Message{Type: "query", Content: string(message)}
		}
		s.handleMessage(r.Context(), conn, msg)
	}
}

func (s *Server) handleMessage(ctx context.Context, conn *websocket.Conn, msg Message) {
	query := strings.TrimSpace(msg.Content)
	if query == "" {
		s.sendMessage(conn, Message{Type: "error", Content: "empty question"})
		return
	}

	s.sendMessage(conn, Message{Type: "status", Content: "searching precedents"})

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	answer, citations, err := s.safeAsk(ctx, query)
	if err != nil {
		s.logger.Error("websocket query failed", "error", err)
		s.sendMessage(conn, Message{Type: "error", Content: err.Error()})
		return
	}
	s.sendMessage(conn, Message{Type: "response", Content: answer, Data: citations})
}

func (s *Server) safeAsk(ctx context.Context, query string) (answer string, citations []models.Citation, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic in websocket query", "panic", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("internal error")
		}
	}()
	return s.asker.Ask(ctx, query, s.config.TopK)
}

func (s *Server) sendMessage(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("error sending message", "error", err)
	}
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("panic in handler", "path", r.URL.Path, "panic", rec, "stack", string(debug.Stack()))
				writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
