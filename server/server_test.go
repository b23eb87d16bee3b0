package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/lawrag/internal/logging"
	"github.com/xhad/lawrag/internal/models"
	"github.com/xhad/lawrag/internal/types"
	"github.com/xhad/lawrag/server"
)

type fakeAsker struct {
	answer string
	err    error
	panics bool
	gotK   int
	gotQ   string
}

func (f *fakeAsker) Ask(_ context.Context, q string, k int) (string, []models.Citation, error) {
	if f.panics {
		panic("collection is nil")
	}
	f.gotQ, f.gotK = q, k
	if f.err != nil {
		return "", nil, f.err
	}
	return f.answer, []models.Citation{{Rank: 1, Identifier: "2020다1", Preview: "p"}}, nil
}

func newTestServer(asker server.Asker) *httptest.Server {
	s := server.New(server.Config{TopK: 3, RequestTimeout: 5 * time.Second}, asker, logging.Discard())
	return httptest.NewServer(s.Handler())
}

func postQuery(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url+"/query", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestQuery(t *testing.T) {
	asker := &fakeAsker{answer: "보증금 반환 청구가 인정됩니다."}
	srv := newTestServer(asker)
	defer srv.Close()

	resp, body := postQuery(t, srv.URL, `{"question": "  임대차 보증금  "}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "보증금 반환 청구가 인정됩니다.", body["answer"])
	assert.NotContains(t, body, "sources")
	assert.Equal(t, "임대차 보증금", asker.gotQ)
	assert.Equal(t, 3, asker.gotK)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	_, body = postQuery(t, srv.URL, `{"question": "q", "top_k": 5, "sources": true}`)
	assert.Equal(t, 5, asker.gotK)
	require.Len(t, body["sources"], 1)
}

func TestQueryErrors(t *testing.T) {
	srv := newTestServer(&fakeAsker{})
	defer srv.Close()

	for _, tc := range []struct {
		name   string
		body   string
		status int
	}{
		{"malformed", `{"question":`, http.StatusBadRequest},
		{"wrong type", `{"question": 7}`, http.StatusBadRequest},
		{"missing question", `{}`, http.StatusUnprocessableEntity},
		{"blank question", `{"question": "   "}`, http.StatusUnprocessableEntity},
		{"top_k too large", `{"question": "q", "top_k": 500}`, http.StatusUnprocessableEntity},
	} {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := postQuery(t, srv.URL, tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestQueryPipelineFailure(t *testing.T) {
	srv := newTestServer(&fakeAsker{err: errors.Join(types.ErrStoreQuery, errors.New("chroma down"))})
	defer srv.Close()

	resp, body := postQuery(t, srv.URL, `{"question": "q"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["error"], "chroma down")
}

func TestQueryRecoversFromPanic(t *testing.T) {
	srv := newTestServer(&fakeAsker{panics: true})
	defer srv.Close()

	resp, body := postQuery(t, srv.URL, `{"question": "q"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal error", body["error"])

	// the server keeps serving
	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestHealthAndPreflight(t *testing.T) {
	srv := newTestServer(&fakeAsker{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	assert.Equal(t, map[string]string{"result": "ok"}, out)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/query", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestUnroutedRequestsGetJSON(t *testing.T) {
	srv := newTestServer(&fakeAsker{})
	defer srv.Close()

	tests := []struct {
		method, path string
		status       int
		allow        string
	}{
		{http.MethodGet, "/query", http.StatusMethodNotAllowed, "POST"},
		{http.MethodPut, "/query", http.StatusMethodNotAllowed, "POST"},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed, "GET"},
		{http.MethodDelete, "/ws", http.StatusMethodNotAllowed, "GET"},
		{http.MethodGet, "/precedents", http.StatusNotFound, ""},
		{http.MethodPost, "/", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			assert.Equal(t, tt.allow, resp.Header.Get("Allow"))

			var out server.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.NotEmpty(t, out.Error)
		})
	}
}

func TestWebSocket(t *testing.T) {
	srv := newTestServer(&fakeAsker{answer: "답변"})
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(server.Message{Type: "query", Content: "사기죄 판례"}))

	var status, reply server.Message
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, "status", status.Type)
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "response", reply.Type)
	assert.Equal(t, "답변", reply.Content)

	// plain text frames are questions too
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("   ")))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := server.New(server.Config{Addr: "127.0.0.1:0", RequestTimeout: time.Second}, &fakeAsker{}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
