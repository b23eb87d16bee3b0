package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/lawrag/internal/types"
	"github.com/xhad/lawrag/pkg/llm"
)

func TestNewWithConfig(t *testing.T) {
	config := llm.ChatConfig{
		Provider:    "langchain",
		Model:       "testmodel",
		Temperature: 0.5,
		MaxTokens:   1000,
		BaseURL:     "http://localhost:1234",
	}
	engine, err := llm.NewWithConfig(config)
	assert.NoError(t, err)
	assert.NotNil(t, engine)

	_, err = llm.NewWithConfig(llm.ChatConfig{Temperature: 3})
	assert.Error(t, err)

	_, err = llm.NewWithConfig(llm.ChatConfig{MaxTokens: -1})
	assert.Error(t, err)

	_, err = llm.NewWithConfig(llm.ChatConfig{Provider: "gpt"})
	assert.Error(t, err)
}

func TestOllamaCompleter(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"mistral","response":"  손해배상 책임이 인정됩니다.\n","done":true}` + "\n"))
	}))
	defer srv.Close()

	c, err := llm.NewWithConfig(llm.ChatConfig{Provider: "ollama", BaseURL: srv.URL, Temperature: 0.7})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "질문", "")
	require.NoError(t, err)
	assert.Equal(t, "손해배상 책임이 인정됩니다.", out)
	assert.Equal(t, "mistral", got["model"])
	assert.Equal(t, "질문", got["prompt"])
	assert.Equal(t, false, got["stream"])
}

func TestOllamaCompleterError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'mistral' not found"}`))
	}))
	defer srv.Close()

	c, err := llm.NewOllamaCompleter(llm.ChatConfig{BaseURL: srv.URL, Model: "mistral"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "질문", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrCompletion)
}

func TestExecCompleter(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}

	c, err := llm.NewExecCompleter(llm.ChatConfig{Command: []string{"echo"}, Model: "llama2"})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "판례 요약", "")
	require.NoError(t, err)
	assert.Equal(t, "llama2 판례 요약", out)

	out, err = c.Complete(context.Background(), "x", "mistral")
	require.NoError(t, err)
	assert.Equal(t, "mistral x", out)
}

func TestExecCompleterFailure(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}

	c, err := llm.NewExecCompleter(llm.ChatConfig{Command: []string{"false"}, Model: "m"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "x", "")
	assert.ErrorIs(t, err, types.ErrCompletion)

	_, err = llm.NewExecCompleter(llm.ChatConfig{Command: []string{"definitely-not-a-binary-lawrag"}})
	assert.Error(t, err)
}
