package hook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/chatshell/internal/config"
	"github.com/user/chatshell/internal/llm"
)

// newStubAssistant returns a client wired to a local server that always
// answers with a plain text reply.
func newStubAssistant(t *testing.T) *llm.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "stub reply"},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return llm.New(config.LLMConfig{
		Provider: "anthropic",
		Model:    "stub",
		APIKey:   "stub",
		BaseURL:  srv.URL,
	})
}
