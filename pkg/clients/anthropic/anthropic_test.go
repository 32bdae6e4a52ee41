package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
)

func newTestServer(t *testing.T, status int, reply string, inspect func(req messageRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, messagesPath, r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))

		var req messageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if inspect != nil {
			inspect(req)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 400 {
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error"}}`))
			return
		}
		body, _ := json.Marshal(map[string]any{
			"content": []map[string]string{{"type": "text", "text": reply}},
		})
		_, _ = w.Write(body)
	}))
}

func TestAnalyzeText(t *testing.T) {
	reply := `"foods":[{"name":"banana","calories":105.4,"protein":1.3,"fat":0.4,"carbs":27,"weight":"1 medium"},{"name":"","calories":10}]}`
	srv := newTestServer(t, http.StatusOK, reply, func(req messageRequest) {
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "a banana", req.Messages[0].Content[0].Text)
		assert.Equal(t, "{", req.Messages[1].Content[0].Text)
	})
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithModel("test-model"))
	foods, err := client.AnalyzeText(context.Background(), "  a banana ")
	require.NoError(t, err)
	require.Len(t, foods, 1, "the nameless item is dropped")
	assert.Equal(t, "banana", foods[0].Name)
	assert.Equal(t, 105, foods[0].Calories)
	assert.Equal(t, models.SourceTextAnalysis, foods[0].Source)
}

func TestAnalyzePhoto(t *testing.T) {
	reply := `"foods":[{"name":"pizza slice","calories":285,"protein":12,"fat":10,"carbs":36}]}`
	srv := newTestServer(t, http.StatusOK, reply, func(req messageRequest) {
		block := req.Messages[0].Content[0]
		assert.Equal(t, "image", block.Type)
		require.NotNil(t, block.Source)
		assert.Equal(t, "image/png", block.Source.MediaType)
		assert.Equal(t, "AQID", block.Source.Data)
	})
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	foods, err := client.AnalyzePhoto(context.Background(), []byte{1, 2, 3}, "image/png")
	require.NoError(t, err)
	require.Len(t, foods, 1)
	assert.Equal(t, "1 serving", foods[0].Weight)
	assert.Equal(t, models.SourcePhotoAnalysis, foods[0].Source)
}

func TestAnalyze_Errors(t *testing.T) {
	client := NewClient("test-key")
	_, err := client.AnalyzeText(context.Background(), " ")
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = client.AnalyzePhoto(context.Background(), []byte{1}, "application/pdf")
	assert.ErrorIs(t, err, models.ErrValidation)

	srv := newTestServer(t, http.StatusServiceUnavailable, "", nil)
	defer srv.Close()
	client = NewClient("test-key", WithBaseURL(srv.URL))
	_, err = client.AnalyzeText(context.Background(), "soup")
	assert.ErrorContains(t, err, "503")

	empty := newTestServer(t, http.StatusOK, `"foods":[]}`, nil)
	defer empty.Close()
	client = NewClient("test-key", WithBaseURL(empty.URL))
	_, err = client.AnalyzeText(context.Background(), "a rock")
	assert.ErrorIs(t, err, ErrNoFoods)
}

func TestParseFoods_StripsCodeFences(t *testing.T) {
	foods, err := ParseFoods("```json\n{\"foods\":[{\"name\":\"apple\",\"calories\":95,\"weight\":\"1\"}]}\n```", models.SourceTextAnalysis)
	require.NoError(t, err)
	assert.Equal(t, "apple", foods[0].Name)

	_, err = ParseFoods("not json", models.SourceTextAnalysis)
	assert.Error(t, err)
}
