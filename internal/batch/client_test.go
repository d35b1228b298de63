package batch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/feedback-importer/internal/domain"
)

func TestStatusDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/batch-import/b%201/status", r.URL.EscapedPath())
		writeData(w, http.StatusOK, domain.Status{
			BatchID:  "b 1",
			Status:   domain.BatchImporting,
			Progress: &domain.Progress{Total: 10, New: 4},
		})
	}))
	defer srv.Close()

	st, err := NewClient(srv.URL).Status(context.Background(), "b 1")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchImporting, st.Status)
	assert.Equal(t, 4, st.Progress.New)
}

func TestBuildPromptSendsDedupColumns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"dedup_columns":[]}`, string(body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		writeData(w, http.StatusOK, domain.PromptPreview{PromptText: "map these", Source: domain.PromptSourceGenerated})
	}))
	defer srv.Close()

	prompt, err := NewClient(srv.URL).BuildPrompt(context.Background(), "b1", nil)
	require.NoError(t, err)
	assert.Equal(t, "map these", prompt.PromptText)
	assert.False(t, prompt.CacheHit)
}

func TestConfirmMappingBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/batch-import/b1/confirm-mapping", r.URL.Path)
		var req domain.ConfirmMappingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "content", req.ConfirmedMappings["text"].Target)
		writeData(w, http.StatusAccepted, map[string]string{"status": "importing"})
	}))
	defer srv.Close()

	err := NewClient(srv.URL).ConfirmMapping(context.Background(), "b1",
		domain.NewConfirmMappingRequest(map[string]string{"text": "content"}))
	assert.NoError(t, err)
}

func TestProcessPipelinePath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pipeline/process", r.URL.Path)
		writeData(w, http.StatusAccepted, domain.PipelineResult{BatchID: "b1", PipelineStatus: domain.PipelineProcessing})
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).ProcessPipeline(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.PipelineProcessing, res.PipelineStatus)
}

func TestServiceErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusConflict, domain.APIError{
			Code:    domain.CodeInvalidState,
			Message: "batch is not awaiting a mapping",
			Details: map[string]any{"status": "importing"},
		})
	}))
	defer srv.Close()

	err := NewClient(srv.URL).GenerateMapping(context.Background(), "b1", []string{"id"})
	require.Error(t, err)

	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusConflict, se.HTTPStatus)
	assert.Equal(t, domain.CodeInvalidState, se.Code)
	assert.Equal(t, "importing", se.Details["status"])
	assert.Equal(t, KindService, KindOf(err))
	assert.Equal(t, "batch is not awaiting a mapping", UserMessage(err))
}

func TestNonEnvelopeErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).DataPreview(context.Background(), "b1")
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.HTTPStatus)
	assert.Contains(t, se.Message, "upstream exploded")
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Status(context.Background(), "b1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestAuthExpiredOutsideUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	called := false
	_, err := NewClient(srv.URL, WithAuthExpired(func() { called = true })).MappingPreview(context.Background(), "b1")
	assert.Equal(t, KindAuthExpired, KindOf(err))
	assert.True(t, called)
}
