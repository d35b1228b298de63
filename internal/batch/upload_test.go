package batch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/feedback-importer/internal/domain"
	"github.com/jaki95/feedback-importer/internal/progress"
)

func TestUploadTimeout(t *testing.T) {
	tests := []struct {
		name string
		size int64
		want time.Duration
	}{
		{"empty file", 0, 60 * time.Second},
		{"one byte", 1, 70 * time.Second},
		{"exactly one MiB", mib, 70 * time.Second},
		{"just over one MiB", mib + 1, 80 * time.Second},
		{"25 MiB", 25 * mib, 310 * time.Second},
		{"negative size", -5, 60 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UploadTimeout(tt.size, DefaultUploadBaseTimeout, DefaultUploadPerMiBTimeout))
		})
	}
}

func TestUploadTimeoutMonotonic(t *testing.T) {
	prev := time.Duration(0)
	for size := int64(0); size < 40*mib; size += mib / 3 {
		got := UploadTimeout(size, DefaultUploadBaseTimeout, DefaultUploadPerMiBTimeout)
		assert.GreaterOrEqual(t, got, prev, "size %d", size)
		prev = got
	}
}

func TestUploadSendsMultipartAndReportsProgress(t *testing.T) {
	content := strings.Repeat("id,text\n1,great app\n", 2000)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/batch-import/upload", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "weibo", r.FormValue("source"))
		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, content, string(body))
		assert.Equal(t, "feedback.csv", header.Filename)

		writeData(w, http.StatusCreated, domain.UploadResult{
			BatchID:          "b1",
			FileInfo:         domain.FileInfo{Name: header.Filename, Size: int64(len(body))},
			DuplicateBatchID: "b0",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/api/v1", WithToken("secret"))
	tracker := progress.NewTracker()
	var mu sync.Mutex
	var events []progress.Event
	tracker.AddListener(func(e progress.Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	file := &File{Name: "feedback.csv", Size: int64(len(content)), Content: strings.NewReader(content)}
	res, err := client.Upload(context.Background(), file, "weibo", tracker)
	require.NoError(t, err)
	assert.Equal(t, "b1", res.BatchID)
	assert.Equal(t, "b0", res.DuplicateBatchID)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, progress.StageComplete, last.Stage)
	assert.Equal(t, float64(100), last.Percent)
}

func TestUploadAbortsOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithUploadTimeout(50*time.Millisecond, 0))
	file := &File{Name: "a.csv", Size: 3, Content: strings.NewReader("a,b")}

	_, err := client.Upload(context.Background(), file, "web", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, KindAbort, KindOf(err))
	assert.Contains(t, err.Error(), "timed out")
}

func TestUploadAbortsOnCancel(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	client := NewClient(srv.URL)
	_, err := client.Upload(ctx, &File{Name: "a.csv", Size: 3, Content: strings.NewReader("a,b")}, "web", nil)
	assert.Equal(t, KindAbort, KindOf(err))
	assert.Contains(t, err.Error(), "cancelled")
}

func TestUploadAuthExpiredInvalidatesSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	invalidated := 0
	client := NewClient(srv.URL, WithAuthExpired(func() { invalidated++ }))
	tracker := progress.NewTracker()

	_, err := client.Upload(context.Background(), &File{Name: "a.csv", Size: 1, Content: strings.NewReader("a")}, "web", tracker)
	assert.ErrorIs(t, err, ErrAuthExpired)
	assert.Equal(t, 1, invalidated)
	assert.Equal(t, progress.StageError, tracker.Current().Stage)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,text\n"), 0644))

	f, err := OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "feedback.csv", f.Name)
	assert.Equal(t, int64(8), f.Size)

	_, err = OpenFile(t.TempDir())
	assert.Error(t, err)
	_, err = OpenFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func writeData(w http.ResponseWriter, code int, data any) {
	payload, _ := json.Marshal(data)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(domain.Envelope{Data: payload})
}

func writeError(w http.ResponseWriter, code int, apiErr domain.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(domain.Envelope{Error: &apiErr})
}
