package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jaki95/feedback-importer/internal/domain"
	"github.com/jaki95/feedback-importer/internal/progress"
)

const (
	// DefaultUploadBaseTimeout is the allowance every upload gets.
	DefaultUploadBaseTimeout = 60 * time.Second
	// DefaultUploadPerMiBTimeout is added for every started MiB of the file.
	DefaultUploadPerMiBTimeout = 10 * time.Second

	mib = 1 << 20
)

// File is an upload payload.
type File struct {
	Name    string
	Size    int64
	Content io.Reader

	closer io.Closer
}

// OpenFile opens a local file for upload. The caller must Close it.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &File{Name: filepath.Base(path), Size: info.Size(), Content: f, closer: f}, nil
}

// Close releases the underlying file, if any.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

// UploadTimeout returns base + ceil(size in MiB) * perMiB. It never decreases
// as size grows.
func UploadTimeout(size int64, base, perMiB time.Duration) time.Duration {
	if size < 0 {
		size = 0
	}
	started := (size + mib - 1) / mib
	return base + time.Duration(started)*perMiB
}

// UploadTimeout returns the timeout the client applies to a file of size bytes.
func (c *Client) UploadTimeout(size int64) time.Duration {
	return UploadTimeout(size, c.uploadBase, c.uploadPerMiB)
}

// Upload streams file to POST /upload as multipart form data, reporting
// byte-level progress to tracker (which may be nil). The request is bounded
// by UploadTimeout(file.Size); cancelling ctx aborts it as well.
func (c *Client) Upload(ctx context.Context, file *File, source string, tracker *progress.Tracker) (*domain.UploadResult, error) {
	const op = "upload"
	if tracker == nil {
		tracker = progress.NewTracker()
	}

	timeout := c.UploadTimeout(file.Size)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, file, source, tracker))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+importPrefix+"/upload", pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	slog.Info("Uploading file", "name", file.Name, "size", file.Size, "source", source, "timeout", timeout)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = transportError(ctx, op, err)
		tracker.SetError(err)
		return nil, err
	}
	defer resp.Body.Close()

	var out domain.UploadResult
	if err := c.decode(ctx, op, resp, &out); err != nil {
		tracker.SetError(err)
		return nil, err
	}
	tracker.Complete("Upload complete")
	return &out, nil
}

func writeUploadForm(mw *multipart.Writer, file *File, source string, tracker *progress.Tracker) error {
	if err := mw.WriteField("source", source); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return err
	}
	tracker.Update(0, file.Size, "Uploading "+file.Name)
	counter := &countingReader{r: file.Content, total: file.Size, tracker: tracker, name: file.Name}
	if _, err := io.Copy(part, counter); err != nil {
		return err
	}
	return mw.Close()
}

// countingReader reports bytes read to a progress tracker.
type countingReader struct {
	r       io.Reader
	sent    int64
	total   int64
	name    string
	tracker *progress.Tracker
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.sent += int64(n)
		c.tracker.Update(c.sent, c.total, "Uploading "+c.name)
	}
	return n, err
}
