// Package uploader sends listing images picked by a shop owner to the upload
// endpoint in a single multipart request and hands the resulting URLs back.
//
// Failures never reach the caller as errors: they are shown through the
// Notifier and the pending files stay queued so the user can retry.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	formField       = "files"
	maxResponseSize = 1 << 20
)

var (
	errNoFiles      = errors.New(`response has no "files" list`)
	errURLCount     = errors.New("response file count does not match request")
	errMissingURL   = errors.New(`response file has no "url"`)
	quoteEscaper    = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
	defaultNotifier = NotifierFunc(func(Toast) {})
)

type Config struct {
	// Endpoint receives the multipart POST.
	Endpoint string
	// OnFileURLsReceived gets the URLs of a successful upload in request order.
	OnFileURLsReceived func(urls []string)

	Notifier   Notifier
	Progress   ProgressObserver
	HTTPClient *http.Client
	Logger     log.Logger
}

// State is a snapshot of the uploader for rendering.
type State struct {
	Files     []PendingFile
	Uploading bool
	Progress  int
}

type Uploader struct {
	endpoint string
	onURLs   func([]string)
	notifier Notifier
	progress ProgressObserver
	client   *http.Client
	logger   log.Logger

	mu        sync.Mutex
	files     []PendingFile
	uploading bool
	percent   int
	// session identifies the upload in flight; late progress of an
	// earlier request carries a stale value and is dropped.
	session uint64
}

func New(cfg Config) *Uploader {
	u := &Uploader{
		endpoint: cfg.Endpoint,
		onURLs:   cfg.OnFileURLsReceived,
		notifier: cfg.Notifier,
		progress: cfg.Progress,
		client:   cfg.HTTPClient,
		logger:   cfg.Logger,
	}
	if u.onURLs == nil {
		u.onURLs = func([]string) {}
	}
	if u.notifier == nil {
		u.notifier = defaultNotifier
	}
	if u.client == nil {
		u.client = http.DefaultClient
	}
	if u.logger == nil {
		u.logger = log.NewNopLogger()
	}

	return u
}

// Drop takes one batch from the file picker. A batch with any rejection is
// dropped as a whole, otherwise it is queued and uploaded right away.
func (u *Uploader) Drop(ctx context.Context, accepted []PendingFile, rejected []Rejection) {
	if len(rejected) > 0 {
		level.Warn(u.logger).Log("msg", "files rejected", "rejected", len(rejected), "accepted", len(accepted))
		u.notifier.Notify(rejectedToast)
		return
	}
	if len(accepted) == 0 {
		return
	}

	u.mu.Lock()
	u.files = append(u.files, accepted...)
	u.mu.Unlock()

	u.Upload(ctx, accepted)
}

// Upload sends files in one request. Only one upload runs at a time, a call
// made while another is in flight is refused with a notification.
func (u *Uploader) Upload(ctx context.Context, files []PendingFile) {
	if len(files) == 0 {
		return
	}
	if !u.begin() {
		u.notifier.Notify(busyToast)
		return
	}
	defer u.finish()

	urls, err := u.send(ctx, files)
	if err != nil {
		level.Warn(u.logger).Log("msg", "upload failed", "endpoint", u.endpoint, "files", len(files), "err", err)
		u.notifier.Notify(failedToast)
		return
	}

	level.Info(u.logger).Log("msg", "upload finished", "files", len(urls))

	u.onURLs(urls)

	u.mu.Lock()
	u.files = nil
	u.mu.Unlock()
}

func (u *Uploader) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()

	return State{
		Files:     append([]PendingFile(nil), u.files...),
		Uploading: u.uploading,
		Progress:  u.percent,
	}
}

func (u *Uploader) begin() bool {
	u.mu.Lock()
	if u.uploading {
		u.mu.Unlock()
		return false
	}
	u.uploading = true
	u.percent = 0
	u.session++
	u.mu.Unlock()

	u.publish(0)

	return true
}

func (u *Uploader) finish() {
	u.mu.Lock()
	u.uploading = false
	u.mu.Unlock()
}

// setProgress ignores values below the current one and any report that does
// not belong to the upload in flight.
func (u *Uploader) setProgress(session uint64, p int) {
	u.mu.Lock()
	if !u.uploading || session != u.session || p <= u.percent {
		u.mu.Unlock()
		return
	}
	u.percent = p
	u.mu.Unlock()

	u.publish(p)
}

func (u *Uploader) publish(p int) {
	if u.progress != nil {
		u.progress.OnProgress(p)
	}
}

func (u *Uploader) send(ctx context.Context, files []PendingFile) ([]string, error) {
	u.mu.Lock()
	session := u.session
	u.mu.Unlock()

	body, contentType, err := encode(files)
	if err != nil {
		return nil, fmt.Errorf("can't encode files: %w", err)
	}

	total := int64(body.Len())
	level.Debug(u.logger).Log("msg", "sending files",
		"endpoint", u.endpoint,
		"files", len(files),
		"size", humanize.IBytes(uint64(total)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint,
		&progressReader{r: body, total: total, report: func(p int) { u.setProgress(session, p) }})
	if err != nil {
		return nil, fmt.Errorf("can't create request: %w", err)
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", contentType)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("can't send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, fmt.Errorf("upload endpoint answered %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("can't read response: %w", err)
	}

	urls, err := decodeURLs(data)
	if err != nil {
		return nil, err
	}
	if len(urls) != len(files) {
		return nil, fmt.Errorf("%w: sent %d, got %d", errURLCount, len(files), len(urls))
	}

	return urls, nil
}

func encode(files []PendingFile) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="%s"; filename="%s"`, formField, quoteEscaper.Replace(f.Name)))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err = part.Write(f.Content); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return body, w.FormDataContentType(), nil
}

// decodeURLs accepts only {"files": [{"url": "..."}, ...]}.
func decodeURLs(data []byte) ([]string, error) {
	var resp struct {
		Files json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("can't decode response: %w", err)
	}
	if len(resp.Files) == 0 || string(resp.Files) == "null" {
		return nil, errNoFiles
	}

	var files []struct {
		URL *string `json:"url"`
	}
	if err := json.Unmarshal(resp.Files, &files); err != nil {
		return nil, fmt.Errorf("%w: %v", errNoFiles, err)
	}

	urls := make([]string, 0, len(files))
	for i, f := range files {
		if f.URL == nil {
			return nil, fmt.Errorf("%w: index %d", errMissingURL, i)
		}
		urls = append(urls, *f.URL)
	}

	return urls, nil
}
