package http

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/autolot/applications/server"
	"github.com/donmikel/autolot/applications/server/domain"
	"github.com/donmikel/autolot/applications/server/metrics"
)

const (
	uploadFormField   = "files"
	multipartOverhead = 1 << 20
	maxMemory         = 32 << 20
)

type uploadResponse struct {
	Files []domain.UploadedFile `json:"files"`
}

// UploadHandler accepts listing images as repeated "files" form fields and
// answers with the URL of every stored file.
func UploadHandler(svc server.UploadService, policy domain.UploadPolicy, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := int64(policy.MaxFiles)*policy.MaxFileSize + multipartOverhead
		r.Body = http.MaxBytesReader(w, r.Body, limit)

		if err := r.ParseMultipartForm(maxMemory); err != nil {
			level.Warn(logger).Log("msg", "can't parse upload form", "err", err)
			metrics.RecordUpload(metrics.StatusRejected, 0, 0)
			writeErr(w, err, requestErrStatus(err))
			return
		}
		defer r.MultipartForm.RemoveAll()

		headers := r.MultipartForm.File[uploadFormField]

		files, err := openUploads(headers, policy)
		defer closeAll(files)
		if err != nil {
			level.Warn(logger).Log("msg", "upload rejected", "files", len(headers), "err", err)
			metrics.RecordUpload(metrics.StatusRejected, 0, 0)
			writeErr(w, err, errStatus(err))
			return
		}

		uploaded, err := svc.UploadFiles(r.Context(), files)
		if err != nil {
			level.Error(logger).Log("msg", "UploadFiles error", "err", err)
			metrics.RecordUpload(metrics.StatusFailed, 0, 0)
			writeErr(w, err, errStatus(err))
			return
		}

		var total int64
		for _, f := range uploaded {
			total += f.Size
		}
		metrics.RecordUpload(metrics.StatusSuccess, len(uploaded), total)

		level.Info(logger).Log("msg", "files uploaded",
			"count", len(uploaded),
			"size", humanize.IBytes(uint64(total)),
		)

		writeJSON(w, uploadResponse{Files: uploaded}, http.StatusOK)
	}
}

// openUploads checks the batch against the policy and opens every part.
// The returned files must be closed by the caller even on error.
func openUploads(headers []*multipart.FileHeader, policy domain.UploadPolicy) ([]domain.File, error) {
	if len(headers) == 0 {
		return nil, domain.ErrNoFiles
	}
	if len(headers) > policy.MaxFiles {
		return nil, fmt.Errorf("%d files, at most %d allowed: %w", len(headers), policy.MaxFiles, domain.ErrTooManyFiles)
	}

	files := make([]domain.File, 0, len(headers))
	for _, h := range headers {
		if h.Size > policy.MaxFileSize {
			return files, fmt.Errorf("%s is %s, at most %s allowed: %w",
				h.Filename, humanize.IBytes(uint64(h.Size)), humanize.IBytes(uint64(policy.MaxFileSize)), domain.ErrFileTooLarge)
		}

		f, err := h.Open()
		if err != nil {
			return files, fmt.Errorf("can't open %s: %w", h.Filename, err)
		}
		files = append(files, domain.File{
			Meta: domain.FileMeta{Name: h.Filename, ContentLength: h.Size},
			Body: f,
		})

		kind, err := mimetype.DetectReader(f)
		if err != nil {
			return files, fmt.Errorf("can't detect type of %s: %w", h.Filename, err)
		}
		if !policy.Allows(kind.String()) {
			return files, fmt.Errorf("%s is %s: %w", h.Filename, kind.String(), domain.ErrUnsupportedType)
		}
		if _, err = f.Seek(0, io.SeekStart); err != nil {
			return files, fmt.Errorf("can't rewind %s: %w", h.Filename, err)
		}
		files[len(files)-1].Meta.ContentType = kind.String()
	}

	return files, nil
}

func closeAll(files []domain.File) {
	for _, f := range files {
		_ = f.Body.Close()
	}
}
