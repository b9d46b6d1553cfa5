package uploader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

// PendingFile is a picked file that has not been confirmed uploaded yet.
type PendingFile struct {
	Name        string
	Size        int64
	ContentType string
	Content     []byte
}

// NewPendingFile sniffs the content type of content.
func NewPendingFile(name string, content []byte) PendingFile {
	return PendingFile{
		Name:        name,
		Size:        int64(len(content)),
		ContentType: mimetype.Detect(content).String(),
		Content:     content,
	}
}

// Rejection error codes.
const (
	CodeFileInvalidType = "file-invalid-type"
	CodeFileTooLarge    = "file-too-large"
	CodeTooManyFiles    = "too-many-files"
)

type RejectionError struct {
	Code    string
	Message string
}

type Rejection struct {
	File   PendingFile
	Errors []RejectionError
}

// Policy is what the file picker is allowed to hand over for upload.
type Policy struct {
	// Accept maps MIME types to the file extensions accepted for them.
	Accept   map[string][]string
	MaxFiles int
	MaxSize  int64
}

// DefaultPolicy accepts up to 7 png, jpeg or webp images of 10 MiB each.
func DefaultPolicy() Policy {
	return Policy{
		Accept: map[string][]string{
			"image/png":  {".png"},
			"image/jpeg": {".jpg", ".jpeg"},
			"image/webp": {".webp"},
		},
		MaxFiles: 7,
		MaxSize:  10 * 1024 * 1024,
	}
}

func (p Policy) accepts(f PendingFile) bool {
	if _, ok := p.Accept[f.ContentType]; ok {
		return true
	}
	ext := strings.ToLower(filepath.Ext(f.Name))
	for _, exts := range p.Accept {
		for _, e := range exts {
			if e == ext {
				return true
			}
		}
	}
	return false
}

// Classify splits picked files into accepted ones and rejections. Picking more
// than MaxFiles rejects the whole batch.
func (p Policy) Classify(files []PendingFile) ([]PendingFile, []Rejection) {
	var (
		accepted []PendingFile
		rejected []Rejection
	)

	tooMany := p.MaxFiles > 0 && len(files) > p.MaxFiles

	for _, f := range files {
		var errs []RejectionError
		if !p.accepts(f) {
			errs = append(errs, RejectionError{
				Code:    CodeFileInvalidType,
				Message: fmt.Sprintf("file type %s is not accepted", f.ContentType),
			})
		}
		if p.MaxSize > 0 && f.Size > p.MaxSize {
			errs = append(errs, RejectionError{
				Code:    CodeFileTooLarge,
				Message: fmt.Sprintf("file is larger than %s", humanize.IBytes(uint64(p.MaxSize))),
			})
		}
		if tooMany {
			errs = append(errs, RejectionError{
				Code:    CodeTooManyFiles,
				Message: fmt.Sprintf("at most %d files can be uploaded", p.MaxFiles),
			})
		}

		if len(errs) > 0 {
			rejected = append(rejected, Rejection{File: f, Errors: errs})
			continue
		}
		accepted = append(accepted, f)
	}

	return accepted, rejected
}
