package domain

import (
	"errors"
	"io"
)

var (
	ErrFileNotFound    = errors.New("file not found")
	ErrNotEnoughSpace  = errors.New("not enough free space")
	ErrTooManyFiles    = errors.New("too many files")
	ErrFileTooLarge    = errors.New("file is too large")
	ErrUnsupportedType = errors.New("file type not supported")
	ErrNoFiles         = errors.New("no files in request")
)

type FilePart struct {
	StorageURL    string
	Path          string
	ContentLength int64
}

type FileMeta struct {
	Name          string
	ContentType   string
	Parts         []FilePart
	ContentLength int64
}

type File struct {
	Meta FileMeta
	Body io.ReadCloser
}

// UploadedFile describes one stored listing image as returned to the client.
type UploadedFile struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// UploadPolicy limits what the upload endpoint accepts in one request.
type UploadPolicy struct {
	MaxFiles     int
	MaxFileSize  int64
	AllowedTypes []string
}

func (p UploadPolicy) Allows(contentType string) bool {
	for _, t := range p.AllowedTypes {
		if t == contentType {
			return true
		}
	}
	return false
}
