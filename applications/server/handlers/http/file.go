package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"

	"github.com/donmikel/autolot/applications/server"
	"github.com/donmikel/autolot/applications/server/domain"
	"github.com/donmikel/autolot/applications/server/metrics"
)

// Service is everything the router needs from the file layer.
type Service interface {
	server.FileService
	server.UploadService
}

func NewRouter(svc Service, policy domain.UploadPolicy, logger log.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(metrics.Middleware)
	r.HandleFunc("/api/upload", UploadHandler(svc, policy, logger)).Methods(http.MethodPost)
	r.HandleFunc("/file", PutFileHandler(svc, policy, logger)).Methods(http.MethodPut)
	r.HandleFunc("/file/{filename}", GetFileHandler(svc, logger)).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	return r
}

func PutFileHandler(svc server.FileService, policy domain.UploadPolicy, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, policy.MaxFileSize+multipartOverhead)

		file, header, err := r.FormFile("file")
		if err != nil {
			level.Error(logger).Log("msg", "FormFile error",
				"err", err,
			)
			writeErr(w, err, requestErrStatus(err))
			return
		}
		defer file.Close()

		if header.Filename == "" {
			writeErr(w, errors.New("empty filename"), http.StatusBadRequest)
			return
		}

		kind, err := mimetype.DetectReader(file)
		if err != nil {
			writeErr(w, fmt.Errorf("can't detect content type: %w", err), http.StatusBadRequest)
			return
		}
		if _, err = file.Seek(0, io.SeekStart); err != nil {
			writeErr(w, err, http.StatusInternalServerError)
			return
		}

		up := domain.File{
			Meta: domain.FileMeta{
				Name:          header.Filename,
				ContentType:   kind.String(),
				ContentLength: header.Size,
			},
			Body: file,
		}

		if err = svc.PutFile(r.Context(), up); err != nil {
			level.Error(logger).Log("msg", "PutFile error",
				"err", err,
			)
			writeErr(w, err, errStatus(err))
			return
		}

		w.WriteHeader(http.StatusCreated)
	}
}

func GetFileHandler(svc server.FileService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := mux.Vars(r)["filename"]
		if filename == "" {
			writeErr(w, errors.New("empty filename"), http.StatusBadRequest)
			return
		}

		file, err := svc.GetFile(r.Context(), filename)
		if err != nil {
			writeErr(w, err, errStatus(err))
			return
		}
		defer file.Body.Close()

		if file.Meta.ContentType != "" {
			w.Header().Set("Content-Type", file.Meta.ContentType)
		}
		w.Header().Set("Content-Length", strconv.FormatInt(file.Meta.ContentLength, 10))

		if _, err = io.Copy(w, file.Body); err != nil {
			level.Error(logger).Log("msg", "error body copy", "err", err)
			return
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoFiles),
		errors.Is(err, domain.ErrTooManyFiles),
		errors.Is(err, domain.ErrFileTooLarge),
		errors.Is(err, domain.ErrUnsupportedType):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotEnoughSpace):
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

// requestErrStatus maps errors returned while reading a multipart body.
func requestErrStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Println("can't write response ", err)
	}
}

func writeErr(w http.ResponseWriter, err error, status int) {
	writeJSON(w, errorResponse{Error: err.Error()}, status)
}
