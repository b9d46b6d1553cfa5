package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donmikel/autolot/applications/server/adapters/inmemory"
	"github.com/donmikel/autolot/applications/server/domain"
	"github.com/donmikel/autolot/applications/server/services"
)

var (
	pngData  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{1}, 64)...)
	jpegData = append([]byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), bytes.Repeat([]byte{2}, 64)...)
)

var testPolicy = domain.UploadPolicy{
	MaxFiles:     7,
	MaxFileSize:  10 * 1024 * 1024,
	AllowedTypes: []string{"image/png", "image/jpeg", "image/webp"},
}

type part struct {
	field string
	name  string
	data  []byte
}

func newTestServer(t *testing.T, policy domain.UploadPolicy) *httptest.Server {
	t.Helper()

	ctx := context.Background()
	logger := log.NewNopLogger()
	manager := inmemory.NewStorageManager(logger)
	for i := 0; i < 7; i++ {
		storageURL := fmt.Sprintf("storage_%d", i)
		require.NoError(t, manager.AddStorage(ctx, storageURL, inmemory.NewStorage(storageURL, 0, logger)))
	}

	svc := services.NewService(inmemory.NewFileMetaStorage(), manager, services.WithPublicURL("http://cars.test"))
	srv := httptest.NewServer(NewRouter(svc, policy, logger))
	t.Cleanup(srv.Close)

	return srv
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, p := range parts {
		fw, err := w.CreateFormFile(p.field, p.name)
		require.NoError(t, err)
		_, err = fw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return body, w.FormDataContentType()
}

func postUpload(t *testing.T, srv *httptest.Server, parts ...part) *http.Response {
	t.Helper()

	body, contentType := multipartBody(t, parts...)
	resp, err := http.Post(srv.URL+"/api/upload", contentType, body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func TestUploadHandler(t *testing.T) {
	srv := newTestServer(t, testPolicy)

	resp := postUpload(t, srv,
		part{field: "files", name: "front.png", data: pngData},
		part{field: "files", name: "side.jpg", data: jpegData},
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got uploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got.Files, 2)

	assert.Equal(t, "image/png", got.Files[0].ContentType)
	assert.Equal(t, int64(len(pngData)), got.Files[0].Size)
	assert.Regexp(t, `^http://cars\.test/file/[0-9a-f-]{36}\.png$`, got.Files[0].URL)
	assert.Equal(t, "image/jpeg", got.Files[1].ContentType)
	assert.Regexp(t, `\.jpg$`, got.Files[1].URL)

	u, err := url.Parse(got.Files[1].URL)
	require.NoError(t, err)

	fileResp, err := http.Get(srv.URL + u.Path)
	require.NoError(t, err)
	defer fileResp.Body.Close()

	assert.Equal(t, http.StatusOK, fileResp.StatusCode)
	assert.Equal(t, "image/jpeg", fileResp.Header.Get("Content-Type"))
	data, err := io.ReadAll(fileResp.Body)
	require.NoError(t, err)
	assert.Equal(t, jpegData, data)
}

func TestUploadHandlerRejects(t *testing.T) {
	tooMany := make([]part, 0, 8)
	for i := 0; i < 8; i++ {
		tooMany = append(tooMany, part{field: "files", name: fmt.Sprintf("%d.png", i), data: pngData})
	}

	small := testPolicy
	small.MaxFileSize = 16

	tests := []struct {
		name   string
		policy domain.UploadPolicy
		parts  []part
	}{
		{name: "too many files", policy: testPolicy, parts: tooMany},
		{name: "unsupported type", policy: testPolicy, parts: []part{{field: "files", name: "notes.png", data: []byte("plain text, not an image")}}},
		{name: "file too large", policy: small, parts: []part{{field: "files", name: "big.png", data: pngData}}},
		{name: "no files", policy: testPolicy, parts: []part{{field: "other", name: "a.png", data: pngData}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.policy)

			resp := postUpload(t, srv, tt.parts...)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var got errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.NotEmpty(t, got.Error)
		})
	}
}

func TestUploadHandlerNotMultipart(t *testing.T) {
	srv := newTestServer(t, testPolicy)

	resp, err := http.Post(srv.URL+"/api/upload", "application/json", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPutAndGetFileHandler(t *testing.T) {
	srv := newTestServer(t, testPolicy)

	body, contentType := multipartBody(t, part{field: "file", name: "dashboard.png", data: pngData})
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/file", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/file/dashboard.png")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, pngData, data)
}

func TestGetMissingFile(t *testing.T) {
	srv := newTestServer(t, testPolicy)

	resp, err := http.Get(srv.URL + "/file/missing.png")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServiceEndpoints(t *testing.T) {
	srv := newTestServer(t, testPolicy)

	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
