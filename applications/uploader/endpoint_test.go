package uploader_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donmikel/autolot/applications/server/adapters/inmemory"
	"github.com/donmikel/autolot/applications/server/domain"
	httphandlers "github.com/donmikel/autolot/applications/server/handlers/http"
	"github.com/donmikel/autolot/applications/server/services"
	"github.com/donmikel/autolot/applications/uploader"
)

func TestUploadToEndpoint(t *testing.T) {
	ctx := context.Background()
	logger := log.NewNopLogger()

	manager := inmemory.NewStorageManager(logger)
	for i := 0; i < 7; i++ {
		url := fmt.Sprintf("storage_%d", i)
		require.NoError(t, manager.AddStorage(ctx, url, inmemory.NewStorage(url, 0, logger)))
	}

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc := services.NewService(inmemory.NewFileMetaStorage(), manager, services.WithPublicURL(srv.URL))
	mux.Handle("/", httphandlers.NewRouter(svc, domain.UploadPolicy{
		MaxFiles:     7,
		MaxFileSize:  10 * 1024 * 1024,
		AllowedTypes: []string{"image/png", "image/jpeg", "image/webp"},
	}, logger))

	front := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{1}, 40*1024)...)
	back := append([]byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), bytes.Repeat([]byte{2}, 512)...)

	var urls []string
	u := uploader.New(uploader.Config{
		Endpoint:           srv.URL + "/api/upload",
		OnFileURLsReceived: func(got []string) { urls = got },
	})

	accepted, rejected := uploader.DefaultPolicy().Classify([]uploader.PendingFile{
		uploader.NewPendingFile("front.png", front),
		uploader.NewPendingFile("back.jpg", back),
	})
	u.Drop(ctx, accepted, rejected)

	require.Len(t, urls, 2)
	for i, want := range [][]byte{front, back} {
		resp, err := http.Get(urls[i])
		require.NoError(t, err)
		got, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	state := u.State()
	assert.Empty(t, state.Files)
	assert.Equal(t, 100, state.Progress)
	assert.False(t, state.Uploading)
}
