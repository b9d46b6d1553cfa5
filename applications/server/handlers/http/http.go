package http

import (
	"net/http"

	"github.com/go-kit/log"

	"github.com/donmikel/autolot/applications/server/config"
	"github.com/donmikel/autolot/applications/server/domain"
)

func NewHTTPServer(conf config.Server, svc Service, logger log.Logger) *http.Server {
	policy := domain.UploadPolicy{
		MaxFiles:     conf.Upload.MaxFiles,
		MaxFileSize:  conf.Upload.MaxFileSize,
		AllowedTypes: conf.Upload.AllowedTypes,
	}

	return &http.Server{
		Addr:    conf.API.HTTPAddr,
		Handler: NewRouter(svc, policy, logger),
	}
}
