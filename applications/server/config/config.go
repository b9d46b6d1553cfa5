package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v2"
)

const (
	defaultHTTPAddr     = "0.0.0.0:8002"
	defaultMaxFiles     = 7
	defaultMaxFileSize  = 10 * 1024 * 1024 // 10 MiB
	defaultStorageCount = 7
	defaultFreeSpace    = 100 * 1024 * 1024 // 100 Mb
)

var defaultAllowedTypes = []string{"image/png", "image/jpeg", "image/webp"}

type Server struct {
	API     Api     `yaml:"api"`
	Upload  Upload  `yaml:"upload"`
	Storage Storage `yaml:"storage"`
}

type Api struct {
	HTTPAddr string `yaml:"http_addr"`
	// PublicURL prefixes the URLs returned by the upload endpoint.
	PublicURL string `yaml:"public_url"`
}

type Upload struct {
	MaxFiles     int      `yaml:"max_files"`
	MaxFileSize  int64    `yaml:"max_file_size"`
	AllowedTypes []string `yaml:"allowed_types"`
}

type Storage struct {
	Count     int   `yaml:"count"`
	FreeSpace int64 `yaml:"free_space"`
}

// Parse reads a YAML config and fills unset fields with defaults.
// An empty path yields the defaults.
func Parse(path string) (Server, error) {
	var cfg Server

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Server{}, fmt.Errorf("can't read config file: %w", err)
		}

		if err = yaml.UnmarshalStrict(data, &cfg); err != nil {
			return Server{}, fmt.Errorf("can't decode config file: %w", err)
		}
	}

	cfg.setDefaults()

	return cfg, nil
}

func (s *Server) setDefaults() {
	if s.API.HTTPAddr == "" {
		s.API.HTTPAddr = defaultHTTPAddr
	}
	if s.Upload.MaxFiles == 0 {
		s.Upload.MaxFiles = defaultMaxFiles
	}
	if s.Upload.MaxFileSize == 0 {
		s.Upload.MaxFileSize = defaultMaxFileSize
	}
	if len(s.Upload.AllowedTypes) == 0 {
		s.Upload.AllowedTypes = append([]string(nil), defaultAllowedTypes...)
	}
	if s.Storage.Count == 0 {
		s.Storage.Count = defaultStorageCount
	}
	if s.Storage.FreeSpace == 0 {
		s.Storage.FreeSpace = defaultFreeSpace
	}
}

func (s Server) Validate() error {
	if s.API.HTTPAddr == "" {
		return errors.New("api.http_addr must be set")
	}
	if s.API.PublicURL != "" {
		u, err := url.Parse(s.API.PublicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("api.public_url %q is not an absolute URL", s.API.PublicURL)
		}
	}
	if s.Upload.MaxFiles < 1 {
		return errors.New("upload.max_files must be positive")
	}
	if s.Upload.MaxFileSize < 1 {
		return errors.New("upload.max_file_size must be positive")
	}
	if s.Storage.Count < 1 {
		return errors.New("storage.count must be positive")
	}
	if s.Storage.FreeSpace < s.Upload.MaxFileSize {
		return errors.New("storage.free_space can't be less than upload.max_file_size")
	}

	return nil
}
