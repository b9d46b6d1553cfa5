package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/autolot/applications/uploader"
)

// exitCode is a process termination code.
type exitCode int

const (
	exitSuccess exitCode = 0
	exitFailure exitCode = 1
)

const defaultEndpoint = "http://localhost:8002/api/upload"

// noProgress is below every decile so the first report is always logged.
const noProgress = -10

func main() {
	os.Exit(int(gracefulMain()))
}

func gracefulMain() exitCode {
	var logger log.Logger
	{
		logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	}

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	endpoint := fs.String("endpoint", defaultEndpoint, "upload endpoint URL")
	timeout := fs.Duration("timeout", 0, "request timeout, 0 means no timeout")
	verbose := fs.Bool("verbose", false, "log upload progress")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: %s [flags] image...\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Log("msg", "parsing cli flags failed", "err", err)
		return exitFailure
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitFailure
	}

	if !*verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	picked := make([]uploader.PendingFile, 0, fs.NArg())
	for _, path := range fs.Args() {
		content, err := os.ReadFile(path)
		if err != nil {
			level.Error(logger).Log("msg", "can't read file", "path", path, "err", err)
			return exitFailure
		}
		picked = append(picked, uploader.NewPendingFile(filepath.Base(path), content))
	}

	accepted, rejected := uploader.DefaultPolicy().Classify(picked)
	for _, r := range rejected {
		for _, e := range r.Errors {
			level.Warn(logger).Log("msg", "file rejected",
				"file", r.File.Name,
				"size", humanize.IBytes(uint64(r.File.Size)),
				"code", e.Code,
				"reason", e.Message,
			)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var received []string
	lastLogged := noProgress
	u := uploader.New(uploader.Config{
		Endpoint: *endpoint,
		OnFileURLsReceived: func(urls []string) {
			received = urls
		},
		Notifier: uploader.NewLogNotifier(logger),
		Progress: uploader.ProgressFunc(func(p int) {
			if crossesDecile(lastLogged, p) {
				lastLogged = p
				level.Debug(logger).Log("msg", "uploading", "progress", fmt.Sprintf("%d%%", p))
			}
		}),
		HTTPClient: &http.Client{Timeout: *timeout},
		Logger:     logger,
	})

	start := time.Now()
	u.Drop(ctx, accepted, rejected)

	if received == nil {
		return exitFailure
	}

	level.Info(logger).Log("msg", "done", "files", len(received), "took", time.Since(start).Round(time.Millisecond))
	for _, url := range received {
		fmt.Println(url)
	}

	return exitSuccess
}

func crossesDecile(last, p int) bool {
	return p/10 != last/10
}
