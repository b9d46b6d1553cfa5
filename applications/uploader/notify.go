package uploader

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Toast is a user visible notification.
type Toast struct {
	Title       string
	Description string
	Variant     Variant
}

var (
	rejectedToast = Toast{
		Title:       "File type not supported",
		Description: "Please upload a valid image file",
		Variant:     VariantDestructive,
	}
	failedToast = Toast{
		Title:       "Upload failed",
		Description: "Please try again.",
		Variant:     VariantDestructive,
	}
	busyToast = Toast{
		Title:       "Upload in progress",
		Description: "Wait for the current upload to finish.",
		Variant:     VariantDefault,
	}
)

// Notifier shows toasts. Notify must not block.
type Notifier interface {
	Notify(t Toast)
}

type NotifierFunc func(t Toast)

func (f NotifierFunc) Notify(t Toast) { f(t) }

// LogNotifier renders toasts as log records.
type LogNotifier struct {
	logger log.Logger
}

func NewLogNotifier(logger log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(t Toast) {
	l := level.Info(n.logger)
	if t.Variant == VariantDestructive {
		l = level.Warn(n.logger)
	}
	l.Log("msg", t.Title, "description", t.Description, "variant", string(t.Variant))
}
