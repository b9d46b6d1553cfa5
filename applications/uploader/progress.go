package uploader

import (
	"io"
	"math"
)

// ProgressObserver receives the upload progress in percent.
type ProgressObserver interface {
	OnProgress(percent int)
}

type ProgressFunc func(percent int)

func (f ProgressFunc) OnProgress(percent int) { f(percent) }

// progressReader reports how much of the request body the transport consumed.
type progressReader struct {
	r      io.Reader
	sent   int64
	total  int64
	report func(percent int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.report(percent(p.sent, p.total))
	}
	return n, err
}

func percent(sent, total int64) int {
	if total <= 0 {
		return 0
	}
	v := int(math.Round(float64(sent) * 100 / float64(total)))
	if v > 100 {
		return 100
	}
	return v
}
