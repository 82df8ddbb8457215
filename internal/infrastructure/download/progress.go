package download

import (
	"io"

	"github.com/dustin/go-humanize"

	"github.com/flaredantic/flaredantic-go/internal/domain/port"
)

// unknownSizeStep is the logging interval when Content-Length is missing.
const unknownSizeStep = 5 << 20

// progressReader logs download progress every 10% of total, or every
// unknownSizeStep bytes when total is unknown.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	next   int64
	logger port.Logger
}

func newProgressReader(r io.Reader, total int64, logger port.Logger) *progressReader {
	pr := &progressReader{r: r, total: total, logger: logger}
	pr.next = pr.step()
	return pr
}

func (pr *progressReader) step() int64 {
	if pr.total > 0 {
		if step := pr.total / 10; step > 0 {
			return step
		}
		return pr.total
	}
	return unknownSizeStep
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	pr.read += int64(n)
	if pr.read >= pr.next {
		pr.report()
		for pr.next <= pr.read {
			pr.next += pr.step()
		}
	}
	return n, err
}

func (pr *progressReader) report() {
	if pr.total > 0 {
		percent := pr.read * 100 / pr.total
		pr.logger.Info("Downloading cloudflared: %s / %s (%d%%)",
			humanize.Bytes(uint64(pr.read)), humanize.Bytes(uint64(pr.total)), percent)
		return
	}
	pr.logger.Info("Downloading cloudflared: %s", humanize.Bytes(uint64(pr.read)))
}
