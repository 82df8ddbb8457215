package stream

import (
	"bufio"
	"io"
	"strings"
)

// maxLineSize caps a single output line; cloudflared log lines are short.
const maxLineSize = 256 * 1024

// ScanLines reads r line by line in a new goroutine and sends each
// non-blank line on the returned channel, which is closed at EOF or on a
// read error. Lines longer than maxLineSize are cut to that size and the
// rest is skipped, so the writer is read until it closes its end. Once
// stop is closed, remaining lines are read and dropped so the writer never
// blocks; a nil stop never drops.
func ScanLines(r io.Reader, stop <-chan struct{}) <-chan string {
	out := make(chan string, 16)
	go func() {
		defer close(out)
		reader := bufio.NewReaderSize(r, 4096)
		var buf []byte
		emit := func() {
			line := strings.TrimRight(string(buf), "\r")
			buf = buf[:0]
			if strings.TrimSpace(line) == "" {
				return
			}
			select {
			case out <- line:
			case <-stop:
			}
		}
		for {
			chunk, isPrefix, err := reader.ReadLine()
			if err != nil {
				emit()
				return
			}
			if room := maxLineSize - len(buf); room > 0 {
				if len(chunk) > room {
					chunk = chunk[:room]
				}
				buf = append(buf, chunk...)
			}
			if !isPrefix {
				emit()
			}
		}
	}()
	return out
}
