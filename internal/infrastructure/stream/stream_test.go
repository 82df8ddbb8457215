package stream

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestTailKeepsMostRecent(t *testing.T) {
	tail := NewTail(3)
	if got := tail.Lines(); len(got) != 0 {
		t.Fatalf("empty tail returned %v", got)
	}
	tail.Add("a")
	tail.Add("b")
	if diff := cmp.Diff([]string{"a", "b"}, tail.Lines()); diff != "" {
		t.Errorf("partial tail (-want +got):\n%s", diff)
	}
	for _, line := range []string{"c", "d", "e"} {
		tail.Add(line)
	}
	if diff := cmp.Diff([]string{"c", "d", "e"}, tail.Lines()); diff != "" {
		t.Errorf("wrapped tail (-want +got):\n%s", diff)
	}
	tail.Add("f")
	if diff := cmp.Diff([]string{"d", "e", "f"}, tail.Lines()); diff != "" {
		t.Errorf("tail after wrap (-want +got):\n%s", diff)
	}
}

func TestScanLinesSkipsBlankAndCloses(t *testing.T) {
	lines := ScanLines(strings.NewReader("first\r\n\n  \nsecond\nthird"), nil)
	var got []string
	for line := range lines {
		got = append(got, line)
	}
	if diff := cmp.Diff([]string{"first", "second", "third"}, got); diff != "" {
		t.Errorf("lines (-want +got):\n%s", diff)
	}
}

func TestScanLinesDropsAfterStop(t *testing.T) {
	r, w := io.Pipe()
	stop := make(chan struct{})
	lines := ScanLines(r, stop)
	close(stop)

	written := make(chan struct{})
	go func() {
		defer close(written)
		for i := 0; i < 100; i++ {
			if _, err := io.WriteString(w, "line\n"); err != nil {
				return
			}
		}
		w.Close()
	}()

	select {
	case <-written:
	case <-time.After(5 * time.Second):
		t.Fatal("writer blocked although nobody reads after stop")
	}
	for range lines {
	}
}

func TestScanLinesTruncatesOverlongLine(t *testing.T) {
	r, w := io.Pipe()
	lines := ScanLines(r, nil)

	long := strings.Repeat("x", maxLineSize+10000)
	writeErr := make(chan error, 1)
	go func() {
		_, err := io.WriteString(w, "before\n"+long+"\nafter\n")
		w.Close()
		writeErr <- err
	}()

	var got []string
	for line := range lines {
		got = append(got, line)
	}
	if err := <-writeErr; err != nil {
		t.Fatalf("writer failed: %v", err)
	}
	want := []string{"before", long[:maxLineSize], "after"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lines (-want +got):\n%s", diff)
	}
}
