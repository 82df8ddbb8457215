// Package testutil provides shared test helpers.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// QuickTunnelScript behaves like `cloudflared tunnel --url ...`: it logs a
// few lines, announces a quick tunnel URL and stays up.
const QuickTunnelScript = `echo "INF Thank you for trying Cloudflare Tunnel." >&2
echo "INF Requesting new quick Tunnel on trycloudflare.com..." >&2
echo "INF Your quick tunnel has been created! Visit it: https://fake-quick-tunnel.trycloudflare.com" >&2
echo "INF Registered tunnel connection connIndex=0"
exec sleep 30
`

// CrashScript exits before printing a URL.
const CrashScript = `echo "ERR failed to request quick Tunnel: 429 Too Many Requests" >&2
exit 3
`

// SilentScript never prints anything.
const SilentScript = `exec sleep 30
`

// StubbornScript announces a URL and ignores SIGTERM.
const StubbornScript = `trap '' TERM
echo "https://stubborn.trycloudflare.com"
while :; do sleep 1; done
`

// FakeDaemon writes body as an executable /bin/sh script named cloudflared
// in a fresh temp dir and returns its path. Skips on Windows.
func FakeDaemon(t testing.TB, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake daemon scripts need /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "cloudflared")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("writing fake daemon: %v", err)
	}
	return path
}
