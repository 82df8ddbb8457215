package model

// Version is the library version. It is also sent as part of the
// User-Agent when fetching cloudflared releases.
const Version = "0.3.0"

// UserAgent returns the HTTP User-Agent used for release downloads.
func UserAgent() string {
	return "flaredantic-go/" + Version
}
