package model

import (
	"runtime"
	"time"
)

// Platform is an OS and architecture pair using Go's GOOS/GOARCH names.
type Platform struct {
	OS   string `yaml:"os" json:"os"`
	Arch string `yaml:"arch" json:"arch"`
}

// HostPlatform returns the platform this process runs on.
func HostPlatform() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

// ArchiveFormat is the packaging of a release artifact.
type ArchiveFormat string

const (
	// ArchiveNone is a bare executable
	ArchiveNone ArchiveFormat = ""
	// ArchiveTarGz is a gzip compressed tarball
	ArchiveTarGz ArchiveFormat = "tgz"
)

// releaseAssets maps platforms to the published cloudflared asset names.
var releaseAssets = map[Platform]string{
	{OS: "linux", Arch: "amd64"}:   "cloudflared-linux-amd64",
	{OS: "linux", Arch: "386"}:     "cloudflared-linux-386",
	{OS: "linux", Arch: "arm"}:     "cloudflared-linux-arm",
	{OS: "linux", Arch: "arm64"}:   "cloudflared-linux-arm64",
	{OS: "darwin", Arch: "amd64"}:  "cloudflared-darwin-amd64.tgz",
	{OS: "darwin", Arch: "arm64"}:  "cloudflared-darwin-arm64.tgz",
	{OS: "windows", Arch: "amd64"}: "cloudflared-windows-amd64.exe",
	{OS: "windows", Arch: "386"}:   "cloudflared-windows-386.exe",
}

// ReleaseAsset returns the artifact name and packaging for p.
func (p Platform) ReleaseAsset() (string, ArchiveFormat, error) {
	name, ok := releaseAssets[p]
	if !ok {
		return "", ArchiveNone, &PlatformError{Platform: p}
	}
	if p.OS == "darwin" {
		return name, ArchiveTarGz, nil
	}
	return name, ArchiveNone, nil
}

// BinaryName is the installed executable name on p.
func (p Platform) BinaryName() string {
	if p.OS == "windows" {
		return "cloudflared.exe"
	}
	return "cloudflared"
}

// BinarySource records how a descriptor was resolved.
type BinarySource string

const (
	BinarySourceOverride BinarySource = "override"
	BinarySourceCache    BinarySource = "cache"
	BinarySourceDownload BinarySource = "download"
)

// BinaryDescriptor identifies a usable cloudflared executable.
type BinaryDescriptor struct {
	Platform Platform
	Path     string
	// Version is the release tag requested at install time
	Version string
	// Digest is the hex BLAKE3 of the installed executable
	Digest string
	Source BinarySource
}

// BinaryManifest is persisted next to a cached binary and used for the
// integrity check on reuse.
type BinaryManifest struct {
	Version     string    `yaml:"version"`
	Platform    Platform  `yaml:"platform"`
	Asset       string    `yaml:"asset"`
	URL         string    `yaml:"url"`
	BLAKE3      string    `yaml:"blake3"`
	SHA256      string    `yaml:"sha256"`
	Size        int64     `yaml:"size"`
	InstalledAt time.Time `yaml:"installed_at"`
}
