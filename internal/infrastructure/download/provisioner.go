// Package download provisions the cloudflared executable: it reuses an
// explicit or cached binary when possible and otherwise installs the
// platform release artifact into the cache directory.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/flaredantic/flaredantic-go/internal/domain/model"
	"github.com/flaredantic/flaredantic-go/internal/domain/port"
)

// DefaultReleaseURL is the base of the cloudflared GitHub releases.
const DefaultReleaseURL = "https://github.com/cloudflare/cloudflared/releases"

// DefaultHTTPTimeout bounds a whole download.
const DefaultHTTPTimeout = 5 * time.Minute

// Cache holds resolved descriptors in memory. Provisioners sharing a
// Cache reuse each other's resolutions.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*model.BinaryDescriptor
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*model.BinaryDescriptor)}
}

// Provisioner implements port.BinaryProvisioner. Resolved descriptors are
// cached in memory for the life of its Cache.
type Provisioner struct {
	client     *http.Client
	logger     port.Logger
	platform   model.Platform
	releaseURL string
	cache      *Cache
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithHTTPClient replaces the download client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provisioner) { p.client = client }
}

// WithPlatform overrides host platform detection.
func WithPlatform(platform model.Platform) Option {
	return func(p *Provisioner) { p.platform = platform }
}

// WithCache shares cache with other provisioners.
func WithCache(cache *Cache) Option {
	return func(p *Provisioner) { p.cache = cache }
}

// WithReleaseURL replaces DefaultReleaseURL for configs that do not set
// their own download URL.
func WithReleaseURL(base string) Option {
	return func(p *Provisioner) { p.releaseURL = base }
}

// NewProvisioner creates a Provisioner for the host platform.
func NewProvisioner(logger port.Logger, opts ...Option) *Provisioner {
	p := &Provisioner{
		client:     &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     logger,
		platform:   model.HostPlatform(),
		releaseURL: DefaultReleaseURL,
		cache:      NewCache(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ensure returns a usable cloudflared for config. An executable override
// path wins without touching the network; otherwise the cached install is
// verified and reused, or a fresh copy is downloaded.
func (p *Provisioner) Ensure(ctx context.Context, config model.TunnelConfig) (*model.BinaryDescriptor, error) {
	config = config.WithDefaults()

	if config.BinaryPath != "" {
		err := checkExecutable(config.BinaryPath)
		if err == nil {
			p.logger.Debug("Using cloudflared at %s", config.BinaryPath)
			return &model.BinaryDescriptor{
				Platform: p.platform,
				Path:     config.BinaryPath,
				Version:  config.CloudflaredVersion,
				Source:   model.BinarySourceOverride,
			}, nil
		}
		p.logger.Warn("Ignoring cloudflared override %s: %v", config.BinaryPath, err)
	}

	p.cache.mu.Lock()
	defer p.cache.mu.Unlock()

	key := p.cacheKey(config)
	if d, ok := p.cache.entries[key]; ok {
		if _, err := os.Stat(d.Path); err == nil {
			copied := *d
			return &copied, nil
		}
		delete(p.cache.entries, key)
	}

	d, err := p.resolve(ctx, config, false)
	if err != nil {
		return nil, err
	}
	p.cache.entries[key] = d
	copied := *d
	return &copied, nil
}

// Reinstall downloads cloudflared again even when a valid copy is cached.
func (p *Provisioner) Reinstall(ctx context.Context, config model.TunnelConfig) (*model.BinaryDescriptor, error) {
	config = config.WithDefaults()

	p.cache.mu.Lock()
	defer p.cache.mu.Unlock()

	key := p.cacheKey(config)
	delete(p.cache.entries, key)
	d, err := p.resolve(ctx, config, true)
	if err != nil {
		return nil, err
	}
	p.cache.entries[key] = d
	copied := *d
	return &copied, nil
}

// Invalidate forgets every resolved descriptor. The next Ensure verifies
// the on-disk cache again.
func (p *Provisioner) Invalidate() {
	p.cache.mu.Lock()
	defer p.cache.mu.Unlock()
	p.cache.entries = make(map[string]*model.BinaryDescriptor)
}

// Platform returns the platform binaries are provisioned for.
func (p *Provisioner) Platform() model.Platform {
	return p.platform
}

func (p *Provisioner) cacheKey(config model.TunnelConfig) string {
	return strings.Join([]string{
		config.BinDir,
		config.CloudflaredVersion,
		config.Checksum,
		config.DownloadURL,
		p.releaseURL,
		p.platform.String(),
	}, "|")
}

func (p *Provisioner) resolve(ctx context.Context, config model.TunnelConfig, force bool) (*model.BinaryDescriptor, error) {
	asset, format, err := p.platform.ReleaseAsset()
	if err != nil {
		return nil, err
	}

	binPath := filepath.Join(config.BinDir, p.platform.BinaryName())
	manifestPath := manifestPathFor(binPath)

	if !force {
		manifest, err := p.verifyCached(binPath, manifestPath, config)
		if err == nil {
			p.logger.Debug("Reusing cached cloudflared %s at %s", manifest.Version, binPath)
			return &model.BinaryDescriptor{
				Platform: p.platform,
				Path:     binPath,
				Version:  manifest.Version,
				Digest:   manifest.BLAKE3,
				Source:   model.BinarySourceCache,
			}, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			p.logger.Info("Cached cloudflared rejected: %v", err)
		}
	}

	base := config.DownloadURL
	if base == "" {
		base = p.releaseURL
	}
	url := ReleaseURL(base, config.CloudflaredVersion, asset)

	manifest, err := p.install(ctx, url, asset, format, binPath, config)
	if err != nil {
		return nil, err
	}
	if err := writeManifest(manifestPath, manifest); err != nil {
		return nil, &model.InstallError{Path: manifestPath, Err: fmt.Errorf("writing manifest: %w", err)}
	}

	p.logger.Info("Installed cloudflared %s to %s", manifest.Version, binPath)
	return &model.BinaryDescriptor{
		Platform: p.platform,
		Path:     binPath,
		Version:  manifest.Version,
		Digest:   manifest.BLAKE3,
		Source:   model.BinarySourceDownload,
	}, nil
}

// verifyCached checks the manifest against config and the binary against
// the manifest digest.
func (p *Provisioner) verifyCached(binPath, manifestPath string, config model.TunnelConfig) (*model.BinaryManifest, error) {
	if err := checkExecutable(binPath); err != nil {
		return nil, err
	}
	manifest, err := readManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	if manifest.Platform != p.platform {
		return nil, fmt.Errorf("cached binary is for %s, need %s", manifest.Platform, p.platform)
	}
	if config.CloudflaredVersion != model.DefaultCloudflaredVersion && manifest.Version != config.CloudflaredVersion {
		return nil, fmt.Errorf("cached version %s, need %s", manifest.Version, config.CloudflaredVersion)
	}
	if config.Checksum != "" && manifest.SHA256 != config.Checksum {
		return nil, fmt.Errorf("cached artifact sha256 %s, need %s", manifest.SHA256, config.Checksum)
	}
	digest, err := digestFile(binPath)
	if err != nil {
		return nil, err
	}
	if digest != manifest.BLAKE3 {
		return nil, fmt.Errorf("cached binary digest %s does not match manifest %s", digest, manifest.BLAKE3)
	}
	return manifest, nil
}

// install downloads url into a temp file in the cache directory and
// renames it over binPath only after every check passed.
func (p *Provisioner) install(ctx context.Context, url, asset string, format model.ArchiveFormat, binPath string, config model.TunnelConfig) (manifest *model.BinaryManifest, err error) {
	p.logger.Info("Downloading cloudflared from %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &model.DownloadError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", model.UserAgent())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &model.DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		var cause error
		if s := strings.TrimSpace(string(snippet)); s != "" {
			cause = errors.New(s)
		}
		return nil, &model.DownloadError{URL: url, StatusCode: resp.StatusCode, Err: cause}
	}

	dir := filepath.Dir(binPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &model.InstallError{Path: binPath, Err: fmt.Errorf("creating cache directory: %w", err)}
	}
	tmp, err := os.CreateTemp(dir, ".cloudflared-*.tmp")
	if err != nil {
		return nil, &model.InstallError{Path: binPath, Err: fmt.Errorf("creating temp file: %w", err)}
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	artifactHash := sha256.New()
	body := io.TeeReader(newProgressReader(resp.Body, resp.ContentLength, p.logger), artifactHash)
	binaryHash := blake3.New()
	dst := io.MultiWriter(tmp, binaryHash)

	var size int64
	switch format {
	case model.ArchiveTarGz:
		size, err = extractTarGz(body, dst, "cloudflared")
		if err == nil {
			// Hash the rest of the artifact so the checksum covers all of it.
			_, err = io.Copy(io.Discard, body)
		}
	default:
		size, err = io.Copy(dst, body)
	}
	if err != nil {
		return nil, &model.DownloadError{URL: url, Err: err}
	}
	if size == 0 {
		return nil, &model.DownloadError{URL: url, Err: errors.New("artifact contains an empty binary")}
	}

	sum := hex.EncodeToString(artifactHash.Sum(nil))
	if config.Checksum != "" && sum != config.Checksum {
		return nil, &model.DownloadError{URL: url, Err: fmt.Errorf("sha256 mismatch: got %s, want %s", sum, config.Checksum)}
	}

	if err := tmp.Chmod(0o755); err != nil && runtime.GOOS != "windows" {
		return nil, &model.InstallError{Path: binPath, Err: fmt.Errorf("making executable: %w", err)}
	}
	if err = tmp.Sync(); err != nil {
		return nil, &model.InstallError{Path: binPath, Err: fmt.Errorf("syncing: %w", err)}
	}
	if err = tmp.Close(); err != nil {
		return nil, &model.InstallError{Path: binPath, Err: fmt.Errorf("closing: %w", err)}
	}
	if err = os.Rename(tmp.Name(), binPath); err != nil {
		return nil, &model.InstallError{Path: binPath, Err: err}
	}

	return &model.BinaryManifest{
		Version:     config.CloudflaredVersion,
		Platform:    p.platform,
		Asset:       asset,
		URL:         url,
		BLAKE3:      hex.EncodeToString(binaryHash.Sum(nil)),
		SHA256:      sum,
		Size:        size,
		InstalledAt: time.Now().UTC(),
	}, nil
}

// ReleaseURL builds the download URL of asset for version ("latest" or a tag).
func ReleaseURL(base, version, asset string) string {
	base = strings.TrimRight(base, "/")
	if version == "" || version == model.DefaultCloudflaredVersion {
		return base + "/latest/download/" + asset
	}
	return base + "/download/" + version + "/" + asset
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

var _ port.BinaryProvisioner = (*Provisioner)(nil)
