package port

import (
	"context"

	"github.com/flaredantic/flaredantic-go/internal/domain/model"
)

// BinaryProvisioner resolves a usable cloudflared executable, downloading
// it into the cache directory when needed.
type BinaryProvisioner interface {
	// Ensure returns a descriptor for config. Repeated calls with the same
	// config reuse the first result without network access.
	Ensure(ctx context.Context, config model.TunnelConfig) (*model.BinaryDescriptor, error)
}
