package vfs

import (
	"context"
	"io"

	"vfm/internal/vfserr"
)

// Capabilities describes provider abilities.
type Capabilities struct {
	FastList bool // listing is cheap enough to skip caching heuristics
	Watch    bool // backend can report external changes
	Write    bool // backend accepts WriteFile
}

// Provider is the capability contract every backend implements.
type Provider interface {
	CanHandle(p Path) bool
	Capabilities() Capabilities
	ListEntries(ctx context.Context, p Path) ([]Entry, error)
	ReadFile(ctx context.Context, p Path) (io.ReadCloser, error)
	WriteFile(ctx context.Context, p Path, data io.Reader) error
	Metadata(ctx context.Context, p Path) (Entry, error)
}

// VirtualFileSystem dispatches operations to the first provider claiming a
// path. It holds no cache and performs no retries; both are layered above.
type VirtualFileSystem struct {
	providers []Provider
}

// New builds a dispatcher over the given providers, checked in order. The
// catch-all local provider must come last.
func New(providers ...Provider) *VirtualFileSystem {
	return &VirtualFileSystem{providers: providers}
}

// Providers returns the dispatch table in match order.
func (v *VirtualFileSystem) Providers() []Provider {
	return v.providers
}

func (v *VirtualFileSystem) providerFor(op string, p Path) (Provider, error) {
	for _, provider := range v.providers {
		if provider.CanHandle(p) {
			return provider, nil
		}
	}
	return nil, vfserr.Unsupported(op, p.String())
}

// ListEntries lists a directory via the matching provider.
func (v *VirtualFileSystem) ListEntries(ctx context.Context, p Path) ([]Entry, error) {
	provider, err := v.providerFor("list_entries", p)
	if err != nil {
		return nil, err
	}
	return provider.ListEntries(ctx, p)
}

// ReadFile opens a file for streamed reading via the matching provider.
func (v *VirtualFileSystem) ReadFile(ctx context.Context, p Path) (io.ReadCloser, error) {
	provider, err := v.providerFor("read_file", p)
	if err != nil {
		return nil, err
	}
	return provider.ReadFile(ctx, p)
}

// WriteFile writes a file via the matching provider.
func (v *VirtualFileSystem) WriteFile(ctx context.Context, p Path, data io.Reader) error {
	provider, err := v.providerFor("write_file", p)
	if err != nil {
		return err
	}
	return provider.WriteFile(ctx, p, data)
}

// Metadata stats a path via the matching provider.
func (v *VirtualFileSystem) Metadata(ctx context.Context, p Path) (Entry, error) {
	provider, err := v.providerFor("metadata", p)
	if err != nil {
		return Entry{}, err
	}
	return provider.Metadata(ctx, p)
}
