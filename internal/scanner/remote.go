package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/voici5986/vaultsync/internal/vault"
	"github.com/voici5986/vaultsync/internal/webdav"
)

// Remote lists the current remote set via a PROPFIND depth=infinity at
// remoteBase, rewriting paths relative to that base.
type Remote struct {
	transport  webdav.Transport
	remoteBase string
}

// NewRemote returns a Remote scanner against transport, rooted at
// remoteBase ("" or a path relative to the transport's configured base
// URL).
func NewRemote(transport webdav.Transport, remoteBase string) *Remote {
	return &Remote{transport: transport, remoteBase: remoteBase}
}

// Scan performs the PROPFIND and returns every file, keyed by its
// canonical path relative to remoteBase. Directories are not recorded as
// entries; they are implicit in their children's paths.
func (r *Remote) Scan(ctx context.Context) (map[string]vault.RemoteEntry, error) {
	base := r.remoteBase
	if base == "" {
		base = "."
	}

	resources, err := r.transport.PropfindRecursive(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("scanner: propfind %q: %w", base, err)
	}

	entries := make(map[string]vault.RemoteEntry, len(resources))
	for _, res := range resources {
		if res.Dir {
			continue
		}
		p, err := vault.NewPath(res.Path)
		if err != nil {
			continue
		}
		mtime := res.Mtime
		if mtime.IsZero() {
			mtime = time.Unix(0, 0).UTC()
		}
		entries[p.String()] = vault.RemoteEntry{
			Path:        p,
			Mtime:       mtime.Truncate(time.Second),
			Size:        res.Size,
			ETag:        res.ETag,
			ContentHash: res.ContentHash,
		}
	}
	return entries, nil
}
