package vault

import "time"

// Entry describes one filesystem-like object as observed by a scan, on
// either the local or the remote side. LocalEntry and RemoteEntry both
// implement it; the planner itself takes the two concrete types, as
// separate path-keyed maps.
type Entry interface {
	EntryPath() Path
	IsDir() bool
	ModTime() time.Time
}

// LocalEntry is one result of a local filesystem walk. ContentHash is a
// cheap content fingerprint (SHA-256 of the file body) the scanner fills
// in for regular files; it lets the planner tell a true content conflict
// apart from two sides that happen to disagree on mtime but agree on
// bytes.
type LocalEntry struct {
	Path        Path
	Dir         bool
	Mtime       time.Time
	Size        int64
	ContentHash string
}

func (e LocalEntry) EntryPath() Path    { return e.Path }
func (e LocalEntry) IsDir() bool        { return e.Dir }
func (e LocalEntry) ModTime() time.Time { return e.Mtime }

// RemoteEntry is one result of a remote PROPFIND listing. ETag is opaque
// and compared only for equality, per the transport contract. ContentHash
// is populated only when the server exposes a checksum property the
// scanner recognizes (Nextcloud/ownCloud's oc:checksums SHA256 entry); it
// is empty on servers that don't, in which case content equality can't be
// established and the planner treats the pair as an unresolved conflict
// rather than guessing from ETag or mtime.
type RemoteEntry struct {
	Path        Path
	Dir         bool
	Mtime       time.Time
	Size        int64
	ETag        string
	ContentHash string
}

func (e RemoteEntry) EntryPath() Path    { return e.Path }
func (e RemoteEntry) IsDir() bool        { return e.Dir }
func (e RemoteEntry) ModTime() time.Time { return e.Mtime }

// FileRecord is the last known-synced state of one path, as recorded in
// the Snapshot after a successful sync of that path. It is the "S" side
// of the (L, R, S) reconciliation triple.
type FileRecord struct {
	LocalMtime  time.Time `json:"local_mtime"`
	RemoteMtime time.Time `json:"remote_mtime"`
	ETag        string    `json:"etag,omitempty"`
	Size        int64     `json:"size,omitempty"`
	Dir         bool      `json:"dir,omitempty"`
}
