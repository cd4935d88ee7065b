package planner

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/voici5986/vaultsync/internal/vault"
)

// DefaultClockSkewTolerance is the default fuzz applied to mtime
// comparisons, accounting for filesystems and remotes rounding
// timestamps differently (second vs millisecond, server clock vs client
// clock).
const DefaultClockSkewTolerance = 2 * time.Second

// Config parameterizes one planning pass.
type Config struct {
	// ClockSkewTolerance bounds how far apart two mtimes may be and
	// still be considered equal. Zero means DefaultClockSkewTolerance.
	ClockSkewTolerance time.Duration
	// Now is the reference time used to detect "just created, looks
	// like an autocreated placeholder" entries during first-meet
	// reconciliation. Callers should pass a fixed clock reading so
	// planning stays deterministic given identical inputs.
	Now time.Time
}

func (c Config) tolerance() time.Duration {
	if c.ClockSkewTolerance <= 0 {
		return DefaultClockSkewTolerance
	}
	return c.ClockSkewTolerance
}

// Plan computes the three-way diff over local, remote and snapshot and
// returns a deterministic, ordered SyncPlan. It performs no I/O.
func Plan(local map[string]vault.LocalEntry, remote map[string]vault.RemoteEntry, snap *vault.Snapshot, cfg Config) *SyncPlan {
	keys := mapset.NewThreadUnsafeSet[string]()
	for k := range local {
		keys.Add(k)
	}
	for k := range remote {
		keys.Add(k)
	}
	for k := range snap.Records {
		keys.Add(k)
	}

	plan := newPlan()
	tolerance := cfg.tolerance()

	for _, key := range keys.ToSlice() {
		p := vault.MustPath(key)
		l, hasLocal := local[key]
		r, hasRemote := remote[key]
		s, hasSnapshot := snap.Get(p)

		item := classify(p, l, hasLocal, r, hasRemote, s, hasSnapshot, tolerance, cfg.Now)
		if item.Action == Skip && item.Refresh == nil && !hasLocal && !hasRemote {
			// Nothing present on either side: a stale snapshot row being
			// pruned. Omit entirely rather than emitting a no-op item.
			continue
		}
		plan.add(item)
	}

	plan.sortItems()
	return plan
}

func classify(p vault.Path, l vault.LocalEntry, hasLocal bool, r vault.RemoteEntry, hasRemote bool, s vault.FileRecord, hasSnapshot bool, tolerance time.Duration, now time.Time) SyncItem {
	switch {
	case !hasLocal && !hasRemote:
		return SyncItem{Path: p, Action: Skip, Reason: "absent on both sides"}

	case hasLocal && !hasRemote && !hasSnapshot:
		var le = l
		return SyncItem{Path: p, Action: Upload, Local: &le, Reason: "new local file"}

	case !hasLocal && hasRemote && !hasSnapshot:
		var re = r
		return SyncItem{Path: p, Action: Download, Remote: &re, Reason: "new remote file"}

	case hasLocal && hasRemote && !hasSnapshot:
		return firstMeet(p, l, r, tolerance, now)

	case hasLocal && !hasRemote && hasSnapshot:
		le := l
		if localChanged(l, s, tolerance) {
			return SyncItem{Path: p, Action: Upload, Local: &le, Reason: "local changed since remote removal"}
		}
		return SyncItem{Path: p, Action: DeleteLocal, Local: &le, Reason: "remote removed, local unchanged"}

	case !hasLocal && hasRemote && hasSnapshot:
		re := r
		if remoteChanged(r, s, tolerance) {
			return SyncItem{Path: p, Action: Download, Remote: &re, Reason: "remote changed since local removal"}
		}
		return SyncItem{Path: p, Action: DeleteRemote, Remote: &re, Reason: "local removed, remote unchanged"}

	case hasLocal && hasRemote && hasSnapshot:
		return knownPair(p, l, r, s, tolerance)

	default: // snapshot only, both absent
		return SyncItem{Path: p, Action: Skip, Reason: "prune stale snapshot row"}
	}
}

func localChanged(l vault.LocalEntry, s vault.FileRecord, tolerance time.Duration) bool {
	if absDuration(l.Mtime.Sub(s.LocalMtime)) > tolerance {
		return true
	}
	return l.Size != s.Size
}

func remoteChanged(r vault.RemoteEntry, s vault.FileRecord, tolerance time.Duration) bool {
	if r.ETag != "" && s.ETag != "" {
		return r.ETag != s.ETag
	}
	return absDuration(r.Mtime.Sub(s.RemoteMtime)) > tolerance
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// contentsEqual reports whether local and remote fingerprints agree. Both
// sides must carry a ContentHash (the remote side only does on servers
// that expose a checksum PROPFIND property, e.g. Nextcloud/ownCloud's
// oc:checksums). known is false when equality could not be established
// either way — an ETag, unlike a content hash, is only ever useful for
// detecting change against a previously-recorded FileRecord, not for
// comparing two live entries that have never shared a snapshot row.
func contentsEqual(l vault.LocalEntry, r vault.RemoteEntry) (equal bool, known bool) {
	if l.ContentHash == "" || r.ContentHash == "" {
		return false, false
	}
	return l.ContentHash == r.ContentHash, true
}

// isPlaceholder reports whether entry e looks like a just-autocreated,
// empty placeholder: zero bytes and an mtime close to now.
func isPlaceholder(size int64, mtime time.Time, now time.Time, tolerance time.Duration) bool {
	if size != 0 {
		return false
	}
	if now.IsZero() {
		return false
	}
	return absDuration(now.Sub(mtime)) <= tolerance
}

func firstMeet(p vault.Path, l vault.LocalEntry, r vault.RemoteEntry, tolerance time.Duration, now time.Time) SyncItem {
	le, re := l, r

	if equal, known := contentsEqual(l, r); known && equal {
		refresh := &vault.FileRecord{LocalMtime: l.Mtime, RemoteMtime: r.Mtime, ETag: r.ETag, Size: l.Size}
		return SyncItem{Path: p, Action: Skip, Local: &le, Remote: &re, Reason: "first-meet, contents equal", Refresh: refresh}
	}

	localPlaceholder := isPlaceholder(l.Size, l.Mtime, now, tolerance)
	remotePlaceholder := isPlaceholder(r.Size, r.Mtime, now, tolerance)

	switch {
	case localPlaceholder && !remotePlaceholder:
		return SyncItem{Path: p, Action: Download, Remote: &re, Reason: "first-meet, one side placeholder"}
	case remotePlaceholder && !localPlaceholder:
		return SyncItem{Path: p, Action: Upload, Local: &le, Reason: "first-meet, one side placeholder"}
	default:
		return SyncItem{Path: p, Action: Conflict, Local: &le, Remote: &re, Reason: "first-meet, differing contents"}
	}
}

func knownPair(p vault.Path, l vault.LocalEntry, r vault.RemoteEntry, s vault.FileRecord, tolerance time.Duration) SyncItem {
	le, re := l, r
	lc, rc := localChanged(l, s, tolerance), remoteChanged(r, s, tolerance)

	switch {
	case !lc && !rc:
		return SyncItem{Path: p, Action: Skip, Local: &le, Remote: &re, Reason: "already in sync"}
	case lc && !rc:
		return SyncItem{Path: p, Action: Upload, Local: &le, Reason: "local changed"}
	case !lc && rc:
		return SyncItem{Path: p, Action: Download, Remote: &re, Reason: "remote changed"}
	default: // both changed
		if equal, known := contentsEqual(l, r); known && equal {
			refresh := &vault.FileRecord{LocalMtime: l.Mtime, RemoteMtime: r.Mtime, ETag: r.ETag, Size: l.Size}
			return SyncItem{Path: p, Action: Skip, Local: &le, Remote: &re, Reason: "both changed, contents equal", Refresh: refresh}
		}
		return SyncItem{Path: p, Action: Conflict, Local: &le, Remote: &re, Reason: "both changed, differing contents"}
	}
}
