// Package planner implements the three-way diff: given the current local
// set, the current remote set and the last-synced snapshot, it computes
// an ordered, deterministic plan of actions for the executor to apply.
// The planner is pure and CPU-bound; it never touches the filesystem or
// the network.
package planner

import (
	"sort"

	"github.com/voici5986/vaultsync/internal/vault"
)

// Action is the decision the planner reaches for one path.
type Action int

const (
	Skip Action = iota
	Upload
	Download
	DeleteRemote
	DeleteLocal
	Conflict
)

func (a Action) String() string {
	switch a {
	case Skip:
		return "skip"
	case Upload:
		return "upload"
	case Download:
		return "download"
	case DeleteRemote:
		return "delete_remote"
	case DeleteLocal:
		return "delete_local"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// group orders actions within a plan: mutations first, then deletions,
// then conflicts, matching the executor's phase order.
func (a Action) group() int {
	switch a {
	case Upload, Download:
		return 0
	case DeleteRemote, DeleteLocal:
		return 1
	case Conflict:
		return 2
	default: // Skip
		return 3
	}
}

// SyncItem is one decision in a SyncPlan.
type SyncItem struct {
	Path   vault.Path
	Action Action
	Local  *vault.LocalEntry
	Remote *vault.RemoteEntry
	Reason string

	// Refresh, when non-nil, is a snapshot record the executor should
	// write for this path even though no transfer occurs (a Skip item
	// produced by a content-equality check that reseeds the snapshot).
	Refresh *vault.FileRecord
}

// SyncPlan is the ordered, deterministic output of Plan.
type SyncPlan struct {
	Items []SyncItem

	UploadCount   int
	DownloadCount int
	DeleteCount   int
	ConflictCount int
}

func newPlan() *SyncPlan {
	return &SyncPlan{}
}

func (p *SyncPlan) add(item SyncItem) {
	switch item.Action {
	case Upload, Download:
		if item.Action == Upload {
			p.UploadCount++
		} else {
			p.DownloadCount++
		}
	case DeleteRemote, DeleteLocal:
		p.DeleteCount++
	case Conflict:
		p.ConflictCount++
	}
	p.Items = append(p.Items, item)
}

// sortItems orders items by (action_group, path) for determinism.
func (p *SyncPlan) sortItems() {
	sort.SliceStable(p.Items, func(i, j int) bool {
		gi, gj := p.Items[i].Action.group(), p.Items[j].Action.group()
		if gi != gj {
			return gi < gj
		}
		return p.Items[i].Path.String() < p.Items[j].Path.String()
	})
}
