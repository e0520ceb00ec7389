package reconcile

import "github.com/pacelap/server/pkg/types"

// Diff is the classified outcome of comparing stored activities against the
// remote listing for the same window.
type Diff struct {
	// Create holds remote activities with no stored counterpart.
	Create []*types.Activity
	// Upgrade holds remote activities whose stored record was built from the
	// list endpoint only and should be refetched in full.
	Upgrade []*types.Activity
	// Delete holds IDs of stored activities the remote side no longer has.
	Delete []int64
}

// FindDifferences classifies remote against stored.
//
// Deletion is bounded by the start dates of the first and last remote
// activity: outside that range the remote listing proves nothing about
// absence, so nothing is deleted there. An empty remote listing deletes
// nothing. Stored records with a nil extended-info flag predate the flag
// and are never upgraded.
func FindDifferences(stored, remote []*types.Activity) Diff {
	storedByID := make(map[int64]*types.Activity, len(stored))
	for _, a := range stored {
		storedByID[a.ID] = a
	}
	remoteIDs := make(map[int64]bool, len(remote))
	for _, a := range remote {
		remoteIDs[a.ID] = true
	}

	var diff Diff
	for _, a := range remote {
		old, ok := storedByID[a.ID]
		if !ok {
			diff.Create = append(diff.Create, a)
			continue
		}
		if old.ExtendedInfo != nil && !*old.ExtendedInfo {
			diff.Upgrade = append(diff.Upgrade, a)
		}
	}

	if len(remote) == 0 {
		return diff
	}
	first, last := remote[0].StartDate, remote[0].StartDate
	for _, a := range remote[1:] {
		if a.StartDate.Before(first) {
			first = a.StartDate
		}
		if a.StartDate.After(last) {
			last = a.StartDate
		}
	}
	for _, a := range stored {
		if remoteIDs[a.ID] {
			continue
		}
		if a.StartDate.Before(first) || a.StartDate.After(last) {
			continue
		}
		diff.Delete = append(diff.Delete, a.ID)
	}
	return diff
}
