package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacelap/server/pkg/types"
)

func act(id int64, start time.Time, extended *bool) *types.Activity {
	return &types.Activity{ID: id, AthleteID: 1, StartDate: start, ExtendedInfo: extended}
}

func boolPtr(b bool) *bool { return &b }

var base = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func TestFindDifferencesClassification(t *testing.T) {
	stored := []*types.Activity{
		act(1, base, boolPtr(true)),             // unchanged
		act(2, base.AddDate(0, 0, 1), boolPtr(false)), // partial, still remote
		act(3, base.AddDate(0, 0, 2), nil),      // legacy, still remote
		act(4, base.AddDate(0, 0, 3), boolPtr(true)),  // gone remotely
	}
	remote := []*types.Activity{
		act(1, base, boolPtr(false)),
		act(2, base.AddDate(0, 0, 1), boolPtr(false)),
		act(3, base.AddDate(0, 0, 2), boolPtr(false)),
		act(5, base.AddDate(0, 0, 4), boolPtr(false)), // new
	}

	diff := FindDifferences(stored, remote)

	require.Len(t, diff.Create, 1)
	assert.Equal(t, int64(5), diff.Create[0].ID)

	// Only the explicit partial is upgraded; the legacy nil record is not.
	require.Len(t, diff.Upgrade, 1)
	assert.Equal(t, int64(2), diff.Upgrade[0].ID)

	require.Len(t, diff.Delete, 1)
	assert.Equal(t, int64(4), diff.Delete[0])
}

func TestFindDifferencesDeletionStaysInsideRemoteRange(t *testing.T) {
	stored := []*types.Activity{
		act(1, base.AddDate(0, 0, -5), boolPtr(true)), // before first remote
		act(2, base.AddDate(0, 0, 1), boolPtr(true)),  // inside, missing remotely
		act(3, base.AddDate(0, 0, 9), boolPtr(true)),  // after last remote
	}
	remote := []*types.Activity{
		act(10, base, boolPtr(false)),
		act(11, base.AddDate(0, 0, 2), boolPtr(false)),
	}

	diff := FindDifferences(stored, remote)
	assert.Equal(t, []int64{2}, diff.Delete)
}

func TestFindDifferencesEmptyRemoteDeletesNothing(t *testing.T) {
	stored := []*types.Activity{
		act(1, base, boolPtr(true)),
		act(2, base.AddDate(0, 0, 1), boolPtr(false)),
	}

	diff := FindDifferences(stored, nil)
	assert.Empty(t, diff.Create)
	assert.Empty(t, diff.Upgrade)
	assert.Empty(t, diff.Delete)
}

func TestFindDifferencesIsIdempotentWhenInSync(t *testing.T) {
	stored := []*types.Activity{
		act(1, base, boolPtr(true)),
		act(2, base.AddDate(0, 0, 1), boolPtr(true)),
	}
	remote := []*types.Activity{
		act(1, base, boolPtr(false)),
		act(2, base.AddDate(0, 0, 1), boolPtr(false)),
	}

	diff := FindDifferences(stored, remote)
	assert.Empty(t, diff.Create)
	assert.Empty(t, diff.Upgrade)
	assert.Empty(t, diff.Delete)
}
