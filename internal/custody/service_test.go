package custody

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"swapgraph/internal/apierror"
	"swapgraph/internal/store"
)

func fixedNow() time.Time { return time.Unix(1_700_000_000, 0).UTC() }

func sampleHoldings() []store.Holding {
	return []store.Holding{
		{HoldingID: "h3", Platform: "csgo", AssetID: "a3", OwnerType: "user", OwnerID: "u1", VaultID: "v1", DepositID: "d3"},
		{HoldingID: "h1", Platform: "csgo", AssetID: "a1", OwnerType: "user", OwnerID: "u1", VaultID: "v1", DepositID: "d1"},
		{HoldingID: "h2", Platform: "csgo", AssetID: "a2", OwnerType: "user", OwnerID: "u2", VaultID: "v1", DepositID: "d2"},
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.New(nil)
	require.NoError(t, err)
	return New(st, fixedNow)
}

func TestPublishSnapshotSortsHoldingsAndComputesRoot(t *testing.T) {
	svc := newTestService(t)
	snapshot, err := svc.PublishSnapshot("snap_1", sampleHoldings())
	require.NoError(t, err)
	require.Equal(t, 3, snapshot.LeafCount)
	require.NotEmpty(t, snapshot.RootHash)
	require.True(t, snapshot.Holdings[0].Key() < snapshot.Holdings[1].Key())
	require.True(t, snapshot.Holdings[1].Key() < snapshot.Holdings[2].Key())
}

func TestPublishSnapshotRejectsDuplicateID(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.PublishSnapshot("snap_1", sampleHoldings())
	require.NoError(t, err)
	_, err = svc.PublishSnapshot("snap_1", sampleHoldings())
	require.Error(t, err)
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	require.Equal(t, apierror.ConstraintViolation, apiErr.Code)
}

func TestInclusionProofRoundTrips(t *testing.T) {
	svc := newTestService(t)
	snapshot, err := svc.PublishSnapshot("snap_1", sampleHoldings())
	require.NoError(t, err)

	for _, h := range snapshot.Holdings {
		proof, root, err := svc.GetInclusionProof("snap_1", h.HoldingID)
		require.NoError(t, err)
		require.Equal(t, snapshot.RootHash, root)
		require.NoError(t, svc.VerifyInclusionProof("snap_1", proof))
	}
}

func TestInclusionProofDetectsTamperedLeaf(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.PublishSnapshot("snap_1", sampleHoldings())
	require.NoError(t, err)

	proof, _, err := svc.GetInclusionProof("snap_1", "h1")
	require.NoError(t, err)
	proof.LeafHash = "deadbeef"
	err = svc.VerifyInclusionProof("snap_1", proof)
	require.Error(t, err)
}

func TestListSnapshotsPaginates(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.PublishSnapshot("snap_1", sampleHoldings())
	require.NoError(t, err)
	_, err = svc.PublishSnapshot("snap_2", sampleHoldings())
	require.NoError(t, err)

	page, next, err := svc.ListSnapshots("", 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "snap_1", next)

	page2, next2, err := svc.ListSnapshots(next, 1)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	require.Empty(t, next2)
}

func TestListSnapshotsUnknownCursor(t *testing.T) {
	svc := newTestService(t)
	_, _, err := svc.ListSnapshots("does-not-exist", 10)
	require.Error(t, err)
}
