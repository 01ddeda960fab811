package validation

import (
	"context"
	"errors"
	"fmt"

	"tradestream/internal/storage"
)

// Decision is the outcome of a version-ordering check.
type Decision struct {
	Accept bool
	Reason string // set when rejected
}

// VersionResolver decides acceptance of a candidate version relative to
// the persisted latest version for its trade. Pure decision over a single
// read; serialization of concurrent same-trade candidates is the
// orchestrator's responsibility.
type VersionResolver struct {
	projections storage.TradeProjectionStore
}

// NewVersionResolver creates a version resolver over the projection store.
func NewVersionResolver(projections storage.TradeProjectionStore) *VersionResolver {
	return &VersionResolver{projections: projections}
}

// Resolve reads the latest accepted version for tradeID and decides.
//
// No prior version bootstraps the identity. A lower candidate is rejected
// with no override path. An equal candidate is accepted as a benign
// replacement of the same version; the projection write is idempotent so
// this never duplicates. A higher candidate is accepted.
func (r *VersionResolver) Resolve(ctx context.Context, tradeID string, candidateVersion int) (Decision, error) {
	latest, err := r.projections.LatestVersion(ctx, tradeID)
	if errors.Is(err, storage.ErrNotFound) {
		return Decision{Accept: true}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("read latest version for %s: %w", tradeID, err)
	}

	if candidateVersion < latest {
		return Decision{Reason: ReasonLowerVersion(candidateVersion, latest)}, nil
	}
	return Decision{Accept: true}, nil
}
