package distribution

import (
	"context"
	"fmt"

	"github.com/sage-x-project/meshnet/store"
)

// PrecheckSequence is the cheap stage-5 gap check (spec §4.5 stage 5):
// called before permission evaluation so a gapped arrival is queued without
// spending a timeline walk on it. It never mutates the store; the final
// accept/evict decision, including equivocation handling, is Evaluate's job
// once permission has been confirmed.
func PrecheckSequence(ctx context.Context, s store.Store, metaID, memberID int64, sequence uint64) (delay bool, missingLow, missingHigh uint64, err error) {
	last, _, found, err := s.LastSequence(ctx, metaID, memberID)
	if err != nil {
		return false, 0, 0, fmt.Errorf("distribution: precheck sequence: %w", err)
	}
	if !found {
		if sequence <= 1 {
			return false, 0, 0, nil
		}
		return true, 1, sequence - 1, nil
	}
	if sequence <= last+1 {
		return false, 0, 0, nil
	}
	return true, last + 1, sequence - 1, nil
}
