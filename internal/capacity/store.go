package capacity

import (
	"context"
	"time"
)

// Member is an active service-group member with their current open load.
type Member struct {
	ID              string `json:"id"`
	OpenAssignments int    `json:"open_assignments"`
}

// RecordStore supplies the backing-store reads the tracker needs. The
// reference in-memory implementation lives in internal/store; a shared
// external store satisfies the same contract for scale-out deployments.
type RecordStore interface {
	// OpenAssignments returns the count of requests currently assigned to
	// the group in a non-terminal state.
	OpenAssignments(ctx context.Context, groupID string) (int, error)

	// CompletedDurations returns creation-to-completion durations for
	// requests the group successfully completed at or after since.
	CompletedDurations(ctx context.Context, groupID string, since time.Time) ([]time.Duration, error)

	// ActiveMembers returns the group's active roster with each member's
	// current open assignment count.
	ActiveMembers(ctx context.Context, groupID string) ([]Member, error)
}
