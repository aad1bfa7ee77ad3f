package repository

import (
	"context"

	"mapvault-backend/internal/domains/maps/model"

	"github.com/google/uuid"
)

// MapRepository is the logical data-access contract for maps and their
// related entities. Domain errors (ErrMapNotFound, ErrMapNameTaken,
// ErrPendingLimit) are distinct from infrastructure failures, which wrap
// model.ErrStorage.
type MapRepository interface {
	// Insert stores a new map with status pending. Fails with ErrMapNameTaken
	// when the name collides with an existing non-deleted map.
	Insert(ctx context.Context, input model.MapInput) (*model.Map, error)

	// InsertPending is Insert guarded by the submission quota: the pending
	// count check and the insert run in one serialized unit so concurrent
	// creates by the same submitter cannot both pass the check. Fails with
	// ErrPendingLimit when the submitter already holds pendingLimit maps in
	// pending status.
	InsertPending(ctx context.Context, input model.MapInput, pendingLimit int) (*model.Map, error)

	// Update applies a partial merge. Fails with ErrMapNotFound when the map
	// does not exist or is deleted. Immutable fields are not representable in
	// the patch.
	Update(ctx context.Context, mapID uuid.UUID, patch model.MapPatch) (*model.Map, error)

	// GetAll lists non-deleted maps matching the filter. The returned count
	// is taken after filtering but before skip/take.
	GetAll(ctx context.Context, filter *model.MapFilter, skip, take int) ([]model.Map, int, error)

	// Get fetches a single non-deleted map, eager-loading the relations in
	// the expand set.
	Get(ctx context.Context, mapID uuid.UUID, expand model.Expand) (*model.Map, error)

	// UpdateCredits bulk-updates credit rows matching the criteria. The call
	// returns only after the update completed or failed.
	UpdateCredits(ctx context.Context, criteria model.CreditFilter, patch model.CreditPatch) error

	// CountPending reports how many maps the submitter holds in pending
	// status.
	CountPending(ctx context.Context, submitterID uuid.UUID) (int, error)

	// SetFileInfo records the analyzed hash and size of an uploaded file.
	SetFileInfo(ctx context.Context, mapID uuid.UUID, hash string, size int64) error
}
