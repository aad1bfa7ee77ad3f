package model

import (
	"time"

	"github.com/google/uuid"
)

// MapStatus is the submission state of a map.
type MapStatus string

const (
	// StatusPending: metadata exists but no binary has been uploaded yet.
	StatusPending MapStatus = "pending"
	// StatusUploaded: a binary is stored. Never reverts to pending.
	StatusUploaded MapStatus = "uploaded"
	// StatusDeleted is terminal. Deleted maps are excluded from listings
	// and from name-uniqueness checks.
	StatusDeleted MapStatus = "deleted"
)

// MapType is the gameplay category of a map.
type MapType string

const (
	TypeSurf  MapType = "surf"
	TypeBhop  MapType = "bhop"
	TypeRJ    MapType = "rj"
	TypeTrick MapType = "trick"
	TypeKZ    MapType = "kz"
)

func (t MapType) IsValid() bool {
	switch t {
	case TypeSurf, TypeBhop, TypeRJ, TypeTrick, TypeKZ:
		return true
	}
	return false
}

// CreditRole is the role a user is credited with on a map.
type CreditRole string

const (
	RoleAuthor        CreditRole = "author"
	RoleCoauthor      CreditRole = "coauthor"
	RoleTester        CreditRole = "tester"
	RoleContributor   CreditRole = "contributor"
	RoleSpecialThanks CreditRole = "special_thanks"
)

func (r CreditRole) IsValid() bool {
	switch r {
	case RoleAuthor, RoleCoauthor, RoleTester, RoleContributor, RoleSpecialThanks:
		return true
	}
	return false
}

// Map is a submitted level package.
type Map struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Type        MapType   `json:"type"`
	Status      MapStatus `json:"status"`
	SubmitterID uuid.UUID `json:"submitterId"`
	Difficulty  int       `json:"difficulty"`
	IsLinear    bool      `json:"isLinear"`

	// DownloadURL points at the stored binary. Nil while pending.
	DownloadURL *string `json:"downloadUrl,omitempty"`
	// FileHash and FileSize are filled by the upload-analysis worker.
	FileHash *string `json:"fileHash,omitempty"`
	FileSize *int64  `json:"fileSize,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Relations, attached only when requested via expand.
	Images  []MapImage  `json:"images,omitempty"`
	Credits []MapCredit `json:"credits,omitempty"`
}

// MapImage is a display asset attached to a map. Read-only in this service.
type MapImage struct {
	ID        uuid.UUID `json:"id"`
	MapID     uuid.UUID `json:"mapId"`
	URL       string    `json:"url"`
	SortOrder int       `json:"sortOrder"`
}

// MapCredit attributes a role on a map to a user.
type MapCredit struct {
	MapID  uuid.UUID  `json:"mapId"`
	UserID uuid.UUID  `json:"userId"`
	Role   CreditRole `json:"role"`
}

// MapInput is the insert payload. ID, status and timestamps are assigned by
// the repository.
type MapInput struct {
	Name        string
	Type        MapType
	SubmitterID uuid.UUID
	Difficulty  int
	IsLinear    bool
	Credits     []MapCredit
}

// MapPatch is a partial update. Nil fields are left untouched. ID, createdAt
// and submitterID are immutable after creation and deliberately have no patch
// field.
type MapPatch struct {
	Name        *string
	Type        *MapType
	Status      *MapStatus
	Difficulty  *int
	IsLinear    *bool
	DownloadURL *string
}

// MapFilter is the composable listing predicate. Nil / zero fields impose no
// constraint.
type MapFilter struct {
	Search        string
	SubmitterID   *uuid.UUID
	Type          *MapType
	DifficultyLow *int
	DifficultyHi  *int
	IsLinear      *bool

	// ExpandImages attaches each map's images to the result set.
	ExpandImages bool
}

// CreditFilter selects credit rows for a bulk update.
type CreditFilter struct {
	MapID  *uuid.UUID
	UserID *uuid.UUID
	Role   *CreditRole
}

// CreditPatch is the bulk credit update. Nil fields are left untouched.
type CreditPatch struct {
	UserID *uuid.UUID
	Role   *CreditRole
}
