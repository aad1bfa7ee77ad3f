package model

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
)

// ========================================
// EXPAND
// ========================================

// Expand is the set of relations a caller wants eager-loaded.
type Expand struct {
	Images  bool
	Credits bool
}

// ParseExpand reads a comma-separated expand query value. Unknown entries are
// ignored so new relations can be added without breaking old clients.
func ParseExpand(raw string) Expand {
	var e Expand
	for _, part := range strings.Split(raw, ",") {
		switch strings.TrimSpace(part) {
		case "images":
			e.Images = true
		case "credits":
			e.Credits = true
		}
	}
	return e
}

func (e Expand) String() string {
	parts := []string{}
	if e.Images {
		parts = append(parts, "images")
	}
	if e.Credits {
		parts = append(parts, "credits")
	}
	return strings.Join(parts, ",")
}

// ========================================
// REQUEST DTOs
// ========================================

// ListMapsRequest carries the decoded listing query parameters. Zero / nil
// fields impose no constraint.
type ListMapsRequest struct {
	Skip          int
	Take          int
	Expand        string
	Search        string
	SubmitterID   *uuid.UUID
	Type          string
	DifficultyLow *int
	DifficultyHi  *int
	IsLinear      *bool
}

func (r ListMapsRequest) Validate() error {
	if r.Skip < 0 {
		return fmt.Errorf("skip must not be negative")
	}
	if r.Take < 1 || r.Take > 100 {
		return fmt.Errorf("take must be between 1 and 100")
	}
	if r.Type != "" && !MapType(r.Type).IsValid() {
		return fmt.Errorf("invalid map type %q", r.Type)
	}
	if r.DifficultyLow != nil && r.DifficultyHi != nil && *r.DifficultyLow > *r.DifficultyHi {
		return fmt.Errorf("difficultyLow must be <= difficultyHigh")
	}
	return nil
}

// CreditInput is one contributor attribution in a create request.
type CreditInput struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

func (c CreditInput) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.UserID,
			validation.Required.Error("credit userId is required"),
			is.UUID.Error("credit userId must be a UUID"),
		),
		validation.Field(&c.Role,
			validation.Required.Error("credit role is required"),
			validation.By(func(value interface{}) error {
				if !CreditRole(value.(string)).IsValid() {
					return fmt.Errorf("invalid credit role")
				}
				return nil
			}),
		),
	)
}

// CreateMapRequest is the map metadata submission body.
type CreateMapRequest struct {
	Name       string        `json:"name"`
	Type       string        `json:"type"`
	Difficulty int           `json:"difficulty"`
	IsLinear   bool          `json:"isLinear"`
	Credits    []CreditInput `json:"credits"`
}

func (r CreateMapRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name,
			validation.Required.Error("name is required"),
			validation.Length(3, 128).Error("name must be 3-128 characters"),
		),
		validation.Field(&r.Type,
			validation.Required.Error("type is required"),
			validation.By(func(value interface{}) error {
				if !MapType(value.(string)).IsValid() {
					return fmt.Errorf("invalid map type")
				}
				return nil
			}),
		),
		validation.Field(&r.Difficulty,
			validation.Min(0).Error("difficulty must be 0-10"),
			validation.Max(10).Error("difficulty must be 0-10"),
		),
		validation.Field(&r.Credits),
	)
}

// ToMapInput converts a validated create request into the repository insert
// payload. The submitter comes from the authenticated request, never from the
// body.
func (r CreateMapRequest) ToMapInput(submitterID uuid.UUID) MapInput {
	credits := make([]MapCredit, 0, len(r.Credits))
	for _, c := range r.Credits {
		// Validated upstream; parse errors cannot occur here.
		userID, _ := uuid.Parse(c.UserID)
		credits = append(credits, MapCredit{
			UserID: userID,
			Role:   CreditRole(c.Role),
		})
	}

	return MapInput{
		Name:        r.Name,
		Type:        MapType(r.Type),
		SubmitterID: submitterID,
		Difficulty:  r.Difficulty,
		IsLinear:    r.IsLinear,
		Credits:     credits,
	}
}

// ========================================
// RESPONSE DTOs
// ========================================

// MapResponse is the external view of a map.
type MapResponse struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Type        MapType     `json:"type"`
	Status      MapStatus   `json:"status"`
	SubmitterID uuid.UUID   `json:"submitterId"`
	Difficulty  int         `json:"difficulty"`
	IsLinear    bool        `json:"isLinear"`
	DownloadURL *string     `json:"downloadUrl,omitempty"`
	FileHash    *string     `json:"fileHash,omitempty"`
	FileSize    *int64      `json:"fileSize,omitempty"`
	CreatedAt   string      `json:"createdAt"`
	UpdatedAt   string      `json:"updatedAt"`
	Images      []MapImage  `json:"images,omitempty"`
	Credits     []MapCredit `json:"credits,omitempty"`
}

// PagedMapsResponse is the pagination envelope for listings. TotalCount is
// the filtered count before skip/take so callers can compute total pages.
type PagedMapsResponse struct {
	Items      []MapResponse `json:"items"`
	TotalCount int           `json:"totalCount"`
	Skip       int           `json:"skip"`
	Take       int           `json:"take"`
}

// ToMapResponse projects an entity into the external view.
func ToMapResponse(m *Map) MapResponse {
	return MapResponse{
		ID:          m.ID,
		Name:        m.Name,
		Type:        m.Type,
		Status:      m.Status,
		SubmitterID: m.SubmitterID,
		Difficulty:  m.Difficulty,
		IsLinear:    m.IsLinear,
		DownloadURL: m.DownloadURL,
		FileHash:    m.FileHash,
		FileSize:    m.FileSize,
		CreatedAt:   m.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:   m.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Images:      m.Images,
		Credits:     m.Credits,
	}
}

// ========================================
// CACHE KEYS
// ========================================

// MapDetailCacheKey builds the cache key for a single map view. The expand
// set is part of the key so partial views never leak into fuller ones.
func MapDetailCacheKey(mapID uuid.UUID, expand Expand) string {
	return fmt.Sprintf("maps:detail:%s:%s", mapID, expand)
}

// MapDetailCachePattern matches every cached view of one map, regardless of
// expand set. Used for invalidation after upload or credit changes.
func MapDetailCachePattern(mapID uuid.UUID) string {
	return fmt.Sprintf("maps:detail:%s:*", mapID)
}
