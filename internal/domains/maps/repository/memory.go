package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"mapvault-backend/internal/domains/maps/model"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory MapRepository with the same observable
// semantics as the postgres implementation. Used by service tests; the mutex
// stands in for the transactional guarantees of the database.
type MemoryRepository struct {
	mu      sync.Mutex
	maps    map[uuid.UUID]*model.Map
	images  map[uuid.UUID][]model.MapImage
	credits map[uuid.UUID][]model.MapCredit
}

// NewMemoryRepository - Constructor
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		maps:    make(map[uuid.UUID]*model.Map),
		images:  make(map[uuid.UUID][]model.MapImage),
		credits: make(map[uuid.UUID][]model.MapCredit),
	}
}

func cloneMap(m *model.Map) *model.Map {
	out := *m
	out.Images = nil
	out.Credits = nil
	return &out
}

func (r *MemoryRepository) nameTaken(name string) bool {
	for _, m := range r.maps {
		if m.Status != model.StatusDeleted && strings.EqualFold(m.Name, name) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) insertLocked(input model.MapInput) (*model.Map, error) {
	if r.nameTaken(input.Name) {
		return nil, model.ErrMapNameTaken
	}

	now := time.Now().UTC()
	m := &model.Map{
		ID:          uuid.New(),
		Name:        input.Name,
		Type:        input.Type,
		Status:      model.StatusPending,
		SubmitterID: input.SubmitterID,
		Difficulty:  input.Difficulty,
		IsLinear:    input.IsLinear,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.maps[m.ID] = m

	for _, credit := range input.Credits {
		r.credits[m.ID] = append(r.credits[m.ID], model.MapCredit{
			MapID:  m.ID,
			UserID: credit.UserID,
			Role:   credit.Role,
		})
	}

	out := cloneMap(m)
	out.Credits = append([]model.MapCredit(nil), r.credits[m.ID]...)
	return out, nil
}

func (r *MemoryRepository) Insert(ctx context.Context, input model.MapInput) (*model.Map, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(input)
}

func (r *MemoryRepository) InsertPending(ctx context.Context, input model.MapInput, pendingLimit int) (*model.Map, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := 0
	for _, m := range r.maps {
		if m.SubmitterID == input.SubmitterID && m.Status == model.StatusPending {
			pending++
		}
	}
	if pending >= pendingLimit {
		return nil, model.ErrPendingLimit
	}

	return r.insertLocked(input)
}

func (r *MemoryRepository) Update(ctx context.Context, mapID uuid.UUID, patch model.MapPatch) (*model.Map, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.maps[mapID]
	if !ok || m.Status == model.StatusDeleted {
		return nil, model.ErrMapNotFound
	}

	if patch.Name != nil && !strings.EqualFold(*patch.Name, m.Name) {
		if r.nameTaken(*patch.Name) {
			return nil, model.ErrMapNameTaken
		}
		m.Name = *patch.Name
	}
	if patch.Type != nil {
		m.Type = *patch.Type
	}
	if patch.Status != nil {
		m.Status = *patch.Status
	}
	if patch.Difficulty != nil {
		m.Difficulty = *patch.Difficulty
	}
	if patch.IsLinear != nil {
		m.IsLinear = *patch.IsLinear
	}
	if patch.DownloadURL != nil {
		m.DownloadURL = patch.DownloadURL
	}
	m.UpdatedAt = time.Now().UTC()

	return cloneMap(m), nil
}

func matchesFilter(m *model.Map, filter *model.MapFilter) bool {
	if m.Status == model.StatusDeleted {
		return false
	}
	if filter == nil {
		return true
	}
	if filter.Search != "" && !strings.Contains(strings.ToLower(m.Name), strings.ToLower(filter.Search)) {
		return false
	}
	if filter.SubmitterID != nil && m.SubmitterID != *filter.SubmitterID {
		return false
	}
	if filter.Type != nil && m.Type != *filter.Type {
		return false
	}
	if filter.DifficultyLow != nil && m.Difficulty < *filter.DifficultyLow {
		return false
	}
	if filter.DifficultyHi != nil && m.Difficulty > *filter.DifficultyHi {
		return false
	}
	if filter.IsLinear != nil && m.IsLinear != *filter.IsLinear {
		return false
	}
	return true
}

func (r *MemoryRepository) GetAll(ctx context.Context, filter *model.MapFilter, skip, take int) ([]model.Map, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := []*model.Map{}
	for _, m := range r.maps {
		if matchesFilter(m, filter) {
			matched = append(matched, m)
		}
	}

	// Same total order as the SQL listing: created_at DESC, id ASC.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	totalCount := len(matched)

	if skip > len(matched) {
		skip = len(matched)
	}
	end := skip + take
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]model.Map, 0, end-skip)
	for _, m := range matched[skip:end] {
		out := cloneMap(m)
		if filter != nil && filter.ExpandImages {
			out.Images = append([]model.MapImage(nil), r.images[m.ID]...)
		}
		page = append(page, *out)
	}

	return page, totalCount, nil
}

func (r *MemoryRepository) Get(ctx context.Context, mapID uuid.UUID, expand model.Expand) (*model.Map, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.maps[mapID]
	if !ok || m.Status == model.StatusDeleted {
		return nil, model.ErrMapNotFound
	}

	out := cloneMap(m)
	if expand.Images {
		out.Images = append([]model.MapImage(nil), r.images[mapID]...)
	}
	if expand.Credits {
		out.Credits = append([]model.MapCredit(nil), r.credits[mapID]...)
	}
	return out, nil
}

func (r *MemoryRepository) UpdateCredits(ctx context.Context, criteria model.CreditFilter, patch model.CreditPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if patch.UserID == nil && patch.Role == nil {
		return nil
	}
	// An unscoped update would touch every credit row in the store.
	if criteria.MapID == nil && criteria.UserID == nil && criteria.Role == nil {
		return fmt.Errorf("update credits requires at least one criterion")
	}

	for mapID, credits := range r.credits {
		if criteria.MapID != nil && mapID != *criteria.MapID {
			continue
		}
		for i := range credits {
			if criteria.UserID != nil && credits[i].UserID != *criteria.UserID {
				continue
			}
			if criteria.Role != nil && credits[i].Role != *criteria.Role {
				continue
			}
			if patch.UserID != nil {
				credits[i].UserID = *patch.UserID
			}
			if patch.Role != nil {
				credits[i].Role = *patch.Role
			}
		}
	}
	return nil
}

func (r *MemoryRepository) CountPending(ctx context.Context, submitterID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, m := range r.maps {
		if m.SubmitterID == submitterID && m.Status == model.StatusPending {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) SetFileInfo(ctx context.Context, mapID uuid.UUID, hash string, size int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.maps[mapID]
	if !ok || m.Status == model.StatusDeleted {
		return model.ErrMapNotFound
	}
	m.FileHash = &hash
	m.FileSize = &size
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// AddImage seeds an image row. Images are read-only to this service, so this
// helper exists for tests and fixtures only.
func (r *MemoryRepository) AddImage(mapID uuid.UUID, url string, sortOrder int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.images[mapID] = append(r.images[mapID], model.MapImage{
		ID:        uuid.New(),
		MapID:     mapID,
		URL:       url,
		SortOrder: sortOrder,
	})
}
