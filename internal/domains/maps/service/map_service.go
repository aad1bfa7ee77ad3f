package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mapvault-backend/internal/domains/maps/model"
	"mapvault-backend/internal/domains/maps/repository"
	types "mapvault-backend/internal/shared"
	"mapvault-backend/pkg/cache"
	"mapvault-backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const detailCacheTTL = 10 * time.Minute

// MapsService implements MapService. Stateless; safe to run as multiple
// concurrent instances because every invariant is enforced at the repository
// boundary.
type MapsService struct {
	repo         repository.MapRepository
	files        FileStore
	cache        cache.Cache
	tasks        TaskEnqueuer
	pendingLimit int
}

// NewService - Constructor with DI
func NewService(
	repo repository.MapRepository,
	files FileStore,
	cache cache.Cache,
	tasks TaskEnqueuer,
	pendingLimit int,
) MapService {
	return &MapsService{
		repo:         repo,
		files:        files,
		cache:        cache,
		tasks:        tasks,
		pendingLimit: pendingLimit,
	}
}

// GetAll lists maps. Unset request fields impose no constraint. userID is a
// pass-through extension point for future visibility rules; it must keep
// flowing here even though it does not filter anything yet.
func (s *MapsService) GetAll(ctx context.Context, userID uuid.UUID, req model.ListMapsRequest) (*model.PagedMapsResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	_ = userID // reserved for visibility filtering

	expand := model.ParseExpand(req.Expand)
	filter := &model.MapFilter{
		Search:        req.Search,
		SubmitterID:   req.SubmitterID,
		DifficultyLow: req.DifficultyLow,
		DifficultyHi:  req.DifficultyHi,
		IsLinear:      req.IsLinear,
		ExpandImages:  expand.Images,
	}
	if req.Type != "" {
		t := model.MapType(req.Type)
		filter.Type = &t
	}

	maps, totalCount, err := s.repo.GetAll(ctx, filter, req.Skip, req.Take)
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}

	items := make([]model.MapResponse, len(maps))
	for i := range maps {
		items[i] = model.ToMapResponse(&maps[i])
	}

	return &model.PagedMapsResponse{
		Items:      items,
		TotalCount: totalCount,
		Skip:       req.Skip,
		Take:       req.Take,
	}, nil
}

// Create registers map metadata and returns the new map ID. The pending
// quota check and the insert are one atomic repository operation, so two
// concurrent creates by the same submitter cannot both slip under the limit.
func (s *MapsService) Create(ctx context.Context, req model.CreateMapRequest, submitterID uuid.UUID) (uuid.UUID, error) {
	m, err := s.repo.InsertPending(ctx, req.ToMapInput(submitterID), s.pendingLimit)
	if err != nil {
		return uuid.Nil, err
	}

	logger.Info("map created", map[string]interface{}{
		"map_id":    m.ID.String(),
		"submitter": submitterID.String(),
	})

	return m.ID, nil
}

// Get returns a single map view, cache-aside. userID is reserved for future
// visibility rules, same as in GetAll.
func (s *MapsService) Get(ctx context.Context, mapID, userID uuid.UUID, expand model.Expand) (*model.MapResponse, error) {
	_ = userID // reserved for visibility filtering

	cacheKey := model.MapDetailCacheKey(mapID, expand)
	var cached model.MapResponse
	found, err := s.cache.Get(ctx, cacheKey, &cached)
	if err != nil {
		logger.Warn("map detail cache read failed", err)
	}
	if found {
		return &cached, nil
	}

	m, err := s.repo.Get(ctx, mapID, expand)
	if err != nil {
		return nil, err
	}

	resp := model.ToMapResponse(m)
	if err := s.cache.Set(ctx, cacheKey, resp, detailCacheTTL); err != nil {
		logger.Warn("map detail cache write failed", err)
	}

	return &resp, nil
}

// Upload stores the binary for a map and transitions it to uploaded. A
// repeat upload replaces the payload in place and leaves the status as
// uploaded. The file write and the status update are both awaited; only the
// follow-up analysis runs in the background.
func (s *MapsService) Upload(ctx context.Context, mapID uuid.UUID, file []byte) (*model.MapResponse, error) {
	if len(file) == 0 {
		return nil, model.ErrEmptyFile
	}

	m, err := s.repo.Get(ctx, mapID, model.Expand{})
	if err != nil {
		return nil, err
	}

	url, err := s.files.Upload(ctx, mapID.String(), file)
	if err != nil {
		return nil, fmt.Errorf("%w: store map file: %v", model.ErrStorage, err)
	}

	patch := model.MapPatch{DownloadURL: &url}
	if m.Status == model.StatusPending {
		uploaded := model.StatusUploaded
		patch.Status = &uploaded
	}

	m, err = s.repo.Update(ctx, mapID, patch)
	if err != nil {
		return nil, err
	}

	if err := s.cache.DeletePattern(ctx, model.MapDetailCachePattern(mapID)); err != nil {
		logger.Warn("map detail cache invalidation failed", err)
	}

	s.enqueueAnalysis(mapID)

	resp := model.ToMapResponse(m)
	return &resp, nil
}

// Download returns the stored binary together with the map view.
func (s *MapsService) Download(ctx context.Context, mapID uuid.UUID) ([]byte, *model.MapResponse, error) {
	m, err := s.repo.Get(ctx, mapID, model.Expand{})
	if err != nil {
		return nil, nil, err
	}

	if m.Status != model.StatusUploaded {
		return nil, nil, model.ErrMapNotUploaded
	}

	data, err := s.files.Download(ctx, mapID.String())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read map file: %v", model.ErrStorage, err)
	}

	resp := model.ToMapResponse(m)
	return data, &resp, nil
}

// enqueueAnalysis schedules hash/size computation for an uploaded file.
// Analysis is advisory; a failed enqueue is logged and never fails the
// upload itself.
func (s *MapsService) enqueueAnalysis(mapID uuid.UUID) {
	if s.tasks == nil {
		return
	}

	payload, _ := json.Marshal(types.AnalyzeMapUploadPayload{MapID: mapID.String()})
	task := asynq.NewTask(types.TypeAnalyzeMapUpload, payload)

	if _, err := s.tasks.Enqueue(task, asynq.Queue(types.QueueMaps), asynq.MaxRetry(2)); err != nil {
		logger.Warn("failed to enqueue map analysis task", err)
	}
}
