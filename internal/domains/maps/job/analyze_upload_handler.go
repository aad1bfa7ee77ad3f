package job

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"mapvault-backend/internal/domains/maps/repository"
	"mapvault-backend/internal/domains/maps/service"
	types "mapvault-backend/internal/shared"
)

// AnalyzeUploadHandler computes hash and size for an uploaded map file and
// writes them back onto the map row. Runs in the worker after every upload,
// including replacements, so a changed hash is the audit trail of a
// re-upload.
type AnalyzeUploadHandler struct {
	repo  repository.MapRepository
	files service.FileStore
}

func NewAnalyzeUploadHandler(repo repository.MapRepository, files service.FileStore) *AnalyzeUploadHandler {
	return &AnalyzeUploadHandler{
		repo:  repo,
		files: files,
	}
}

// ProcessTask handles one maps:analyze_upload task.
func (h *AnalyzeUploadHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload types.AnalyzeMapUploadPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal AnalyzeMapUpload payload")
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	mapID, err := uuid.Parse(payload.MapID)
	if err != nil {
		return fmt.Errorf("invalid map ID in payload: %w", err)
	}

	data, err := h.files.Download(ctx, payload.MapID)
	if err != nil {
		log.Error().Err(err).Str("map_id", payload.MapID).Msg("Failed to read map file for analysis")
		return fmt.Errorf("read map file: %w", err)
	}

	sum := sha1.Sum(data)
	hash := hex.EncodeToString(sum[:])

	if err := h.repo.SetFileInfo(ctx, mapID, hash, int64(len(data))); err != nil {
		log.Error().Err(err).Str("map_id", payload.MapID).Msg("Failed to store map file info")
		return fmt.Errorf("store file info: %w", err)
	}

	log.Info().
		Str("map_id", payload.MapID).
		Str("hash", hash).
		Int("size", len(data)).
		Msg("Map file analyzed")

	return nil
}
