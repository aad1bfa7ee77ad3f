package service

import (
	"context"

	"mapvault-backend/internal/domains/maps/model"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// MapService is the business-logic surface over the map repository.
//
// userID is the authenticated requester. It does not restrict visibility
// today; it is threaded through so access-control rules can be added without
// changing call sites.
type MapService interface {
	GetAll(ctx context.Context, userID uuid.UUID, req model.ListMapsRequest) (*model.PagedMapsResponse, error)
	Create(ctx context.Context, req model.CreateMapRequest, submitterID uuid.UUID) (uuid.UUID, error)
	Get(ctx context.Context, mapID, userID uuid.UUID, expand model.Expand) (*model.MapResponse, error)
	Upload(ctx context.Context, mapID uuid.UUID, file []byte) (*model.MapResponse, error)
	Download(ctx context.Context, mapID uuid.UUID) ([]byte, *model.MapResponse, error)
}

// FileStore is the binary-storage collaborator, keyed by map ID. MinIO in
// production, an in-memory fake in tests.
type FileStore interface {
	Upload(ctx context.Context, mapID string, data []byte) (url string, err error)
	Download(ctx context.Context, mapID string) ([]byte, error)
}

// TaskEnqueuer is the slice of asynq.Client the service uses, extracted so
// tests can capture enqueued tasks.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
