package shared

// Asynq task type names and queues shared between the API and the worker.
const (
	TypeAnalyzeMapUpload = "maps:analyze_upload"

	QueueMaps = "maps"
)

// AnalyzeMapUploadPayload is the task payload enqueued after a successful
// map upload. The worker re-reads the object from storage, so only the key
// is carried.
type AnalyzeMapUploadPayload struct {
	MapID string `json:"mapId"`
}
