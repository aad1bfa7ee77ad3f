package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"mapvault-backend/internal/domains/maps/model"
	"mapvault-backend/internal/domains/maps/repository"
	types "mapvault-backend/internal/shared"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ========================================
// FAKES
// ========================================

type fakeFileStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	uploadErr   error
	downloadErr error
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{objects: make(map[string][]byte)}
}

func (f *fakeFileStore) Upload(ctx context.Context, mapID string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.objects[mapID] = append([]byte(nil), data...)
	return fmt.Sprintf("https://files.test/maps/%s.bsp", mapID), nil
}

func (f *fakeFileStore) Download(ctx context.Context, mapID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	data, ok := f.objects[mapID]
	if !ok {
		return nil, errors.New("object not found")
	}
	return append([]byte(nil), data...), nil
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func (f *fakeEnqueuer) taskCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string][]byte)}
}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.store[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.store[key] = raw
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.store, key)
	}
	return nil
}

func (f *fakeCache) DeletePattern(ctx context.Context, pattern string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range f.store {
		if strings.HasPrefix(key, prefix) {
			delete(f.store, key)
		}
	}
	return nil
}

func (f *fakeCache) Ping(ctx context.Context) error { return nil }

// ========================================
// FIXTURES
// ========================================

const testPendingLimit = 3

type serviceFixture struct {
	repo    *repository.MemoryRepository
	files   *fakeFileStore
	cache   *fakeCache
	tasks   *fakeEnqueuer
	service MapService
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		repo:  repository.NewMemoryRepository(),
		files: newFakeFileStore(),
		cache: newFakeCache(),
		tasks: &fakeEnqueuer{},
	}
	f.service = NewService(f.repo, f.files, f.cache, f.tasks, testPendingLimit)
	return f
}

func createRequest(name string) model.CreateMapRequest {
	return model.CreateMapRequest{
		Name:       name,
		Type:       "surf",
		Difficulty: 4,
		IsLinear:   true,
	}
}

func (f *serviceFixture) mustCreate(t *testing.T, name string, submitter uuid.UUID) uuid.UUID {
	t.Helper()
	id, err := f.service.Create(context.Background(), createRequest(name), submitter)
	require.NoError(t, err)
	return id
}

func (f *serviceFixture) mustUpload(t *testing.T, mapID uuid.UUID, data []byte) *model.MapResponse {
	t.Helper()
	m, err := f.service.Upload(context.Background(), mapID, data)
	require.NoError(t, err)
	return m
}

// ========================================
// CREATE
// ========================================

func TestCreateMapStartsPending(t *testing.T) {
	f := newFixture(t)
	submitter := uuid.New()

	req := createRequest("surf_utopia")
	req.Credits = []model.CreditInput{
		{UserID: uuid.NewString(), Role: "author"},
		{UserID: uuid.NewString(), Role: "tester"},
	}

	id, err := f.service.Create(context.Background(), req, submitter)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	m, err := f.service.Get(context.Background(), id, submitter, model.Expand{Credits: true})
	require.NoError(t, err)
	assert.Equal(t, "surf_utopia", m.Name)
	assert.Equal(t, model.StatusPending, m.Status)
	assert.Equal(t, submitter, m.SubmitterID)
	assert.Nil(t, m.DownloadURL)
	assert.Len(t, m.Credits, 2)
}

func TestCreateMapNameConflict(t *testing.T) {
	f := newFixture(t)

	f.mustCreate(t, "surf_utopia", uuid.New())

	_, err := f.service.Create(context.Background(), createRequest("surf_utopia"), uuid.New())
	assert.ErrorIs(t, err, model.ErrMapNameTaken)

	// Uniqueness is case-insensitive.
	_, err = f.service.Create(context.Background(), createRequest("SURF_Utopia"), uuid.New())
	assert.ErrorIs(t, err, model.ErrMapNameTaken)
}

func TestCreateMapNameFreedByDeletion(t *testing.T) {
	f := newFixture(t)
	submitter := uuid.New()

	id := f.mustCreate(t, "surf_utopia", submitter)

	deleted := model.StatusDeleted
	_, err := f.repo.Update(context.Background(), id, model.MapPatch{Status: &deleted})
	require.NoError(t, err)

	// A deleted map no longer reserves its name.
	_, err = f.service.Create(context.Background(), createRequest("surf_utopia"), submitter)
	assert.NoError(t, err)
}

func TestCreateMapPendingLimit(t *testing.T) {
	f := newFixture(t)
	submitter := uuid.New()

	for i := 0; i < testPendingLimit; i++ {
		f.mustCreate(t, fmt.Sprintf("surf_map_%d", i), submitter)
	}

	_, err := f.service.Create(context.Background(), createRequest("surf_one_too_many"), submitter)
	assert.ErrorIs(t, err, model.ErrPendingLimit)

	// The quota is per submitter; somebody else can still create.
	_, err = f.service.Create(context.Background(), createRequest("bhop_other_user"), uuid.New())
	assert.NoError(t, err)
}

func TestCreateMapUploadedMapsDoNotCountAgainstLimit(t *testing.T) {
	f := newFixture(t)
	submitter := uuid.New()

	for i := 0; i < testPendingLimit; i++ {
		id := f.mustCreate(t, fmt.Sprintf("surf_map_%d", i), submitter)
		f.mustUpload(t, id, []byte("payload"))
	}

	_, err := f.service.Create(context.Background(), createRequest("surf_still_room"), submitter)
	assert.NoError(t, err)
}

// ========================================
// UPLOAD
// ========================================

func TestUploadTransitionsToUploaded(t *testing.T) {
	f := newFixture(t)
	id := f.mustCreate(t, "surf_utopia", uuid.New())

	m := f.mustUpload(t, id, []byte("bsp-bytes"))
	assert.Equal(t, model.StatusUploaded, m.Status)
	require.NotNil(t, m.DownloadURL)
	assert.Contains(t, *m.DownloadURL, id.String())

	assert.Equal(t, 1, f.tasks.taskCount())
}

func TestUploadReplacementKeepsStatus(t *testing.T) {
	f := newFixture(t)
	id := f.mustCreate(t, "surf_utopia", uuid.New())

	f.mustUpload(t, id, []byte("version-one"))
	m := f.mustUpload(t, id, []byte("version-two"))

	assert.Equal(t, model.StatusUploaded, m.Status)

	data, err := f.files.Download(context.Background(), id.String())
	require.NoError(t, err)
	assert.Equal(t, []byte("version-two"), data)

	// Both uploads schedule analysis.
	assert.Equal(t, 2, f.tasks.taskCount())
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	f := newFixture(t)
	id := f.mustCreate(t, "surf_utopia", uuid.New())

	_, err := f.service.Upload(context.Background(), id, nil)
	assert.ErrorIs(t, err, model.ErrEmptyFile)

	m, err := f.service.Get(context.Background(), id, uuid.New(), model.Expand{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, m.Status)
}

func TestUploadUnknownMap(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Upload(context.Background(), uuid.New(), []byte("data"))
	assert.ErrorIs(t, err, model.ErrMapNotFound)
	assert.Equal(t, 0, f.tasks.taskCount())
}

func TestUploadStorageFailureLeavesMapPending(t *testing.T) {
	f := newFixture(t)
	id := f.mustCreate(t, "surf_utopia", uuid.New())

	f.files.uploadErr = errors.New("bucket unreachable")

	_, err := f.service.Upload(context.Background(), id, []byte("data"))
	assert.ErrorIs(t, err, model.ErrStorage)

	m, err := f.service.Get(context.Background(), id, uuid.New(), model.Expand{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, m.Status)
	assert.Nil(t, m.DownloadURL)
}

func TestUploadEnqueuesAnalysisPayload(t *testing.T) {
	f := newFixture(t)
	id := f.mustCreate(t, "surf_utopia", uuid.New())
	f.mustUpload(t, id, []byte("bsp-bytes"))

	require.Equal(t, 1, f.tasks.taskCount())
	task := f.tasks.tasks[0]
	assert.Equal(t, types.TypeAnalyzeMapUpload, task.Type())

	var payload types.AnalyzeMapUploadPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, id.String(), payload.MapID)
}

func TestUploadSurvivesEnqueueFailure(t *testing.T) {
	f := newFixture(t)
	id := f.mustCreate(t, "surf_utopia", uuid.New())

	f.tasks.err = errors.New("redis down")

	m, err := f.service.Upload(context.Background(), id, []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusUploaded, m.Status)
}

// ========================================
// DOWNLOAD
// ========================================

func TestDownloadRequiresUploadedStatus(t *testing.T) {
	f := newFixture(t)
	id := f.mustCreate(t, "surf_utopia", uuid.New())

	_, _, err := f.service.Download(context.Background(), id)
	assert.ErrorIs(t, err, model.ErrMapNotUploaded)
}

func TestDownloadReturnsStoredBytes(t *testing.T) {
	f := newFixture(t)
	id := f.mustCreate(t, "surf_utopia", uuid.New())
	f.mustUpload(t, id, []byte("bsp-bytes"))

	data, m, err := f.service.Download(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []byte("bsp-bytes"), data)
	assert.Equal(t, "surf_utopia", m.Name)
}

func TestDownloadUnknownMap(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.service.Download(context.Background(), uuid.New())
	assert.ErrorIs(t, err, model.ErrMapNotFound)
}

// ========================================
// GET
// ========================================

func TestGetUnknownMap(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Get(context.Background(), uuid.New(), uuid.New(), model.Expand{})
	assert.ErrorIs(t, err, model.ErrMapNotFound)
}

func TestGetExpandRelations(t *testing.T) {
	f := newFixture(t)
	submitter := uuid.New()

	req := createRequest("surf_utopia")
	req.Credits = []model.CreditInput{{UserID: uuid.NewString(), Role: "author"}}
	id, err := f.service.Create(context.Background(), req, submitter)
	require.NoError(t, err)

	f.repo.AddImage(id, "https://img.test/1.jpg", 0)

	plain, err := f.service.Get(context.Background(), id, submitter, model.Expand{})
	require.NoError(t, err)
	assert.Empty(t, plain.Images)
	assert.Empty(t, plain.Credits)

	full, err := f.service.Get(context.Background(), id, submitter, model.Expand{Images: true, Credits: true})
	require.NoError(t, err)
	assert.Len(t, full.Images, 1)
	assert.Len(t, full.Credits, 1)
}

func TestGetServesFromCache(t *testing.T) {
	f := newFixture(t)
	submitter := uuid.New()
	id := f.mustCreate(t, "surf_utopia", submitter)

	first, err := f.service.Get(context.Background(), id, submitter, model.Expand{})
	require.NoError(t, err)

	// Mutate behind the cache; the stale cached view must still be served.
	newName := "surf_renamed"
	_, err = f.repo.Update(context.Background(), id, model.MapPatch{Name: &newName})
	require.NoError(t, err)

	second, err := f.service.Get(context.Background(), id, submitter, model.Expand{})
	require.NoError(t, err)
	assert.Equal(t, first.Name, second.Name)
}

func TestUploadInvalidatesCachedViews(t *testing.T) {
	f := newFixture(t)
	submitter := uuid.New()
	id := f.mustCreate(t, "surf_utopia", submitter)

	// Warm two differently-expanded views of the same map.
	_, err := f.service.Get(context.Background(), id, submitter, model.Expand{})
	require.NoError(t, err)
	_, err = f.service.Get(context.Background(), id, submitter, model.Expand{Credits: true})
	require.NoError(t, err)

	f.mustUpload(t, id, []byte("bsp-bytes"))

	m, err := f.service.Get(context.Background(), id, submitter, model.Expand{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusUploaded, m.Status)
}

// ========================================
// LISTING
// ========================================

func listRequest() model.ListMapsRequest {
	return model.ListMapsRequest{Skip: 0, Take: 20}
}

func TestGetAllExcludesDeleted(t *testing.T) {
	f := newFixture(t)
	submitter := uuid.New()

	keep := f.mustCreate(t, "surf_keep", submitter)
	gone := f.mustCreate(t, "surf_gone", submitter)

	deleted := model.StatusDeleted
	_, err := f.repo.Update(context.Background(), gone, model.MapPatch{Status: &deleted})
	require.NoError(t, err)

	page, err := f.service.GetAll(context.Background(), submitter, listRequest())
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalCount)
	assert.Equal(t, keep, page.Items[0].ID)
}

func TestGetAllDifficultyRange(t *testing.T) {
	f := newFixture(t)
	submitter := uuid.New()

	for i, diff := range []int{1, 3, 5, 7, 9} {
		req := createRequest(fmt.Sprintf("surf_diff_%d", i))
		req.Difficulty = diff
		_, err := f.service.Create(context.Background(), req, submitter)
		require.NoError(t, err)
	}

	low, hi := 3, 7
	req := listRequest()
	req.DifficultyLow = &low
	req.DifficultyHi = &hi

	page, err := f.service.GetAll(context.Background(), submitter, req)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)
	for _, item := range page.Items {
		assert.GreaterOrEqual(t, item.Difficulty, low)
		assert.LessOrEqual(t, item.Difficulty, hi)
	}
}

func TestGetAllInvalidDifficultyRange(t *testing.T) {
	f := newFixture(t)

	low, hi := 8, 2
	req := listRequest()
	req.DifficultyLow = &low
	req.DifficultyHi = &hi

	_, err := f.service.GetAll(context.Background(), uuid.New(), req)
	assert.Error(t, err)
}

func TestGetAllSubmitterAndTypeFilters(t *testing.T) {
	f := newFixture(t)
	alice := uuid.New()
	bob := uuid.New()

	f.mustCreate(t, "surf_alice", alice)

	bhop := createRequest("bhop_alice")
	bhop.Type = "bhop"
	_, err := f.service.Create(context.Background(), bhop, alice)
	require.NoError(t, err)

	f.mustCreate(t, "surf_bob", bob)

	req := listRequest()
	req.SubmitterID = &alice
	req.Type = "bhop"

	page, err := f.service.GetAll(context.Background(), alice, req)
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalCount)
	assert.Equal(t, "bhop_alice", page.Items[0].Name)
}

func TestGetAllSearchMatchesSubstring(t *testing.T) {
	f := newFixture(t)
	submitter := uuid.New()

	f.mustCreate(t, "surf_utopia", submitter)
	f.mustCreate(t, "surf_kitsune", submitter)
	f.mustCreate(t, "bhop_arcane", submitter)

	req := listRequest()
	req.Search = "UTOP"

	page, err := f.service.GetAll(context.Background(), submitter, req)
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalCount)
	assert.Equal(t, "surf_utopia", page.Items[0].Name)
}

func TestGetAllPaginationIsComplete(t *testing.T) {
	f := newFixture(t)
	submitter := uuid.New()

	total := 7
	want := map[string]bool{}
	for i := 0; i < total; i++ {
		name := fmt.Sprintf("surf_page_%d", i)
		id := f.mustCreate(t, name, submitter)
		f.mustUpload(t, id, []byte("x"))
		want[name] = false
	}

	// Walk the pages; every map appears exactly once and totalCount is the
	// pre-pagination filtered count on every page.
	take := 3
	for skip := 0; skip < total; skip += take {
		req := listRequest()
		req.Skip = skip
		req.Take = take

		page, err := f.service.GetAll(context.Background(), submitter, req)
		require.NoError(t, err)
		assert.Equal(t, total, page.TotalCount)

		for _, item := range page.Items {
			seen, ok := want[item.Name]
			require.True(t, ok, "unexpected map %s", item.Name)
			require.False(t, seen, "map %s returned twice", item.Name)
			want[item.Name] = true
		}
	}

	for name, seen := range want {
		assert.True(t, seen, "map %s never returned", name)
	}
}

func TestGetAllSkipBeyondEnd(t *testing.T) {
	f := newFixture(t)
	submitter := uuid.New()
	f.mustCreate(t, "surf_only", submitter)

	req := listRequest()
	req.Skip = 50

	page, err := f.service.GetAll(context.Background(), submitter, req)
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
	assert.Empty(t, page.Items)
}

func TestGetAllExpandImages(t *testing.T) {
	f := newFixture(t)
	submitter := uuid.New()

	id := f.mustCreate(t, "surf_utopia", submitter)
	f.repo.AddImage(id, "https://img.test/1.jpg", 0)
	f.repo.AddImage(id, "https://img.test/2.jpg", 1)

	req := listRequest()
	req.Expand = "images"

	page, err := f.service.GetAll(context.Background(), submitter, req)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Len(t, page.Items[0].Images, 2)

	plain, err := f.service.GetAll(context.Background(), submitter, listRequest())
	require.NoError(t, err)
	assert.Empty(t, plain.Items[0].Images)
}

// ========================================
// CONCURRENCY
// ========================================

func TestConcurrentCreatesRespectPendingLimit(t *testing.T) {
	f := newFixture(t)
	submitter := uuid.New()

	attempts := testPendingLimit * 4
	errs := make(chan error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.service.Create(context.Background(), createRequest(fmt.Sprintf("surf_race_%d", i)), submitter)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
		} else {
			assert.ErrorIs(t, err, model.ErrPendingLimit)
		}
	}
	assert.Equal(t, testPendingLimit, created)

	count, err := f.repo.CountPending(context.Background(), submitter)
	require.NoError(t, err)
	assert.Equal(t, testPendingLimit, count)
}
