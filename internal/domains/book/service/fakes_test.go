package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"bookreview-backend/internal/domains/book/model"
	"bookreview-backend/internal/domains/book/repository"
	"bookreview-backend/internal/infrastructure/storage"
)

// callLog records cross-collaborator call order.
type callLog struct {
	mu     sync.Mutex
	events []string
}

func (l *callLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// ================================================
// Repository fake with version compare-and-swap
// ================================================

type fakeRepo struct {
	mu    sync.Mutex
	books map[string]*model.Book
	seq   int
	log   *callLog

	findErr   error
	insertErr error
	updateErr error
	deleteErr error
	ratingErr error

	// forcedConflicts makes the next N ReplaceRatings calls lose the race.
	forcedConflicts int
	replaceCalls    int
}

func newFakeRepo(log *callLog) *fakeRepo {
	return &fakeRepo{books: map[string]*model.Book{}, log: log}
}

func cloneBook(b *model.Book) *model.Book {
	c := *b
	c.Ratings = append([]model.Rating{}, b.Ratings...)
	return &c
}

func (r *fakeRepo) FindAll(_ context.Context) ([]model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}

	out := make([]model.Book, 0, len(r.books))
	for _, b := range r.books {
		out = append(out, *cloneBook(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (*model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}

	b, ok := r.books[id]
	if !ok {
		return nil, model.ErrBookNotFound
	}
	return cloneBook(b), nil
}

func (r *fakeRepo) FindTopRated(ctx context.Context, limit int) ([]model.Book, error) {
	all, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].AverageRating != all[j].AverageRating {
			return all[i].AverageRating > all[j].AverageRating
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *fakeRepo) Insert(_ context.Context, book *model.Book) (*model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.add("repo.insert")
	if r.insertErr != nil {
		return nil, r.insertErr
	}

	r.seq++
	stored := cloneBook(book)
	stored.ID = uuid.NewString()
	stored.Version = 0
	stored.CreatedAt = time.Unix(int64(r.seq), 0).UTC()
	stored.UpdatedAt = stored.CreatedAt
	r.books[stored.ID] = stored
	return cloneBook(stored), nil
}

func (r *fakeRepo) UpdateFields(_ context.Context, id, ownerID string, upd model.BookUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.add("repo.update")
	if r.updateErr != nil {
		return r.updateErr
	}

	b, ok := r.books[id]
	if !ok || b.OwnerID != ownerID {
		return model.ErrBookNotFound
	}
	upd.Apply(b)
	return nil
}

func (r *fakeRepo) ReplaceRatings(_ context.Context, id string, expectedVersion int, ratings []model.Rating, average float64) (*model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaceCalls++
	if r.ratingErr != nil {
		return nil, r.ratingErr
	}
	if r.forcedConflicts > 0 {
		r.forcedConflicts--
		return nil, model.ErrVersionConflict
	}

	b, ok := r.books[id]
	if !ok || b.Version != expectedVersion {
		return nil, model.ErrVersionConflict
	}
	b.Ratings = append([]model.Rating{}, ratings...)
	b.AverageRating = average
	b.Version++
	return cloneBook(b), nil
}

func (r *fakeRepo) Delete(_ context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.add("repo.delete")
	if r.deleteErr != nil {
		return r.deleteErr
	}

	b, ok := r.books[id]
	if !ok || b.OwnerID != ownerID {
		return model.ErrBookNotFound
	}
	delete(r.books, id)
	return nil
}

func (r *fakeRepo) ListImageURLs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	urls := make([]string, 0, len(r.books))
	for _, b := range r.books {
		urls = append(urls, b.ImageURL)
	}
	return urls, nil
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.books)
}

// ================================================
// Blob store fake
// ================================================

type fakeBlobStore struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	log       *callLog
	putErr    error
	deleteErr error
}

func newFakeBlobStore(log *callLog) *fakeBlobStore {
	return &fakeBlobStore{blobs: map[string][]byte{}, log: log}
}

func (s *fakeBlobStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.add("blob.put")
	if s.putErr != nil {
		return "", s.putErr
	}
	s.blobs[key] = data
	return "http://test.local/images/" + key, nil
}

func (s *fakeBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.add("blob.delete")
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.blobs, key)
	return nil
}

func (s *fakeBlobStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[key]
	return ok, nil
}

func (s *fakeBlobStore) List(_ context.Context) ([]storage.BlobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.BlobInfo, 0, len(s.blobs))
	for k := range s.blobs {
		out = append(out, storage.BlobInfo{Key: k})
	}
	return out, nil
}

func (s *fakeBlobStore) hasURL(url string) bool {
	key, ok := storage.KeyFromURL(url)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.blobs[key]
	return exists
}

func (s *fakeBlobStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// ================================================
// Cache and cleanup queue fakes
// ================================================

type fakeCache struct {
	mu       sync.Mutex
	entries  map[string][]byte
	counters map[string]int64
	getErr   error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}, counters: map[string]int64{}}
}

func (c *fakeCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, c.getErr
	}
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *fakeCache) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return c.counters[key], nil
}

func (c *fakeCache) Counter(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[key], nil
}

func (c *fakeCache) DeletePattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if ok, _ := path.Match(pattern, k); ok {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *fakeCache) Ping(_ context.Context) error { return nil }

func (c *fakeCache) generation() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[cacheGenerationKey]
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// pausingRepo holds the first FindByID after it has read the record,
// until resume is closed.
type pausingRepo struct {
	*fakeRepo
	armed  atomic.Bool
	loaded chan struct{}
	resume chan struct{}
}

func newPausingRepo(inner *fakeRepo) *pausingRepo {
	r := &pausingRepo{fakeRepo: inner, loaded: make(chan struct{}), resume: make(chan struct{})}
	r.armed.Store(true)
	return r
}

func (r *pausingRepo) FindByID(ctx context.Context, id string) (*model.Book, error) {
	book, err := r.fakeRepo.FindByID(ctx, id)
	if r.armed.CompareAndSwap(true, false) {
		close(r.loaded)
		<-r.resume
	}
	return book, err
}

type fakeCleanupQueue struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (q *fakeCleanupQueue) EnqueueImageDeletion(_ context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.keys = append(q.keys, key)
	return nil
}

func (q *fakeCleanupQueue) enqueued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.keys...)
}

// ================================================
// Fixture
// ================================================

var errBoom = errors.New("boom")

type fixture struct {
	log     *callLog
	repo    *fakeRepo
	blobs   *fakeBlobStore
	cache   *fakeCache
	cleanup *fakeCleanupQueue
	svc     *BookService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := &callLog{}
	f := &fixture{
		log:     log,
		repo:    newFakeRepo(log),
		blobs:   newFakeBlobStore(log),
		cache:   newFakeCache(),
		cleanup: &fakeCleanupQueue{},
	}
	f.svc = f.serviceOver(f.repo)
	return f
}

// serviceOver builds a service sharing the fixture's collaborators around repo.
func (f *fixture) serviceOver(repo repository.RepositoryInterface) *BookService {
	return NewBookService(
		repo,
		f.blobs,
		&storage.ImageProcessor{MaxSize: 5 * 1024 * 1024},
		f.cache,
		f.cleanup,
		Options{MaxRatingRetries: 25, CacheTTL: time.Minute},
	)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})

	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func pngUpload(t *testing.T) *model.ImageUpload {
	return &model.ImageUpload{Filename: "img1.png", ContentType: "image/png", Data: pngBytes(t)}
}

func validCreate() model.CreateBookRequest {
	return model.CreateBookRequest{Title: "T", Author: "Au", Description: "A book"}
}

// seedBook creates a book through the service, owned by ownerID.
func (f *fixture) seedBook(t *testing.T, ownerID string) *model.Book {
	t.Helper()

	book, err := f.svc.CreateBook(context.Background(), ownerID, validCreate(), pngUpload(t))
	require.NoError(t, err)
	return book
}

func strPtr(s string) *string { return &s }
