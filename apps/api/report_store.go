package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var errReportNotFound = errors.New("report not found")

// statusTransitionError is returned by UpdateStatus when the stored status
// does not allow the requested move.
type statusTransitionError struct {
	From string
	To   string
}

func (e *statusTransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.From, e.To)
}

// ReportRepository persists the full set of reports. Load/Save work on the
// whole sequence; Upsert, UpdateStatus, Delete and Clear address single
// records.
type ReportRepository interface {
	Load(ctx context.Context) ([]Report, error)
	Save(ctx context.Context, reports []Report) error
	Upsert(ctx context.Context, report Report) error
	// UpdateStatus checks the transition against the stored status and
	// writes it in one step. It returns the updated report and the status it
	// moved from, errReportNotFound, or a *statusTransitionError.
	UpdateStatus(ctx context.Context, id, next string) (Report, string, error)
	Delete(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) error
}

// ItemStore is a string key/value store with localStorage get/set semantics.
type ItemStore interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
}

// itemReportRepository keeps the whole report sequence JSON-encoded under a
// single key. Mutations are read-modify-write of the full value, serialized
// per process.
type itemReportRepository struct {
	store ItemStore
	key   string
	log   *slog.Logger

	mu sync.Mutex
}

func newItemReportRepository(store ItemStore, key string, logger *slog.Logger) *itemReportRepository {
	if key == "" {
		key = defaultStorageKey
	}
	return &itemReportRepository{store: store, key: key, log: logger}
}

func (r *itemReportRepository) Load(ctx context.Context) ([]Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

func (r *itemReportRepository) Save(ctx context.Context, reports []Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(ctx, reports)
}

func (r *itemReportRepository) Upsert(ctx context.Context, report Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reports, err := r.load(ctx)
	if err != nil {
		return err
	}
	if idx := indexOfReport(reports, report.ID); idx >= 0 {
		reports[idx] = report
	} else {
		reports = append(reports, report)
	}
	return r.save(ctx, reports)
}

func (r *itemReportRepository) UpdateStatus(ctx context.Context, id, next string) (Report, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reports, err := r.load(ctx)
	if err != nil {
		return Report{}, "", err
	}
	idx := indexOfReport(reports, id)
	if idx < 0 {
		return Report{}, "", errReportNotFound
	}
	current := reports[idx].EffectiveStatus()
	if !canTransitionStatus(current, next) {
		return Report{}, current, &statusTransitionError{From: current, To: next}
	}
	reports[idx].Status = next
	if err := r.save(ctx, reports); err != nil {
		return Report{}, current, err
	}
	return reports[idx], current, nil
}

func (r *itemReportRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reports, err := r.load(ctx)
	if err != nil {
		return false, err
	}
	idx := indexOfReport(reports, id)
	if idx < 0 {
		return false, nil
	}
	reports = append(reports[:idx], reports[idx+1:]...)
	return true, r.save(ctx, reports)
}

func (r *itemReportRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(ctx, []Report{})
}

func (r *itemReportRepository) load(ctx context.Context) ([]Report, error) {
	raw, ok, err := r.store.GetItem(ctx, r.key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.key, err)
	}
	if !ok || raw == "" {
		return []Report{}, nil
	}
	reports, err := decodeReports(raw)
	if err != nil {
		if r.log != nil {
			r.log.Debug("stored reports unreadable, treating as empty", "key", r.key, "err", err)
		}
		return []Report{}, nil
	}
	return reports, nil
}

func (r *itemReportRepository) save(ctx context.Context, reports []Report) error {
	encoded, err := encodeReports(reports)
	if err != nil {
		return err
	}
	if err := r.store.SetItem(ctx, r.key, encoded); err != nil {
		return fmt.Errorf("write %s: %w", r.key, err)
	}
	return nil
}

func decodeReports(raw string) ([]Report, error) {
	var reports []Report
	if err := json.Unmarshal([]byte(raw), &reports); err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []Report{}
	}
	return reports, nil
}

func encodeReports(reports []Report) (string, error) {
	if reports == nil {
		reports = []Report{}
	}
	encoded, err := json.Marshal(reports)
	if err != nil {
		return "", fmt.Errorf("encode reports: %w", err)
	}
	return string(encoded), nil
}

func indexOfReport(reports []Report, id string) int {
	for idx, report := range reports {
		if report.ID == id {
			return idx
		}
	}
	return -1
}

// seedIfEmpty stores the sample reports when the repository holds none.
func seedIfEmpty(ctx context.Context, repo ReportRepository, now time.Time, newID func() string) (bool, error) {
	existing, err := repo.Load(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}
	if err := repo.Save(ctx, sampleReports(now, newID)); err != nil {
		return false, err
	}
	return true, nil
}

type memoryItemStore struct {
	mu    sync.RWMutex
	items map[string]string
}

func newMemoryItemStore() *memoryItemStore {
	return &memoryItemStore{items: make(map[string]string)}
}

func (s *memoryItemStore) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[key]
	return value, ok, nil
}

func (s *memoryItemStore) SetItem(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

func openReportRepository(ctx context.Context, cfg *Config, logger *slog.Logger) (ReportRepository, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreBackend {
	case storeBackendMemory:
		return newItemReportRepository(newMemoryItemStore(), cfg.StorageKey, logger), noop, nil
	case storeBackendSQLite:
		store, err := openSQLiteItemStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return newItemReportRepository(store, cfg.StorageKey, logger), store.Close, nil
	case storeBackendRedis:
		store := newRedisItemStore(cfg.RedisAddr, cfg.RedisDB)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return newItemReportRepository(store, cfg.StorageKey, logger), store.Close, nil
	case storeBackendPostgres:
		repo, err := openPostgresReportRepository(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
