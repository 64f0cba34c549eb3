package goCreds

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store owns the mapping from user id to [UserRecord], kept in step with one
// backing file.
//
// Every public operation reloads the file before touching records and every
// mutation rewrites the whole file before returning. Operations on a single
// Store are serialized. Separate Stores, or separate processes, sharing a file
// are not coordinated: the last one to write wins.
//
// Records handed to callers are independent copies; only [Store.GetByID]
// returns the password hash.
type Store struct {
	cfg     *Config
	metrics *Metrics
	now     func() time.Time

	mu      sync.Mutex
	records map[string]*UserRecord
	order   []string
}

// NewStore returns a Store using cfg. The file is not read until the first operation.
func NewStore(cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		cfg:     cfg,
		metrics: NewMetrics(cfg.metricsConfig()),
		now:     func() time.Time { return time.Now().UTC() },
		records: make(map[string]*UserRecord),
	}, nil
}

// Config returns the configuration the Store reads on every operation.
func (s *Store) Config() *Config {
	return s.cfg
}

// MetricsSnapshot returns the current Store metrics.
func (s *Store) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// load replaces the in-memory mapping with the file content. Read or parse
// failures never surface; the store falls back to empty.
func (s *Store) load(ctx context.Context) {
	path := s.cfg.FilePath()
	logger := s.cfg.Logger()

	data, err := s.cfg.ReadFile()(ctx, path)
	if err != nil {
		s.metrics.Inc(MetricLoadFailure)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("user file not found, starting empty", zap.String("path", path))
		} else {
			logger.Warn("user file read failed, starting empty", zap.String("path", path), zap.Error(err))
		}
		s.replaceLocked(nil)
		return
	}

	records, err := decodeDocument(data)
	if err != nil {
		s.metrics.Inc(MetricLoadFailure)
		logger.Warn("user file malformed, starting empty", zap.String("path", path), zap.Error(err))
		s.replaceLocked(nil)
		return
	}

	for _, rec := range records {
		for _, field := range rec.malformedFields() {
			logger.Warn("user field has unexpected type, keeping stored value",
				zap.String("id", rec.ID), zap.String("field", field))
		}
	}

	s.replaceLocked(records)
	s.metrics.Inc(MetricLoadSuccess)
}

func (s *Store) replaceLocked(records []UserRecord) {
	s.records = make(map[string]*UserRecord, len(records))
	s.order = make([]string, 0, len(records))

	for i := range records {
		rec := records[i]
		if rec.ID == "" {
			s.cfg.Logger().Warn("skipping user without id", zap.Int("index", i))
			continue
		}
		if _, seen := s.records[rec.ID]; !seen {
			s.order = append(s.order, rec.ID)
		}
		s.records[rec.ID] = &rec
	}
}

// persist writes every record, in insertion order, to the backing file.
// On failure the in-memory mapping keeps the mutation.
func (s *Store) persist(ctx context.Context) error {
	data, err := encodeDocument(s.snapshotLocked())
	if err != nil {
		s.metrics.Inc(MetricPersistFailure)
		return errors.Join(ErrPersistenceFailure, err)
	}

	path := s.cfg.FilePath()
	start := time.Now()
	if err := s.cfg.WriteFile()(ctx, path, data); err != nil {
		s.metrics.Inc(MetricPersistFailure)
		s.cfg.Logger().Error("user file write failed", zap.String("path", path), zap.Error(err))
		return errors.Join(ErrPersistenceFailure, err)
	}

	s.metrics.Inc(MetricPersistSuccess)
	s.metrics.Observe(MetricPersistLatency, time.Since(start))
	return nil
}

func (s *Store) snapshotLocked() []UserRecord {
	out := make([]UserRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.records[id])
	}
	return out
}

func (s *Store) insertLocked(rec UserRecord) {
	if _, exists := s.records[rec.ID]; !exists {
		s.order = append(s.order, rec.ID)
	}
	s.records[rec.ID] = &rec
}

func (s *Store) removeLocked(id string) bool {
	if _, exists := s.records[id]; !exists {
		return false
	}
	delete(s.records, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Store) usernameTakenLocked(username, exceptID string) bool {
	for _, rec := range s.records {
		if rec.ID != exceptID && rec.Username == username {
			return true
		}
	}
	return false
}

// findByHandleLocked returns the first record, in insertion order, whose
// handle is present and equal to handle.
func (s *Store) findByHandleLocked(handle string) *UserRecord {
	for _, id := range s.order {
		rec := s.records[id]
		if rec.Handle != nil && *rec.Handle == handle {
			return rec
		}
	}
	return nil
}

// List returns every record in insertion order without password hashes.
func (s *Store) List(ctx context.Context) []UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(ctx)

	out := make([]UserRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].redacted())
	}
	return out
}

// GetByID returns the unredacted record with id. The password hash is
// retained; callers must not hand this record to untrusted code.
func (s *Store) GetByID(ctx context.Context, id string) (UserRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(ctx)

	rec, ok := s.records[id]
	if !ok {
		return UserRecord{}, false
	}
	return rec.clone(), true
}

// GetByHandle returns the first record whose handle equals handle, without
// its password hash. Records without a handle never match.
func (s *Store) GetByHandle(ctx context.Context, handle string) (UserRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(ctx)

	rec := s.findByHandleLocked(handle)
	if rec == nil {
		return UserRecord{}, false
	}
	return rec.redacted(), true
}

// Backup writes the current user document to path with the configured writer.
func (s *Store) Backup(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty backup path", ErrInvalidUserInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(ctx)

	data, err := encodeDocument(s.snapshotLocked())
	if err != nil {
		return errors.Join(ErrPersistenceFailure, err)
	}
	if err := s.cfg.WriteFile()(ctx, path, data); err != nil {
		s.cfg.Logger().Error("user backup write failed", zap.String("path", path), zap.Error(err))
		s.emitAudit(ctx, auditEventBackupWritten, false, "", errors.Join(ErrPersistenceFailure, err), nil)
		return errors.Join(ErrPersistenceFailure, err)
	}

	s.emitAudit(ctx, auditEventBackupWritten, true, "", nil, func() map[string]string {
		return map[string]string{
			"users": fmt.Sprint(len(s.order)),
		}
	})
	return nil
}
