package goCreds

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// VerifyPassword checks plaintext against the record whose handle matches.
//
// It reports false when the handle is unknown, the record is inactive, no
// password is stored, or the password does not match; callers cannot tell
// these apart and none of them changes state. On a match lastLogin is set and
// persisted, and the record is returned without its password hash. The only
// error is ErrPersistenceFailure from recording lastLogin.
func (s *Store) VerifyPassword(ctx context.Context, handle, plaintext string) (UserRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(ctx)

	rec := s.findByHandleLocked(handle)
	if rec == nil || !rec.IsActive || !rec.HasPassword() {
		s.rejectVerificationLocked(ctx, rec)
		return UserRecord{}, false, nil
	}

	ok, err := s.cfg.Compare()(plaintext, rec.PasswordHash)
	if err != nil {
		s.cfg.Logger().Debug("password comparison failed", zap.String("user_id", rec.ID), zap.Error(err))
		ok = false
	}
	if !ok {
		s.rejectVerificationLocked(ctx, rec)
		return UserRecord{}, false, nil
	}

	now := s.now()
	rec.LastLogin = &now
	rec.settle(fieldLastLogin)

	if err := s.persist(ctx); err != nil {
		s.emitAudit(ctx, auditEventPasswordVerified, false, rec.ID, err, nil)
		return UserRecord{}, false, err
	}

	s.metrics.Inc(MetricPasswordVerifySuccess)
	s.emitAudit(ctx, auditEventPasswordVerified, true, rec.ID, nil, nil)
	return rec.redacted(), true, nil
}

func (s *Store) rejectVerificationLocked(ctx context.Context, rec *UserRecord) {
	s.metrics.Inc(MetricPasswordVerifyFailure)
	userID := ""
	if rec != nil {
		userID = rec.ID
	}
	s.emitAudit(ctx, auditEventPasswordVerifyFailed, false, userID, errAuditInvalidCredentials, nil)
}

// UpdatePassword hashes newPlaintext, stores it on the record with id and
// persists. It reports false when no such record exists. An empty password is
// rejected with ErrInvalidUserInput.
func (s *Store) UpdatePassword(ctx context.Context, id, newPlaintext string) (bool, error) {
	if newPlaintext == "" {
		return false, fmt.Errorf("%w: empty password", ErrInvalidUserInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(ctx)

	rec, ok := s.records[id]
	if !ok {
		return false, nil
	}

	hash, err := s.cfg.Hash()(newPlaintext, s.cfg.HashCost())
	if err != nil {
		return true, fmt.Errorf("hash password: %w", err)
	}

	rec.PasswordHash = hash
	rec.UpdatedAt = s.now()
	rec.settle(fieldPassword, fieldUpdatedAt)

	if err := s.persist(ctx); err != nil {
		s.emitAudit(ctx, auditEventPasswordUpdated, false, id, err, nil)
		return true, err
	}

	s.metrics.Inc(MetricPasswordUpdated)
	s.emitAudit(ctx, auditEventPasswordUpdated, true, id, nil, nil)
	return true, nil
}
