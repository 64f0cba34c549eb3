package goCreds

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// GetTOTPSecret returns the TOTP secret of the record with id. It reports
// false when the record does not exist or is not enrolled.
func (s *Store) GetTOTPSecret(ctx context.Context, id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(ctx)

	rec, ok := s.records[id]
	if !ok || rec.TOTPSecret == nil {
		return "", false
	}
	return *rec.TOTPSecret, true
}

// EnableTOTP stores secret on the record with id, marks TOTP enabled and
// clears the first-login requirement. It reports false when no such record exists.
func (s *Store) EnableTOTP(ctx context.Context, id, secret string) (bool, error) {
	if secret == "" {
		return false, fmt.Errorf("%w: empty totp secret", ErrInvalidUserInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(ctx)

	rec, ok := s.records[id]
	if !ok {
		return false, nil
	}

	rec.TOTPSecret = &secret
	rec.TOTPEnabled = true
	rec.FirstLogin = false
	rec.UpdatedAt = s.now()
	rec.settle(fieldTOTPSecret, fieldFirstLogin, fieldUpdatedAt)

	if err := s.persist(ctx); err != nil {
		s.emitAudit(ctx, auditEventTOTPEnabled, false, id, err, nil)
		return true, err
	}

	s.metrics.Inc(MetricTOTPEnabled)
	s.emitAudit(ctx, auditEventTOTPEnabled, true, id, nil, nil)
	return true, nil
}

// DisableTOTP clears the TOTP secret of the record with id. It reports false
// when no such record exists.
func (s *Store) DisableTOTP(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(ctx)

	rec, ok := s.records[id]
	if !ok {
		return false, nil
	}

	rec.TOTPSecret = nil
	rec.TOTPEnabled = false
	rec.UpdatedAt = s.now()
	rec.settle(fieldTOTPSecret, fieldUpdatedAt)

	if err := s.persist(ctx); err != nil {
		s.emitAudit(ctx, auditEventTOTPDisabled, false, id, err, nil)
		return true, err
	}

	s.metrics.Inc(MetricTOTPDisabled)
	s.emitAudit(ctx, auditEventTOTPDisabled, true, id, nil, nil)
	return true, nil
}

// NeedsFirstLoginSetup reports the firstLogin flag of the record with id.
// A missing record needs no setup.
func (s *Store) NeedsFirstLoginSetup(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(ctx)

	rec, ok := s.records[id]
	return ok && rec.FirstLogin
}

// VerifyTOTPCode checks code against the enrolled secret of the record with
// id using the configured verifier. Missing, inactive or unenrolled records
// report false. No state changes. It fails only with ErrConfigurationMissing.
func (s *Store) VerifyTOTPCode(ctx context.Context, id, code string) (bool, error) {
	verify, err := s.cfg.CodeVerifier()
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(ctx)

	rec, ok := s.records[id]
	if !ok || !rec.IsActive || rec.TOTPSecret == nil {
		s.metrics.Inc(MetricTOTPCodeFailure)
		s.emitAudit(ctx, auditEventTOTPCodeFailed, false, id, errAuditInvalidCredentials, nil)
		return false, nil
	}

	valid, err := verify(*rec.TOTPSecret, code, s.now())
	if err != nil {
		s.cfg.Logger().Debug("totp verification failed", zap.String("user_id", id), zap.Error(err))
		valid = false
	}
	if !valid {
		s.metrics.Inc(MetricTOTPCodeFailure)
		s.emitAudit(ctx, auditEventTOTPCodeFailed, false, id, errAuditInvalidCredentials, nil)
		return false, nil
	}

	s.metrics.Inc(MetricTOTPCodeSuccess)
	s.emitAudit(ctx, auditEventTOTPCodeVerified, true, id, nil, nil)
	return true, nil
}
