package goCreds

import (
	"context"
	"fmt"
)

// Create adds a user and persists it.
//
// The password is hashed from Password unless Password is empty or
// GenerateCredentials is set, in which case a temporary password is generated
// and returned once in the result. TOTP is enrolled when TOTPSecret is given or
// GenerateCredentials is set; the enrollment URI and artifact are returned but
// not stored. FirstLogin defaults to true exactly when no Password was given.
//
// Create fails with ErrDuplicateUsername, ErrConfigurationMissing,
// ErrInvalidUserInput or ErrPersistenceFailure. On ErrPersistenceFailure the
// user exists in memory but not on disk, and the result is still returned so
// the one-time credentials are not lost.
func (s *Store) Create(ctx context.Context, in CreateUserInput) (*CreateUserResult, error) {
	if err := validate.Struct(in); err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidUserInput, err)
		s.emitAudit(ctx, auditEventUserCreateFailure, false, "", err, nil)
		return nil, err
	}
	if err := validateExtra(in.Extra); err != nil {
		s.emitAudit(ctx, auditEventUserCreateFailure, false, "", err, nil)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(ctx)

	if s.usernameTakenLocked(in.Username, "") {
		s.metrics.Inc(MetricUserCreateDuplicate)
		s.emitAudit(ctx, auditEventUserCreateDuplicate, false, "", ErrDuplicateUsername, func() map[string]string {
			return map[string]string{
				"username": in.Username,
			}
		})
		return nil, ErrDuplicateUsername
	}

	result := &CreateUserResult{}

	plaintext := in.Password
	if plaintext == "" || in.GenerateCredentials {
		generate, err := s.cfg.TempPasswordGenerator()
		if err != nil {
			s.emitAudit(ctx, auditEventUserCreateFailure, false, "", err, nil)
			return nil, err
		}
		temp, err := generate(TempPasswordLength)
		if err != nil {
			return nil, fmt.Errorf("generate temporary password: %w", err)
		}
		plaintext = temp
		result.TempPassword = temp
	}

	hash, err := s.cfg.Hash()(plaintext, s.cfg.HashCost())
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	secret := in.TOTPSecret
	if secret == "" && in.GenerateCredentials {
		generate, err := s.cfg.SecretGenerator()
		if err != nil {
			s.emitAudit(ctx, auditEventUserCreateFailure, false, "", err, nil)
			return nil, err
		}
		if secret, err = generate(); err != nil {
			return nil, fmt.Errorf("generate totp secret: %w", err)
		}
	}
	if secret != "" {
		uri, artifact, err := s.enrollmentLocked(secret, in.Username)
		if err != nil {
			s.emitAudit(ctx, auditEventUserCreateFailure, false, "", err, nil)
			return nil, err
		}
		result.EnrollmentURI = uri
		result.EnrollmentArtifact = artifact
	}

	firstLogin := in.Password == ""
	if in.FirstLogin != nil {
		firstLogin = *in.FirstLogin
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	displayName := in.DisplayName
	if displayName == "" {
		displayName = in.Username
	}

	now := s.now()
	rec := UserRecord{
		ID:           s.cfg.GenerateID()(),
		Username:     in.Username,
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     active,
		CreatedAt:    now,
		UpdatedAt:    now,
		FirstLogin:   firstLogin,
	}
	if in.Handle != nil {
		h := *in.Handle
		rec.Handle = &h
	}
	if secret != "" {
		rec.TOTPSecret = &secret
		rec.TOTPEnabled = true
	}
	if extra := passThrough(in.Extra); len(extra) > 0 {
		rec.Extra = extra
	}

	s.insertLocked(rec)
	result.User = rec.redacted()

	if err := s.persist(ctx); err != nil {
		s.emitAudit(ctx, auditEventUserCreateFailure, false, rec.ID, err, nil)
		return result, err
	}

	s.metrics.Inc(MetricUserCreated)
	s.emitAudit(ctx, auditEventUserCreated, true, rec.ID, nil, func() map[string]string {
		return map[string]string{
			"username":      rec.Username,
			"role":          rec.Role,
			"temp_password": fmt.Sprint(result.TempPassword != ""),
			"totp":          fmt.Sprint(rec.TOTPEnabled),
		}
	})
	return result, nil
}

// enrollmentLocked derives the enrollment URI and artifact for secret.
func (s *Store) enrollmentLocked(secret, account string) (string, string, error) {
	uriFn, err := s.cfg.URIGenerator()
	if err != nil {
		return "", "", err
	}
	artifactFn, err := s.cfg.ArtifactGenerator()
	if err != nil {
		return "", "", err
	}

	uri, err := uriFn(secret, s.cfg.Issuer(), account)
	if err != nil {
		return "", "", fmt.Errorf("generate enrollment uri: %w", err)
	}
	artifact, err := artifactFn(uri)
	if err != nil {
		return "", "", fmt.Errorf("generate enrollment artifact: %w", err)
	}
	return uri, artifact, nil
}

// Update merges patch over the record with id and persists it.
// It reports false when no such record exists. A username change re-checks
// uniqueness and fails with ErrDuplicateUsername on collision.
func (s *Store) Update(ctx context.Context, id string, patch UserPatch) (UserRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(ctx)

	rec, ok := s.records[id]
	if !ok {
		return UserRecord{}, false, nil
	}
	if err := validateExtra(patch.Extra); err != nil {
		return UserRecord{}, true, err
	}

	if patch.Username != nil && *patch.Username != rec.Username {
		if *patch.Username == "" {
			return UserRecord{}, true, fmt.Errorf("%w: empty username", ErrInvalidUserInput)
		}
		if s.usernameTakenLocked(*patch.Username, id) {
			s.metrics.Inc(MetricUserCreateDuplicate)
			s.emitAudit(ctx, auditEventUserUpdated, false, id, ErrDuplicateUsername, nil)
			return UserRecord{}, true, ErrDuplicateUsername
		}
	}

	patch.apply(rec)
	rec.UpdatedAt = s.now()
	rec.settle(fieldUpdatedAt)

	if err := s.persist(ctx); err != nil {
		s.emitAudit(ctx, auditEventUserUpdated, false, id, err, nil)
		return UserRecord{}, true, err
	}

	s.metrics.Inc(MetricUserUpdated)
	s.emitAudit(ctx, auditEventUserUpdated, true, id, nil, nil)
	return rec.redacted(), true, nil
}

// ToggleActive flips isActive on the record with id and persists it.
// A record loaded without isActive reads as inactive, so its first toggle activates it.
func (s *Store) ToggleActive(ctx context.Context, id string) (UserRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(ctx)

	rec, ok := s.records[id]
	if !ok {
		return UserRecord{}, false, nil
	}

	rec.IsActive = !rec.IsActive
	rec.UpdatedAt = s.now()
	rec.settle(fieldIsActive, fieldUpdatedAt)

	if err := s.persist(ctx); err != nil {
		s.emitAudit(ctx, auditEventUserToggled, false, id, err, nil)
		return UserRecord{}, true, err
	}

	s.metrics.Inc(MetricUserToggled)
	s.emitAudit(ctx, auditEventUserToggled, true, id, nil, func() map[string]string {
		return map[string]string{
			"active": fmt.Sprint(rec.IsActive),
		}
	})
	return rec.redacted(), true, nil
}

// Delete permanently removes the record with id. It reports false, without
// writing, when no such record exists.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(ctx)

	if !s.removeLocked(id) {
		return false, nil
	}

	if err := s.persist(ctx); err != nil {
		s.emitAudit(ctx, auditEventUserDeleted, false, id, err, nil)
		return true, err
	}

	s.metrics.Inc(MetricUserDeleted)
	s.emitAudit(ctx, auditEventUserDeleted, true, id, nil, nil)
	return true, nil
}
