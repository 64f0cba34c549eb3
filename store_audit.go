package goCreds

import (
	"context"
	"errors"
)

const (
	auditEventUserCreated          = "user_created"
	auditEventUserCreateDuplicate  = "user_create_duplicate"
	auditEventUserCreateFailure    = "user_create_failure"
	auditEventUserUpdated          = "user_updated"
	auditEventUserDeleted          = "user_deleted"
	auditEventUserToggled          = "user_toggled"
	auditEventPasswordVerified     = "password_verified"
	auditEventPasswordVerifyFailed = "password_verify_failed"
	auditEventPasswordUpdated      = "password_updated"
	auditEventTOTPEnabled          = "totp_enabled"
	auditEventTOTPDisabled         = "totp_disabled"
	auditEventTOTPCodeVerified     = "totp_code_verified"
	auditEventTOTPCodeFailed       = "totp_code_failed"
	auditEventBackupWritten        = "backup_written"
)

// AuditErrorCode is the stable error label attached to failed audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrPersistence        AuditErrorCode = "persistence_failure"
	auditErrConfiguration      AuditErrorCode = "configuration_missing"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrInternal           AuditErrorCode = "internal_error"
)

var errAuditInvalidCredentials = errors.New("invalid credentials")

func (s *Store) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	sink := s.cfg.AuditSink()
	if _, noop := sink.(NoOpSink); noop {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: s.now(),
		EventType: eventType,
		UserID:    userID,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	sink.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, errAuditInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrDuplicateUsername):
		return auditErrDuplicate
	case errors.Is(err, ErrPersistenceFailure):
		return auditErrPersistence
	case errors.Is(err, ErrConfigurationMissing):
		return auditErrConfiguration
	case errors.Is(err, ErrInvalidUserInput):
		return auditErrInvalidInput
	default:
		return auditErrInternal
	}
}
