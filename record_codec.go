package goCreds

import (
	"bytes"
	"encoding/json"
	"errors"
)

const (
	fieldID             = "id"
	fieldUsername       = "username"
	fieldHandle         = "handle"
	fieldDisplayName    = "displayName"
	fieldPassword       = "password"
	fieldRole           = "role"
	fieldIsActive       = "isActive"
	fieldCreatedAt      = "createdAt"
	fieldUpdatedAt      = "updatedAt"
	fieldLastLogin      = "lastLogin"
	fieldTOTPSecret     = "totpSecret"
	fieldTOTPEnabled    = "totpEnabled"
	fieldFirstLogin     = "firstLogin"
	legacyPasswordField = "passwordHash"
	legacyActiveField   = "active"
)

// reservedFields are never carried as pass-through attributes.
var reservedFields = map[string]struct{}{
	fieldID:             {},
	fieldUsername:       {},
	fieldHandle:         {},
	fieldDisplayName:    {},
	fieldPassword:       {},
	fieldRole:           {},
	fieldIsActive:       {},
	fieldCreatedAt:      {},
	fieldUpdatedAt:      {},
	fieldLastLogin:      {},
	fieldTOTPSecret:     {},
	fieldTOTPEnabled:    {},
	fieldFirstLogin:     {},
	legacyPasswordField: {},
	legacyActiveField:   {},
}

var errMalformedDocument = errors.New("user document must be an array or an object")

func passThrough(in map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		if _, reserved := reservedFields[k]; reserved {
			continue
		}
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

func isJSONNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// normalizeLegacyFields copies legacy attribute names onto their canonical
// names when the canonical one is absent. Canonical values always win.
func normalizeLegacyFields(raw map[string]json.RawMessage) {
	if v, ok := raw[legacyPasswordField]; ok {
		if _, has := raw[fieldPassword]; !has {
			raw[fieldPassword] = v
		}
	}
	if v, ok := raw[legacyActiveField]; ok {
		if _, has := raw[fieldIsActive]; !has {
			raw[fieldIsActive] = v
		}
	}
}

// MarshalJSON writes known attributes and pass-through attributes as one object.
// An empty password hash is omitted.
func (u UserRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(u.Extra)+13)
	for k, v := range u.Extra {
		if _, reserved := reservedFields[k]; reserved {
			continue
		}
		out[k] = v
	}

	out[fieldID] = u.ID
	out[fieldUsername] = u.Username
	if u.Handle != nil {
		out[fieldHandle] = *u.Handle
	}
	out[fieldDisplayName] = u.DisplayName
	if u.PasswordHash != "" {
		out[fieldPassword] = u.PasswordHash
	}
	out[fieldRole] = u.Role
	out[fieldIsActive] = u.IsActive
	out[fieldCreatedAt] = u.CreatedAt
	out[fieldUpdatedAt] = u.UpdatedAt
	out[fieldLastLogin] = u.LastLogin
	out[fieldTOTPSecret] = u.TOTPSecret
	out[fieldTOTPEnabled] = u.TOTPSecret != nil
	out[fieldFirstLogin] = u.FirstLogin
	for k, v := range u.malformed {
		out[k] = v
	}

	return json.Marshal(out)
}

// UnmarshalJSON reads a record, applying legacy-name compatibility and
// restoring totpEnabled from the presence of a secret. A known attribute
// holding a value of the wrong type is left at its zero value and its raw
// value is kept for the next write.
func (u *UserRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	normalizeLegacyFields(raw)

	var rec UserRecord
	fields := []struct {
		key string
		dst any
	}{
		{fieldID, &rec.ID},
		{fieldUsername, &rec.Username},
		{fieldHandle, &rec.Handle},
		{fieldDisplayName, &rec.DisplayName},
		{fieldPassword, &rec.PasswordHash},
		{fieldRole, &rec.Role},
		{fieldIsActive, &rec.IsActive},
		{fieldCreatedAt, &rec.CreatedAt},
		{fieldUpdatedAt, &rec.UpdatedAt},
		{fieldLastLogin, &rec.LastLogin},
		{fieldTOTPSecret, &rec.TOTPSecret},
		{fieldFirstLogin, &rec.FirstLogin},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok || isJSONNull(v) {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			if rec.malformed == nil {
				rec.malformed = make(map[string]json.RawMessage)
			}
			rec.malformed[f.key] = append(json.RawMessage(nil), v...)
		}
	}

	if rec.TOTPSecret != nil && *rec.TOTPSecret == "" {
		rec.TOTPSecret = nil
	}
	rec.TOTPEnabled = rec.TOTPSecret != nil

	if extra := passThrough(raw); len(extra) > 0 {
		rec.Extra = extra
	}

	*u = rec
	return nil
}

type userDocument struct {
	Users []UserRecord `json:"users"`
}

// decodeDocument parses file content holding either a bare array of records
// or an object with a "users" array. An object without "users" holds no
// records; blank content holds no records.
func decodeDocument(data []byte) ([]UserRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var entries []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
	case '{':
		var doc struct {
			Users []json.RawMessage `json:"users"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
		entries = doc.Users
	default:
		return nil, errMalformedDocument
	}

	// An entry that is not an object decodes to a record without id and is
	// skipped by the store.
	users := make([]UserRecord, len(entries))
	for i, entry := range entries {
		_ = users[i].UnmarshalJSON(entry)
	}
	return users, nil
}

// encodeDocument renders records as an indented {"users": [...]} document.
func encodeDocument(records []UserRecord) ([]byte, error) {
	if records == nil {
		records = []UserRecord{}
	}
	data, err := json.MarshalIndent(userDocument{Users: records}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
