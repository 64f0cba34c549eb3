package goCreds

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"
)

// UserRecord is one administrative user as held by a [Store].
//
// Extra carries application-defined attributes that the store does not
// interpret; they survive load, mutate and save cycles verbatim.
type UserRecord struct {
	ID           string
	Username     string
	Handle       *string
	DisplayName  string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    *time.Time
	TOTPSecret   *string
	TOTPEnabled  bool
	FirstLogin   bool

	Extra map[string]json.RawMessage

	// malformed holds stored values of known attributes that did not decode
	// to their type. They are written back unchanged until the attribute is
	// set again.
	malformed map[string]json.RawMessage
}

// HasPassword reports whether a password hash is stored.
func (u UserRecord) HasPassword() bool {
	return u.PasswordHash != ""
}

func (u UserRecord) clone() UserRecord {
	out := u
	if u.Handle != nil {
		h := *u.Handle
		out.Handle = &h
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		out.LastLogin = &t
	}
	if u.TOTPSecret != nil {
		s := *u.TOTPSecret
		out.TOTPSecret = &s
	}
	if u.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(u.Extra))
		for k, v := range u.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	if u.malformed != nil {
		out.malformed = make(map[string]json.RawMessage, len(u.malformed))
		for k, v := range u.malformed {
			out.malformed[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// settle drops preserved raw values for attributes that now hold a typed value.
func (u *UserRecord) settle(keys ...string) {
	for _, k := range keys {
		delete(u.malformed, k)
	}
}

func (u UserRecord) malformedFields() []string {
	if len(u.malformed) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(u.malformed))
}

// redacted returns an independent copy with the password hash cleared.
func (u UserRecord) redacted() UserRecord {
	out := u.clone()
	out.PasswordHash = ""
	out.settle(fieldPassword)
	return out
}

// CreateUserInput is the input for [Store.Create].
//
// When Password is empty, or GenerateCredentials is set, a temporary password
// is generated and returned once in [CreateUserResult.TempPassword].
// GenerateCredentials also enrolls TOTP with a generated secret unless
// TOTPSecret is supplied.
type CreateUserInput struct {
	Username            string `validate:"required"`
	Handle              *string
	DisplayName         string
	Password            string
	Role                string
	TOTPSecret          string
	GenerateCredentials bool
	FirstLogin          *bool
	IsActive            *bool
	Extra               map[string]json.RawMessage
}

// CreateUserResult is returned by [Store.Create]. User never carries the
// password hash. EnrollmentURI and EnrollmentArtifact are not persisted.
type CreateUserResult struct {
	User               UserRecord
	TempPassword       string
	EnrollmentURI      string
	EnrollmentArtifact string
}

// UserPatch is a partial update for [Store.Update]. Nil fields are left as-is.
// Identifier, password hash and creation time are not part of a patch.
type UserPatch struct {
	Username    *string
	Handle      *string
	DisplayName *string
	Role        *string
	IsActive    *bool
	FirstLogin  *bool
	Extra       map[string]json.RawMessage
}

func (p UserPatch) apply(u *UserRecord) {
	if p.Username != nil {
		u.Username = *p.Username
		u.settle(fieldUsername)
	}
	if p.Handle != nil {
		h := *p.Handle
		u.Handle = &h
		u.settle(fieldHandle)
	}
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
		u.settle(fieldDisplayName)
	}
	if p.Role != nil {
		u.Role = *p.Role
		u.settle(fieldRole)
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
		u.settle(fieldIsActive)
	}
	if p.FirstLogin != nil {
		u.FirstLogin = *p.FirstLogin
		u.settle(fieldFirstLogin)
	}
	if len(p.Extra) > 0 {
		if u.Extra == nil {
			u.Extra = make(map[string]json.RawMessage, len(p.Extra))
		}
		maps.Copy(u.Extra, passThrough(p.Extra))
	}
}

// ParseUserPatch decodes a JSON object into a [UserPatch]. Attributes that
// may not change through an update (id, password, passwordHash, createdAt,
// updatedAt) are dropped silently. TOTP and login attributes are dropped as
// well because they have dedicated operations. Unknown keys become Extra.
func ParseUserPatch(data []byte) (UserPatch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return UserPatch{}, err
	}

	var (
		p   UserPatch
		err error
	)
	if p.Username, err = decodeOptional[string](raw, fieldUsername); err != nil {
		return UserPatch{}, err
	}
	if p.Handle, err = decodeOptional[string](raw, fieldHandle); err != nil {
		return UserPatch{}, err
	}
	if p.DisplayName, err = decodeOptional[string](raw, fieldDisplayName); err != nil {
		return UserPatch{}, err
	}
	if p.Role, err = decodeOptional[string](raw, fieldRole); err != nil {
		return UserPatch{}, err
	}
	if p.IsActive, err = decodeOptional[bool](raw, fieldIsActive); err != nil {
		return UserPatch{}, err
	}
	if p.FirstLogin, err = decodeOptional[bool](raw, fieldFirstLogin); err != nil {
		return UserPatch{}, err
	}

	p.Extra = passThrough(raw)
	if len(p.Extra) == 0 {
		p.Extra = nil
	}
	return p, nil
}

// validateExtra rejects pass-through values that are not well-formed JSON.
func validateExtra(extra map[string]json.RawMessage) error {
	for k, v := range extra {
		if !json.Valid(v) {
			return fmt.Errorf("%w: attribute %q is not valid JSON", ErrInvalidUserInput, k)
		}
	}
	return nil
}

func decodeOptional[T any](raw map[string]json.RawMessage, key string) (*T, error) {
	v, ok := raw[key]
	if !ok || isJSONNull(v) {
		return nil, nil
	}
	out := new(T)
	if err := json.Unmarshal(v, out); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return out, nil
}
