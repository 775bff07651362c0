package auth

import (
	"fmt"
	"time"
)

// Service turns raw tokens into verified, non-expired principals by composing
// the two store lookups.
type Service struct {
	store   SessionStore
	nowFunc func() time.Time
}

func NewService(store SessionStore) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	return &Service{store: store, nowFunc: time.Now}, nil
}

// ValidateSession looks up the session for token, checks expiry, and returns
// the referenced user. Unknown tokens, expired sessions, and sessions whose
// user no longer exists all return (nil, nil); callers cannot distinguish
// them. A non-nil error means the store failed, not that the token was bad.
func (s *Service) ValidateSession(token string) (*User, error) {
	if token == "" {
		return nil, nil
	}

	row, err := s.store.LookupSession(token)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	exp, err := normalizeExpiry(row.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("session expiry: %w", err)
	}
	if !exp.After(s.nowFunc().UTC()) {
		return nil, nil
	}

	return s.store.LookupUser(row.UserID)
}

// RequirePlan reports whether the user's plan is at or above the required
// plan. Unknown plan names map to the lowest level on both sides, so an
// unknown required plan is satisfied by any user; callers must pass known
// plan names.
func RequirePlan(u *User, required string) bool {
	if u == nil {
		return false
	}
	return planLevels[u.Plan] >= planLevels[required]
}

// Layouts without a zone suffix parse as UTC, matching how the auth server
// writes naive timestamps.
var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// normalizeExpiry turns whatever the driver returned for expiresAt into a
// UTC instant.
func normalizeExpiry(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseExpiry(t)
	case []byte:
		return parseExpiry(string(t))
	}
	return time.Time{}, fmt.Errorf("unsupported expiry type %T", v)
}

func parseExpiry(s string) (time.Time, error) {
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable expiry %q", s)
}
