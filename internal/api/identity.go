package api

import (
	"encoding/json"
	"fmt"
)

// Identity is the canonical shape of an authenticated user, normalized from
// the heterogeneous payloads the remote service may return.
type Identity struct {
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresAt    int64  `json:"expiresAt,omitempty"`
}

// Name returns the best display name we have for this identity.
func (i *Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	for j := 0; j < len(i.Email); j++ {
		if i.Email[j] == '@' {
			return i.Email[:j]
		}
	}
	return i.Email
}

// NormalizeIdentity canonicalizes a raw identity payload. Backends disagree
// on field names and some nest the identity under a "user" wrapper key.
// Returns false unless both a stable identifier and an email resolve.
func NormalizeIdentity(payload map[string]json.RawMessage) (*Identity, bool) {
	if payload == nil {
		return nil, false
	}

	inner := payload
	if wrapped, ok := payload["user"]; ok {
		nested := map[string]json.RawMessage{}
		if err := json.Unmarshal(wrapped, &nested); err != nil || nested == nil {
			return nil, false
		}
		inner = nested
	}

	userID := firstString(inner, "userId", "user_id", "id", "uid", "sub")
	email := firstString(inner, "email")
	if userID == "" || email == "" {
		return nil, false
	}

	identity := &Identity{
		UserID:      userID,
		Email:       email,
		DisplayName: firstString(inner, "displayName", "display_name", "display", "name"),
	}
	// Tokens always live at the top level, next to the wrapper.
	identity.AccessToken = firstString(payload, "accessToken", "access_token")
	identity.RefreshToken = firstString(payload, "refreshToken", "refresh_token")
	identity.ExpiresAt = firstInt(payload, "expiresAt", "expires_at")
	return identity, true
}

// firstString returns the first of the given keys that holds a usable
// string-ish value. Numeric identifiers are stringified rather than guessed at.
func firstString(fields map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var asString string
		if err := json.Unmarshal(raw, &asString); err == nil {
			if asString != "" {
				return asString
			}
			continue
		}
		var asNumber json.Number
		if err := json.Unmarshal(raw, &asNumber); err == nil {
			return fmt.Sprint(asNumber)
		}
	}
	return ""
}

func firstInt(fields map[string]json.RawMessage, keys ...string) int64 {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var value int64
		if err := json.Unmarshal(raw, &value); err == nil {
			return value
		}
	}
	return 0
}
