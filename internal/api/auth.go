package api

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// SignupParams for the signup endpoint.
type SignupParams struct {
	Email       string
	Password    string
	DisplayName string
}

// FetchIdentity asks the remote service who we are. Returns (nil, nil) when
// the service answers but the payload carries no identity.
func (c *Client) FetchIdentity(ctx context.Context) (*Identity, error) {
	payload := map[string]json.RawMessage{}
	if err := c.get(ctx, c.authHost+"/api/auth/session", &payload); err != nil {
		return nil, errors.Wrap(err, "fetching identity")
	}
	identity, ok := NormalizeIdentity(payload)
	if !ok {
		return nil, nil
	}
	return identity, nil
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*Identity, error) {
	body := map[string]string{"email": email, "password": password}
	payload := map[string]json.RawMessage{}
	if err := c.post(ctx, c.authHost+"/api/auth/login", body, &payload); err != nil {
		return nil, errors.Wrap(err, "logging in")
	}

	identity, ok := NormalizeIdentity(payload)
	if !ok {
		// Some backends return a bare acknowledgement. Ask for the identity.
		fetched, err := c.FetchIdentity(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "fetching identity after login")
		}
		identity = fetched
	}
	if identity == nil {
		return nil, errors.New("login succeeded but identity is missing")
	}
	return identity, nil
}

// Signup creates an account. Most backends do not log the user in directly,
// so we fall back to fetching the identity when the response carries none.
func (c *Client) Signup(ctx context.Context, params SignupParams) (*Identity, error) {
	body := map[string]string{"email": params.Email, "password": params.Password}
	if params.DisplayName != "" {
		// Cover the field-name conventions backends disagree on.
		body["displayName"] = params.DisplayName
		body["display_name"] = params.DisplayName
		body["name"] = params.DisplayName
		body["fullName"] = params.DisplayName
	}

	payload := map[string]json.RawMessage{}
	if err := c.post(ctx, c.authHost+"/api/auth/signup", body, &payload); err != nil {
		return nil, errors.Wrap(err, "signing up")
	}

	identity, ok := NormalizeIdentity(payload)
	if !ok {
		fetched, err := c.FetchIdentity(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "fetching identity after signup")
		}
		identity = fetched
	}
	if identity == nil {
		return nil, errors.New("signup succeeded but identity is missing")
	}
	return identity, nil
}

// Logout tells the remote service to end the session. Best-effort on the
// caller's side; an error here is routinely swallowed.
func (c *Client) Logout(ctx context.Context, userID string) error {
	body := map[string]string{}
	if userID != "" {
		body["user_id"] = userID
	}
	if err := c.post(ctx, c.authHost+"/api/auth/logout", body, nil); err != nil {
		return errors.Wrap(err, "logging out")
	}
	return nil
}
