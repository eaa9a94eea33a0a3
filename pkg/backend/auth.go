package backend

import (
	"context"
	"net/http"

	"github.com/user/pixledger/internal/types"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges a username and password for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	const op = "login"
	req, err := c.newJSONRequest(ctx, http.MethodPost, c.apiURL("/auth/login"), loginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return "", err
	}

	body, _, err := c.send(op, req)
	if err != nil {
		return "", err
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(op, body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", &ValidationError{Field: "login response", Reason: "missing token"}
	}
	return resp.Token, nil
}

// Register creates an account. It does not log the user in.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	req, err := c.newJSONRequest(ctx, http.MethodPost, c.apiURL("/auth/register"), registerRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return err
	}
	_, _, err = c.send("register", req)
	return err
}

// Me returns the identity behind the current token.
func (c *Client) Me(ctx context.Context) (*types.Identity, error) {
	const op = "fetch identity"
	req, err := c.newJSONRequest(ctx, http.MethodGet, c.apiURL("/api/me"), nil)
	if err != nil {
		return nil, err
	}
	if err := c.authorize(op, req); err != nil {
		return nil, err
	}

	body, _, err := c.send(op, req)
	if err != nil {
		return nil, err
	}

	var id types.Identity
	if err := decodeJSON(op, body, &id); err != nil {
		return nil, err
	}
	return &id, nil
}
