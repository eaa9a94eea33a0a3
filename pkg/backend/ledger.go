package backend

import (
	"context"
	"net/http"

	"github.com/user/pixledger/internal/types"
)

// FetchChain returns every block in the order the ledger service sent them.
func (c *Client) FetchChain(ctx context.Context) ([]types.Block, error) {
	const op = "fetch chain"
	req, err := c.newJSONRequest(ctx, http.MethodGet, c.apiURL("/api/chain"), nil)
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

	var resp struct {
		Chain []types.Block `json:"chain"`
	}
	if err := decodeJSON(op, body, &resp); err != nil {
		return nil, err
	}
	return resp.Chain, nil
}

// ListModels returns every registered model. It needs no credential.
func (c *Client) ListModels(ctx context.Context) ([]types.Model, error) {
	const op = "list models"
	req, err := c.newJSONRequest(ctx, http.MethodGet, c.apiURL("/models"), nil)
	if err != nil {
		return nil, err
	}

	body, _, err := c.send(op, req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Models []types.Model `json:"models"`
	}
	if err := decodeJSON(op, body, &resp); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

type modelDetailRequest struct {
	Username  string `json:"username"`
	ModelName string `json:"model_name"`
}

// ModelDetail returns the model owned by owner named name and its sample
// images, still base64 encoded.
func (c *Client) ModelDetail(ctx context.Context, owner, name string) (*types.Model, []string, error) {
	const op = "get model detail"
	req, err := c.newJSONRequest(ctx, http.MethodPost, c.apiURL("/api/model"), modelDetailRequest{
		Username:  owner,
		ModelName: name,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := c.authorize(op, req); err != nil {
		return nil, nil, err
	}

	body, _, err := c.send(op, req)
	if err != nil {
		return nil, nil, err
	}

	var resp struct {
		Model        *types.Model `json:"model"`
		SampleImages []string     `json:"sample_images"`
	}
	if err := decodeJSON(op, body, &resp); err != nil {
		return nil, nil, err
	}
	if resp.Model == nil {
		return nil, nil, &ValidationError{Field: op + " response", Reason: "missing model"}
	}
	return resp.Model, resp.SampleImages, nil
}
