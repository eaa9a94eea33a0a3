package backend

import (
	"context"
	"mime"
	"net/http"
	"strconv"

	"github.com/user/pixledger/internal/types"
)

// Generate asks the generator service for one new image from the model. The
// service samples independently on every call. withBlockHash adds the
// "/owner/name" block_hash field some deployments expect.
func (c *Client) Generate(ctx context.Context, ref types.ModelRef, withBlockHash bool) ([]byte, string, error) {
	const op = "generate"
	fields := []formField{
		{name: "username", value: ref.Owner},
		{name: "model_name", value: ref.Name},
	}
	if withBlockHash {
		fields = append(fields, formField{name: "block_hash", value: ref.BlockHash()})
	}

	req, err := newMultipartRequest(ctx, c.generatorURL("/generate"), fields, nil)
	if err != nil {
		return nil, "", err
	}

	body, header, err := c.send(op, req)
	if err != nil {
		return nil, "", err
	}
	if len(body) == 0 {
		return nil, "", &ValidationError{Field: op + " response", Reason: "empty image"}
	}
	return body, imageType(header.Get("Content-Type"), body), nil
}

// CheckImage asks the ledger whether the image was part of any training
// transaction.
func (c *Client) CheckImage(ctx context.Context, image []byte, filename string) (*types.CheckResult, error) {
	const op = "check image"
	req, err := newMultipartRequest(ctx, c.apiURL("/api/check-image"), nil, []formFile{
		{field: "image", name: filename, data: image},
	})
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

	var result types.CheckResult
	if err := decodeJSON(op, body, &result); err != nil {
		return nil, err
	}
	if result.Matches == nil {
		result.Matches = []types.Match{}
	}
	return &result, nil
}

// ExtractBlockHash asks the generator service which model produced the
// image. The raw "/owner/name" path is returned unparsed.
func (c *Client) ExtractBlockHash(ctx context.Context, image []byte, filename string) (string, error) {
	const op = "extract model reference"
	req, err := newMultipartRequest(ctx, c.generatorURL("/extract"), nil, []formFile{
		{field: "image", name: filename, data: image},
	})
	if err != nil {
		return "", err
	}
	if err := c.authorize(op, req); err != nil {
		return "", err
	}

	body, _, err := c.send(op, req)
	if err != nil {
		return "", err
	}

	var resp struct {
		BlockHash string `json:"block_hash"`
	}
	if err := decodeJSON(op, body, &resp); err != nil {
		return "", err
	}
	return resp.BlockHash, nil
}

// Mine submits a training job. The ledger records it as a new block.
func (c *Client) Mine(ctx context.Context, modelName string, epochs int, images []types.NamedImage) (*types.MineReceipt, error) {
	const op = "train model"
	files := make([]formFile, len(images))
	for i, img := range images {
		files[i] = formFile{field: "images", name: img.Name, data: img.Data}
	}

	req, err := newMultipartRequest(ctx, c.apiURL("/api/mine"), []formField{
		{name: "epochs", value: strconv.Itoa(epochs)},
		{name: "model_name", value: modelName},
	}, files)
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

	var receipt types.MineReceipt
	if err := decodeJSON(op, body, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// imageType prefers the declared media type and falls back to sniffing.
func imageType(contentType string, body []byte) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "application/octet-stream" {
		return mt
	}
	return http.DetectContentType(body)
}
