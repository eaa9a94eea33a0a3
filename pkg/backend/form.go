package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
)

type formFile struct {
	field string
	name  string
	data  []byte
}

type formField struct {
	name  string
	value string
}

// newMultipartRequest builds a multipart/form-data POST with fields written
// before files, in the order given.
func newMultipartRequest(ctx context.Context, url string, fields []formField, files []formFile) (*http.Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, fmt.Errorf("writing field %s: %w", f.name, err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			return nil, fmt.Errorf("creating form file %s: %w", f.name, err)
		}
		if _, err := part.Write(f.data); err != nil {
			return nil, fmt.Errorf("writing form file %s: %w", f.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}
