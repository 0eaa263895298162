//nolint:revive // exported
package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// FormField is one part of a multipart/form-data body. File parts stream
// the file at FilePath; text parts carry Value.
type FormField struct {
	Name     string
	Value    string
	IsFile   bool
	FilePath string
}

// EncodeFormData builds a multipart/form-data body from the given fields
// and returns the encoded bytes plus the Content-Type header value carrying
// the boundary.
func EncodeFormData(fields []FormField) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, field := range fields {
		if !field.IsFile {
			if err := w.WriteField(field.Name, field.Value); err != nil {
				return nil, "", fmt.Errorf("write form field %q: %w", field.Name, err)
			}
			continue
		}

		f, err := os.Open(field.FilePath)
		if err != nil {
			return nil, "", fmt.Errorf("open form file %q: %w", field.FilePath, err)
		}

		part, err := w.CreateFormFile(field.Name, filepath.Base(field.FilePath))
		if err != nil {
			f.Close() //nolint:errcheck
			return nil, "", fmt.Errorf("create form file part %q: %w", field.Name, err)
		}
		if _, err := io.Copy(part, f); err != nil {
			f.Close() //nolint:errcheck
			return nil, "", fmt.Errorf("copy form file %q: %w", field.FilePath, err)
		}
		if err := f.Close(); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
