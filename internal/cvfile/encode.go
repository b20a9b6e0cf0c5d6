package cvfile

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// Encode returns the standard base64 encoding of the file content,
// suitable for embedding into a JSON request body.
func Encode(ctx context.Context, f *File) (string, error) {
	r, err := f.Open()
	if err != nil {
		return "", err
	}
	defer r.Close()

	var out strings.Builder
	if f.Size > 0 {
		out.Grow(base64.StdEncoding.EncodedLen(int(f.Size)))
	}

	enc := base64.NewEncoder(base64.StdEncoding, &out)
	if _, err := io.Copy(enc, &ctxReader{ctx: ctx, r: r}); err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrUnreadable, f.Name, err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding %q: %w", f.Name, err)
	}

	return out.String(), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
