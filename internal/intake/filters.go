package intake

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"github.com/spigell/talent-screener/internal/cvfile"
)

const DefaultMaxFileSize = 10 << 20

type contentTypeFilter struct {
	toggle
	allowed []string
}

// NewContentType accepts PDF files and, when allowDOCX is set, DOCX files.
func NewContentType(allowDOCX bool) Filter {
	allowed := []string{cvfile.ContentTypePDF}
	if allowDOCX {
		allowed = append(allowed, cvfile.ContentTypeDOCX)
	}
	return &contentTypeFilter{allowed: allowed}
}

func (f *contentTypeFilter) Name() string { return "content_type" }

func (f *contentTypeFilter) Apply(_ context.Context, _ Deps, files []*cvfile.File) ([]*cvfile.File, []Rejection, error) {
	kept, dropped := partition(f.Name(), files, func(file *cvfile.File) string {
		if slices.Contains(f.allowed, file.ContentType) {
			return ""
		}
		return fmt.Sprintf("unsupported content type %q", file.ContentType)
	})
	return kept, dropped, nil
}

func (f *contentTypeFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"allowed": strings.Join(f.allowed, ",")},
	}
}

type maxSizeFilter struct {
	toggle
	limit int64
}

// NewMaxSize rejects empty files and files larger than limit bytes.
func NewMaxSize(limit int64) Filter {
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	return &maxSizeFilter{limit: limit}
}

func (f *maxSizeFilter) Name() string { return "max_size" }

func (f *maxSizeFilter) Apply(_ context.Context, _ Deps, files []*cvfile.File) ([]*cvfile.File, []Rejection, error) {
	kept, dropped := partition(f.Name(), files, func(file *cvfile.File) string {
		switch {
		case file.Size == 0:
			return "file is empty"
		case file.Size > f.limit:
			return fmt.Sprintf("file is %d bytes, limit is %d", file.Size, f.limit)
		default:
			return ""
		}
	})
	return kept, dropped, nil
}

func (f *maxSizeFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"limit_bytes": strconv.FormatInt(f.limit, 10)},
	}
}

type pdfReadableFilter struct {
	toggle
}

// NewPDFReadable rejects PDF files that cannot be parsed or have no pages.
// Other content types pass through untouched.
func NewPDFReadable() Filter {
	return &pdfReadableFilter{}
}

func (f *pdfReadableFilter) Name() string { return "pdf_readable" }

func (f *pdfReadableFilter) Apply(ctx context.Context, _ Deps, files []*cvfile.File) ([]*cvfile.File, []Rejection, error) {
	kept, dropped := partition(f.Name(), files, func(file *cvfile.File) string {
		if ctx.Err() != nil || file.ContentType != cvfile.ContentTypePDF {
			return ""
		}
		if err := checkPDF(file); err != nil {
			return err.Error()
		}
		return ""
	})
	return kept, dropped, ctx.Err()
}

func checkPDF(file *cvfile.File) (err error) {
	r, err := file.Open()
	if err != nil {
		return err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading pdf: %w", err)
	}

	// the parser panics on some truncated documents
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("malformed pdf: %v", p)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("malformed pdf: %w", err)
	}
	if doc.NumPage() == 0 {
		return fmt.Errorf("pdf has no pages")
	}

	return nil
}
