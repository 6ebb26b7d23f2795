package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"learncircle/pkg/domain"
)

type UploadResult struct {
	URL   string `json:"url"`
	Key   string `json:"key"`
	Pages int    `json:"pages"`
}

// UploadPDF stores a creator's source PDF and returns a presigned download URL
// that can be handed to CreateCourse.
func (a *App) UploadPDF(ctx context.Context, uid string, r io.Reader) (UploadResult, error) {
	if _, err := a.requireRole(uid, domain.RoleCreator); err != nil {
		return UploadResult{}, err
	}
	if a.objects == nil {
		return UploadResult{}, errors.New("object storage not configured")
	}
	if r == nil {
		return UploadResult{}, ErrFileRequired
	}
	data, err := io.ReadAll(io.LimitReader(r, a.maxPDFBytes+1))
	if err != nil {
		return UploadResult{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return UploadResult{}, ErrFileRequired
	}
	if int64(len(data)) > a.maxPDFBytes {
		return UploadResult{}, ErrFileTooLarge
	}
	pages, err := countPDFPages(data)
	if err != nil {
		return UploadResult{}, wrapError(ErrInvalidPDF, err)
	}
	key := fmt.Sprintf("pdfs/%s/%s.pdf", uid, uuid.NewString())
	if err := a.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
		return UploadResult{}, fmt.Errorf("store pdf: %w", err)
	}
	url, err := a.objects.PresignGet(ctx, key, a.pdfURLExpiry)
	if err != nil {
		return UploadResult{}, fmt.Errorf("presign pdf: %w", err)
	}
	return UploadResult{URL: url, Key: key, Pages: pages}, nil
}

// countPDFPages parses the document trailer. The parser panics on some
// malformed inputs, so panics are reported as errors.
func countPDFPages(data []byte) (pages int, err error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return 0, errors.New("missing PDF header")
	}
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = 0, fmt.Errorf("parse pdf: %v", rec)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	pages = reader.NumPage()
	if pages <= 0 {
		return 0, errors.New("pdf has no pages")
	}
	return pages, nil
}
