package contentgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"learncircle/pkg/domain"
)

// CourseRequest is the seed material for a full course.
type CourseRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Content     json.RawMessage `json:"content"`
	PDFURLs     []string        `json:"pdfUrls,omitempty"`
	VideoURLs   []string        `json:"videoUrls,omitempty"`
	Lang        string          `json:"lang,omitempty"`
}

// ChapterRequest asks for a single chapter outline.
type ChapterRequest struct {
	Title  string  `json:"title"`
	Length float64 `json:"length"`
	Lang   string  `json:"lang,omitempty"`
}

// Generator talks to the external content generation service.
type Generator interface {
	GenerateCourse(ctx context.Context, req CourseRequest) ([]domain.Chapter, error)
	GenerateChapter(ctx context.Context, req ChapterRequest) (json.RawMessage, error)
}

const maxResponseBytes = 32 << 20

// HTTPClient calls the course and chapter endpoints with JSON POSTs.
type HTTPClient struct {
	courseURL  string
	chapterURL string
	httpClient *http.Client
}

// NewHTTPClient builds a Generator. timeout bounds a single call; course
// generation can take tens of minutes.
func NewHTTPClient(courseURL, chapterURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = time.Hour
	}
	return &HTTPClient{
		courseURL:  strings.TrimSpace(courseURL),
		chapterURL: strings.TrimSpace(chapterURL),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GenerateCourse accepts either a bare chapter array or {"content": [...]}.
func (c *HTTPClient) GenerateCourse(ctx context.Context, req CourseRequest) ([]domain.Chapter, error) {
	if c.courseURL == "" {
		return nil, errors.New("course generation endpoint not configured")
	}
	body, err := c.post(ctx, c.courseURL, req)
	if err != nil {
		return nil, err
	}
	chapters, err := decodeChapters(body)
	if err != nil {
		return nil, err
	}
	if len(chapters) == 0 {
		return nil, errors.New("content generator returned no chapters")
	}
	return chapters, nil
}

// GenerateChapter returns the generator response untouched.
func (c *HTTPClient) GenerateChapter(ctx context.Context, req ChapterRequest) (json.RawMessage, error) {
	if c.chapterURL == "" {
		return nil, errors.New("chapter generation endpoint not configured")
	}
	body, err := c.post(ctx, c.chapterURL, req)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, errors.New("content generator returned invalid json")
	}
	return json.RawMessage(body), nil
}

func (c *HTTPClient) post(ctx context.Context, url string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content generator request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("content generator read: %w", err)
	}
	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(body, &errResp)
		msg := strings.TrimSpace(errResp.Message)
		if msg == "" {
			msg = strings.TrimSpace(errResp.Error)
		}
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("content generator error: %s", msg)
	}
	return body, nil
}

func decodeChapters(body []byte) ([]domain.Chapter, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var chapters []domain.Chapter
		if err := json.Unmarshal(trimmed, &chapters); err != nil {
			return nil, fmt.Errorf("content generator decode: %w", err)
		}
		return chapters, nil
	}
	var wrapped struct {
		Content []domain.Chapter `json:"content"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("content generator decode: %w", err)
	}
	return wrapped.Content, nil
}
