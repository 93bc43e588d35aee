package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

// RemoteConverter talks to a docling-serve compatible conversion service.
// The service receives the raw file and returns markdown plus, for paged
// formats, per-page text and exported page images.
type RemoteConverter struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewRemoteConverter creates a converter client. Conversions of large PDFs
// routinely take minutes, hence the generous timeout.
func NewRemoteConverter(baseURL string, logger *slog.Logger) *RemoteConverter {
	return &RemoteConverter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Minute},
		logger:  logger,
	}
}

type convertResponse struct {
	Document struct {
		MDContent string `json:"md_content"`
		Pages     []struct {
			Page   int      `json:"page"`
			Text   string   `json:"text"`
			Images []string `json:"images"`
		} `json:"pages"`
	} `json:"document"`
	Status string `json:"status"`
	Errors []struct {
		Message string `json:"error_message"`
	} `json:"errors"`
}

// Convert uploads the file and assembles a Result from the response.
// When per-page text is available it is preferred over the flat markdown,
// so page spans can be recorded for source attribution.
func (c *RemoteConverter) Convert(ctx context.Context, filename string, data []byte) (*Result, error) {
	start := time.Now()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if err := mw.WriteField("to_formats", "md"); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if err := mw.WriteField("image_export_mode", "referenced"); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1alpha/convert/file", &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("converter request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("converter returned %d: %s", resp.StatusCode, string(msg))
	}

	var cr convertResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decode converter response: %w", err)
	}
	if len(cr.Errors) > 0 {
		return nil, fmt.Errorf("converter error: %s", cr.Errors[0].Message)
	}

	result := assembleResult(&cr)
	c.logger.Info("remote conversion complete",
		"filename", filename,
		"pages", len(result.Pages),
		"images", len(result.Images),
		"duration", time.Since(start))
	return result, nil
}

func assembleResult(cr *convertResponse) *Result {
	if len(cr.Document.Pages) == 0 {
		return &Result{Text: normalizeText(cr.Document.MDContent)}
	}

	res := &Result{}
	var b bytes.Buffer
	offset := 0
	for _, page := range cr.Document.Pages {
		text := normalizeText(page.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
			offset += 2
		}
		b.WriteString(text)
		n := len([]rune(text))
		res.Pages = append(res.Pages, PageSpan{Page: page.Page, Start: offset, End: offset + n})
		offset += n
		for _, img := range page.Images {
			res.Images = append(res.Images, ImageRef{Page: page.Page, Filename: img})
		}
	}
	res.Text = b.String()
	return res
}
