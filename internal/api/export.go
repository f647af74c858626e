package api

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"

	apperrors "sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
)

// Export is a downloaded CSV and the name the backend suggested for it.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

var dispositionFilename = regexp.MustCompile(`filename\*?=(?:UTF-8'')?"?([^";]+)"?`)

// ExportSales downloads the filtered sales as CSV.
func (c *Client) ExportSales(ctx context.Context, params models.SearchParams) (*Export, error) {
	resp, err := c.do(ctx, http.MethodGet, "/sales/export", SearchQuery(params), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Network(err)
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType == "" {
		contentType = defaultExportContent
	}

	return &Export{
		Filename:    FilenameFromDisposition(resp.Header.Get("Content-Disposition")),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// FilenameFromDisposition extracts the filename parameter of a
// Content-Disposition header, or the default export name when there is
// none.
func FilenameFromDisposition(header string) string {
	m := dispositionFilename.FindStringSubmatch(header)
	if m == nil {
		return defaultExportName
	}
	name := strings.TrimSpace(m[1])
	// Only the base name is usable as a download target.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" || name == "." || name == ".." {
		return defaultExportName
	}
	return name
}
