package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/Strob0t/TaskDesk/internal/domain/job"
)

// ProcessSpreadsheet uploads the file and triggers the processing job.
// Optional parameters are only sent when set so the server applies its defaults.
func (c *Client) ProcessSpreadsheet(ctx context.Context, req job.Request) (*job.Result, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("archivo", filepath.Base(req.File.Name))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(req.File.Content); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	data, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/errores_pami/procesar/",
		query:       jobQuery(req.Params),
		contentType: mw.FormDataContentType(),
		body:        buf.Bytes(),
		timeout:     c.jobTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("process spreadsheet: %w", err)
	}

	var res job.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("unmarshal job result: %w", err)
	}
	return &res, nil
}

func jobQuery(p job.Params) url.Values {
	q := url.Values{}
	if p.SpreadsheetKey != nil && *p.SpreadsheetKey != "" {
		q.Set("spreadsheet_key", *p.SpreadsheetKey)
	}
	if p.ColumnIndex != nil {
		q.Set("columna_a_procesar", strconv.Itoa(*p.ColumnIndex))
	}
	if p.ApplyDefaultPatterns != nil {
		q.Set("aplicar_patrones_default", strconv.FormatBool(*p.ApplyDefaultPatterns))
	}
	return q
}
