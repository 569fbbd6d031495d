// Package job defines the spreadsheet processing job submitted to the backend.
package job

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Strob0t/TaskDesk/internal/domain"
)

// AcceptedExtensions lists the spreadsheet formats the backend processes.
var AcceptedExtensions = []string{".xlsx", ".xls"}

// File is a selected spreadsheet held in memory until submission.
type File struct {
	Name    string
	Content []byte
}

// Params are the optional job parameters. Nil fields use server-side defaults.
type Params struct {
	SpreadsheetKey       *string
	ColumnIndex          *int
	ApplyDefaultPatterns *bool
}

// Request is one ProcessSpreadsheet call.
type Request struct {
	File   File
	Params Params
}

// Result is the backend's answer once the job has been accepted.
type Result struct {
	Message        string `json:"mensaje"`
	Filename       string `json:"archivo"`
	SpreadsheetKey string `json:"spreadsheet_key"`
	ResultLink     string `json:"google_sheet_url"`
}

// ValidateFilename checks the extension against AcceptedExtensions.
func ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: file name is required", domain.ErrValidation)
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range AcceptedExtensions {
		if ext == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not a spreadsheet (expected %s)",
		domain.ErrValidation, filepath.Base(name), strings.Join(AcceptedExtensions, " or "))
}
