package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Strob0t/TaskDesk/internal/domain"
	"github.com/Strob0t/TaskDesk/internal/domain/job"
	"github.com/Strob0t/TaskDesk/internal/service"
)

type processView struct {
	FileName  string
	CanSubmit bool
	Result    *job.Result
	Err       string
}

func (h *Handler) processView() processView {
	return processView{
		FileName:  h.jobs.FileName(),
		CanSubmit: h.jobs.CanSubmit(),
		Result:    h.jobs.Result(),
	}
}

func (h *Handler) processPage(w http.ResponseWriter, _ *http.Request) {
	h.render(w, http.StatusOK, "process.html", h.processView())
}

// submitProcess selects the uploaded file, if any, and submits the job. A
// previously selected file is reused when the form carries none.
func (h *Handler) submitProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		http.Error(w, "invalid upload", http.StatusBadRequest)
		return
	}

	if err := h.selectUpload(r); err != nil {
		v := h.processView()
		v.Err = err.Error()
		h.render(w, statusFor(err), "process.html", v)
		return
	}

	params, err := jobParams(r)
	if err != nil {
		v := h.processView()
		v.Err = err.Error()
		h.render(w, http.StatusBadRequest, "process.html", v)
		return
	}

	_, err = h.jobs.Submit(r.Context(), params)
	v := h.processView()
	if err != nil {
		v.Err = domain.UserMessage(err)
		if errors.Is(err, domain.ErrValidation) {
			v.Err = service.NoFileMessage
		}
		h.render(w, statusFor(err), "process.html", v)
		return
	}
	h.render(w, http.StatusOK, "process.html", v)
}

func (h *Handler) selectUpload(r *http.Request) error {
	f, hdr, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	return h.jobs.SelectFile(hdr.Filename, content)
}

func jobParams(r *http.Request) (job.Params, error) {
	var p job.Params
	if v := r.FormValue("spreadsheet_key"); v != "" {
		p.SpreadsheetKey = &v
	}
	if v := r.FormValue("column"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, errors.New("column must be a number")
		}
		p.ColumnIndex = &n
	}
	if r.FormValue("default_patterns") != "" {
		b := true
		p.ApplyDefaultPatterns = &b
	}
	return p, nil
}
