package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Strob0t/TaskDesk/internal/domain"
)

// errorBody is the backend's error envelope. detail is either a plain
// message or a list of field errors.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type fieldError struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// locRoots are location prefixes that do not name a field.
var locRoots = map[string]bool{"body": true, "query": true, "path": true, "form": true}

// parseError converts a non-2xx response into a *domain.APIError, keeping
// the backend's message verbatim.
func parseError(status int, data []byte) *domain.APIError {
	apiErr := &domain.APIError{
		Kind:       domain.KindForStatus(status),
		StatusCode: status,
	}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		apiErr.Message = fallbackMessage(status, data)
		return apiErr
	}

	var msg string
	if err := json.Unmarshal(body.Detail, &msg); err == nil {
		apiErr.Message = msg
		return apiErr
	}

	var fields []fieldError
	if err := json.Unmarshal(body.Detail, &fields); err != nil || len(fields) == 0 {
		apiErr.Message = fallbackMessage(status, data)
		return apiErr
	}

	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, f.Msg)
		name := fieldName(f.Loc)
		if name == "" {
			continue
		}
		if apiErr.Fields == nil {
			apiErr.Fields = make(map[string]string)
		}
		if _, seen := apiErr.Fields[name]; !seen {
			apiErr.Fields[name] = f.Msg
		}
		if apiErr.Field == "" {
			apiErr.Field = name
		}
	}
	apiErr.Message = strings.Join(msgs, "; ")
	return apiErr
}

// fieldName returns the last string element of loc unless it is a location root.
func fieldName(loc []any) string {
	for i := len(loc) - 1; i >= 0; i-- {
		s, ok := loc[i].(string)
		if !ok {
			continue
		}
		if locRoots[s] {
			return ""
		}
		return s
	}
	return ""
}

func fallbackMessage(status int, data []byte) string {
	if text := strings.TrimSpace(string(data)); text != "" && len(text) <= 200 {
		return text
	}
	return fmt.Sprintf("%d %s", status, http.StatusText(status))
}
