// Package form implements per-dialog form sessions: field rules, touched
// tracking, and the submission state machine shared by create and edit.
package form

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateTimeLayout is the editable due date representation.
const DateTimeLayout = "2006-01-02T15:04"

// acceptedLayouts are tried in order when parsing a due date.
var acceptedLayouts = []string{DateTimeLayout, "2006-01-02T15:04:05", time.RFC3339, "2006-01-02"}

// Rule is one constraint on a field. Tag uses validator syntax.
type Rule struct {
	Tag     string
	Message string
}

// Schema maps field names to their rules. Every rule of a field is
// evaluated, so all violations are reported, not just the first.
type Schema map[string][]Rule

var validate = newValidator()

// customRules are the validator tags this package adds.
var customRules = map[string]validator.Func{
	"notblank": func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	},
	"tasktime": func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		if s == "" {
			return true
		}
		_, err := ParseDateTime(s, time.UTC)
		return err == nil
	},
}

// newValidator panics if a rule cannot be registered; a schema naming an
// unregistered tag would otherwise panic on first use instead.
func newValidator() *validator.Validate {
	v := validator.New()
	for tag, fn := range customRules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("form: register %q: %v", tag, err))
		}
	}
	return v
}

// ValidateField returns the messages of every rule value violates.
func (s Schema) ValidateField(field string, value any) []string {
	var msgs []string
	for _, r := range s[field] {
		if err := validate.Var(value, r.Tag); err != nil {
			msgs = append(msgs, r.Message)
		}
	}
	return msgs
}

// Validate checks every field of values present in the schema.
func (s Schema) Validate(values map[string]any) map[string][]string {
	errs := make(map[string][]string)
	for field := range s {
		if msgs := s.ValidateField(field, values[field]); len(msgs) > 0 {
			errs[field] = msgs
		}
	}
	return errs
}

// ParseDateTime parses an editable timestamp in loc. Inputs carrying an
// offset keep it.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	var err error
	for _, layout := range acceptedLayouts {
		var t time.Time
		if t, err = time.ParseInLocation(layout, strings.TrimSpace(s), loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// FormatDateTime renders t in loc at minute precision for editing.
func FormatDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Truncate(time.Minute).Format(DateTimeLayout)
}
