package validation

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/models"
)

var fieldKeyPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Rules is the parsed form of FieldDefinition.ValidationRules
type Rules struct {
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
}

// ParseRules decodes a validation-rules JSON string. Empty input yields empty rules.
func ParseRules(raw string) (Rules, error) {
	var r Rules
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return r, nil
	}
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return r, fmt.Errorf("validation rules must be a JSON object: %w", err)
	}
	if r.Pattern != "" {
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return r, fmt.Errorf("invalid pattern: %w", err)
		}
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return r, fmt.Errorf("min must not exceed max")
	}
	if r.MinLength != nil && r.MaxLength != nil && *r.MinLength > *r.MaxLength {
		return r, fmt.Errorf("minLength must not exceed maxLength")
	}
	return r, nil
}

// ParseOptions decodes a select options JSON string: either ["A","B"] or
// [{"value":"A","label":"Alpha"}]. The returned slice holds the values.
func ParseOptions(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var plain []string
	if err := json.Unmarshal([]byte(raw), &plain); err == nil {
		return plain, nil
	}

	var labelled []struct {
		Value string `json:"value"`
		Label string `json:"label"`
	}
	if err := json.Unmarshal([]byte(raw), &labelled); err != nil {
		return nil, fmt.Errorf("options must be a JSON array: %w", err)
	}
	values := make([]string, 0, len(labelled))
	for _, o := range labelled {
		values = append(values, o.Value)
	}
	return values, nil
}

// ValidateFieldGroups checks a document type schema as authored in the dashboard.
func ValidateFieldGroups(groups []models.FieldGroup) error {
	problems := make(map[string]string)
	seen := make(map[string]bool)

	for gi, g := range groups {
		gpath := fmt.Sprintf("fieldGroups[%d]", gi)
		if strings.TrimSpace(g.Label) == "" {
			problems[gpath+".label"] = "group label is required"
		}
		for fi, f := range g.Fields {
			path := fmt.Sprintf("%s.fields[%d]", gpath, fi)
			if !fieldKeyPattern.MatchString(f.Key) {
				problems[path+".key"] = "field key must start with a letter and contain only letters, digits and underscores"
			} else if seen[f.Key] {
				problems[path+".key"] = fmt.Sprintf("duplicate field key %q", f.Key)
			}
			seen[f.Key] = true

			if strings.TrimSpace(f.Label) == "" {
				problems[path+".label"] = "field label is required"
			}
			if !f.Type.Valid() {
				problems[path+".type"] = fmt.Sprintf("unknown field type %q", f.Type)
			}

			opts, err := ParseOptions(f.Options)
			if err != nil {
				problems[path+".options"] = err.Error()
			} else if f.Type == models.FieldSelect && len(opts) == 0 {
				problems[path+".options"] = "select fields need at least one option"
			}

			if _, err := ParseRules(f.ValidationRules); err != nil {
				problems[path+".validationRules"] = err.Error()
			}
		}
	}

	if len(problems) > 0 {
		return ierr.NewError("invalid field groups").
			WithHint("Document type fields are invalid").
			WithReportableDetails(problems).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ValidateDocumentData checks form values against field definitions. With
// requireAll set, required fields must be present (submit); otherwise only
// the values provided are type-checked (draft save).
func ValidateDocumentData(fields []models.FieldDefinition, data map[string]interface{}, requireAll bool) error {
	problems := make(map[string]string)

	for _, f := range fields {
		v, present := data[f.Key]
		if !present || isEmpty(v) {
			if requireAll && f.Required {
				problems[f.Key] = f.Label + " is required"
			}
			continue
		}
		if f.Type == models.FieldCheckbox && requireAll && f.Required {
			if b, ok := v.(bool); ok && !b {
				problems[f.Key] = f.Label + " must be checked"
				continue
			}
		}
		if msg := checkValue(f, v); msg != "" {
			problems[f.Key] = msg
		}
	}

	if len(problems) > 0 {
		return ierr.NewError("invalid document data").
			WithHint("Some fields are missing or invalid").
			WithReportableDetails(problems).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

func checkValue(f models.FieldDefinition, v interface{}) string {
	rules, _ := ParseRules(f.ValidationRules)

	switch f.Type {
	case models.FieldNumber:
		n, ok := toFloat(v)
		if !ok {
			return f.Label + " must be a number"
		}
		if rules.Min != nil && n < *rules.Min {
			return fmt.Sprintf("%s must be at least %v", f.Label, *rules.Min)
		}
		if rules.Max != nil && n > *rules.Max {
			return fmt.Sprintf("%s must be at most %v", f.Label, *rules.Max)
		}

	case models.FieldCheckbox:
		if _, ok := v.(bool); !ok {
			return f.Label + " must be true or false"
		}

	case models.FieldDate:
		s, ok := v.(string)
		if !ok {
			return f.Label + " must be a date"
		}
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return f.Label + " must be a date (YYYY-MM-DD)"
		}

	case models.FieldSelect:
		s, ok := v.(string)
		if !ok {
			return f.Label + " must be one of the options"
		}
		opts, _ := ParseOptions(f.Options)
		for _, o := range opts {
			if o == s {
				return ""
			}
		}
		return f.Label + " must be one of the options"

	case models.FieldEmail:
		s, ok := v.(string)
		if !ok {
			return f.Label + " must be a valid email"
		}
		if addr, err := mail.ParseAddress(s); err != nil || addr.Address != s {
			return f.Label + " must be a valid email"
		}
		return checkText(f, s, rules)

	default:
		s, ok := v.(string)
		if !ok {
			return f.Label + " must be text"
		}
		return checkText(f, s, rules)
	}
	return ""
}

func checkText(f models.FieldDefinition, s string, rules Rules) string {
	n := utf8.RuneCountInString(s)
	if rules.MinLength != nil && n < *rules.MinLength {
		return fmt.Sprintf("%s must be at least %d characters", f.Label, *rules.MinLength)
	}
	if rules.MaxLength != nil && n > *rules.MaxLength {
		return fmt.Sprintf("%s must be at most %d characters", f.Label, *rules.MaxLength)
	}
	if rules.Pattern != "" {
		if re, err := regexp.Compile(rules.Pattern); err == nil && !re.MatchString(s) {
			return f.Label + " has an invalid format"
		}
	}
	return ""
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}
