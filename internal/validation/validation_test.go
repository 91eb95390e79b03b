package validation

import (
	"testing"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/models"
)

type categoryRequest struct {
	Code    string `json:"code" validate:"required,code"`
	Name    string `json:"name" validate:"required"`
	Options string `json:"options" validate:"jsonstr"`
}

func TestCodeRejectsLowercase(t *testing.T) {
	v := New()

	if err := v.Struct(categoryRequest{Code: "CONTRACTS_2026", Name: "Contracts"}); err != nil {
		t.Fatalf("valid code rejected: %v", err)
	}

	for _, code := range []string{"contracts", "Contracts", "1ABC", "AB-C", ""} {
		err := v.Struct(categoryRequest{Code: code, Name: "x"})
		if err == nil {
			t.Errorf("code %q should be rejected", code)
			continue
		}
		if !ierr.IsValidation(err) {
			t.Errorf("code %q: expected validation error kind, got %v", code, err)
		}
		if _, ok := ierr.Details(err)["code"]; !ok {
			t.Errorf("code %q: expected detail keyed by json name, got %v", code, ierr.Details(err))
		}
	}
}

func TestRequiredFieldsBlock(t *testing.T) {
	err := New().Struct(categoryRequest{Code: "OK"})
	if err == nil {
		t.Fatal("missing name should fail")
	}
	if msg := ierr.DisplayMessage(err); msg != "name is required" {
		t.Errorf("message = %q", msg)
	}
}

func TestJSONStringTag(t *testing.T) {
	v := New()
	if err := v.Struct(categoryRequest{Code: "A", Name: "a", Options: `["x","y"]`}); err != nil {
		t.Errorf("valid JSON rejected: %v", err)
	}
	if err := v.Struct(categoryRequest{Code: "A", Name: "a", Options: `["x",`}); err == nil {
		t.Error("broken JSON accepted")
	}
}

func TestValidateFieldGroups(t *testing.T) {
	good := []models.FieldGroup{{
		Key: "main", Label: "Main",
		Fields: []models.FieldDefinition{
			{Key: "amount", Label: "Amount", Type: models.FieldNumber, ValidationRules: `{"min":0,"max":1000}`},
			{Key: "kind", Label: "Kind", Type: models.FieldSelect, Options: `[{"value":"a","label":"A"}]`},
		},
	}}
	if err := ValidateFieldGroups(good); err != nil {
		t.Fatalf("valid groups rejected: %v", err)
	}

	bad := []models.FieldGroup{{
		Key: "main", Label: "Main",
		Fields: []models.FieldDefinition{
			{Key: "amount", Label: "Amount", Type: models.FieldNumber, ValidationRules: `{"min":`},
			{Key: "amount", Label: "Dup", Type: models.FieldText},
			{Key: "kind", Label: "Kind", Type: models.FieldSelect},
			{Key: "x", Label: "X", Type: "slider"},
		},
	}}
	err := ValidateFieldGroups(bad)
	if err == nil {
		t.Fatal("invalid groups accepted")
	}
	details := ierr.Details(err)
	for _, key := range []string{
		"fieldGroups[0].fields[0].validationRules",
		"fieldGroups[0].fields[1].key",
		"fieldGroups[0].fields[2].options",
		"fieldGroups[0].fields[3].type",
	} {
		if _, ok := details[key]; !ok {
			t.Errorf("expected problem at %s, got %v", key, details)
		}
	}
}

func TestParseRulesRejectsInvertedBounds(t *testing.T) {
	if _, err := ParseRules(`{"min":5,"max":1}`); err == nil {
		t.Error("min > max accepted")
	}
	if _, err := ParseRules(`{"pattern":"[a-"}`); err == nil {
		t.Error("broken regex accepted")
	}
	if r, err := ParseRules(""); err != nil || r.Min != nil {
		t.Errorf("empty rules: %+v, %v", r, err)
	}
}

func TestValidateDocumentData(t *testing.T) {
	fields := []models.FieldDefinition{
		{Key: "name", Label: "Name", Type: models.FieldText, Required: true, ValidationRules: `{"minLength":2}`},
		{Key: "amount", Label: "Amount", Type: models.FieldNumber, ValidationRules: `{"min":1}`},
		{Key: "due", Label: "Due", Type: models.FieldDate},
		{Key: "kind", Label: "Kind", Type: models.FieldSelect, Options: `["a","b"]`},
		{Key: "mail", Label: "Mail", Type: models.FieldEmail},
		{Key: "agree", Label: "Agree", Type: models.FieldCheckbox, Required: true},
	}

	// Draft save: required fields may be missing
	if err := ValidateDocumentData(fields, map[string]interface{}{"amount": 5.0}, false); err != nil {
		t.Errorf("draft data rejected: %v", err)
	}

	ok := map[string]interface{}{
		"name": "Ana", "amount": "12.5", "due": "2026-10-01", "kind": "b",
		"mail": "ana@example.com", "agree": true,
	}
	if err := ValidateDocumentData(fields, ok, true); err != nil {
		t.Errorf("complete data rejected: %v", err)
	}

	bad := map[string]interface{}{
		"name": "A", "amount": 0.0, "due": "01/10/2026", "kind": "c",
		"mail": "not-an-email", "agree": false,
	}
	err := ValidateDocumentData(fields, bad, true)
	if err == nil {
		t.Fatal("invalid data accepted")
	}
	details := ierr.Details(err)
	for _, key := range []string{"name", "amount", "due", "kind", "mail", "agree"} {
		if _, ok := details[key]; !ok {
			t.Errorf("expected problem for %s, got %v", key, details)
		}
	}

	missing := ValidateDocumentData(fields, map[string]interface{}{"agree": true}, true)
	if missing == nil || ierr.Details(missing)["name"] != "Name is required" {
		t.Errorf("expected required error for name, got %v", missing)
	}
}
