package services

import (
	"testing"

	"craftcrm/internal/models"
)

func TestValidateFieldValue(t *testing.T) {
	tests := []struct {
		name    string
		field   models.FieldDefinition
		value   interface{}
		wantErr bool
	}{
		{"required missing", models.FieldDefinition{Name: "n", Type: "text", Required: true}, nil, true},
		{"required blank string", models.FieldDefinition{Name: "n", Type: "text", Required: true}, "  ", true},
		{"optional missing", models.FieldDefinition{Name: "n", Type: "text"}, nil, false},
		{"text ok", models.FieldDefinition{Name: "n", Type: "text"}, "hello", false},
		{"text wrong type", models.FieldDefinition{Name: "n", Type: "text"}, 42.0, true},
		{"email ok", models.FieldDefinition{Name: "e", Type: "email"}, "a@b.co", false},
		{"email bad", models.FieldDefinition{Name: "e", Type: "email"}, "not-an-email", true},
		{"phone ok", models.FieldDefinition{Name: "p", Type: "phone"}, "+1 (555) 123-4567", false},
		{"phone bad", models.FieldDefinition{Name: "p", Type: "phone"}, "call me", true},
		{"url ok", models.FieldDefinition{Name: "u", Type: "url"}, "https://example.com", false},
		{"url bad scheme", models.FieldDefinition{Name: "u", Type: "url"}, "ftp://example.com", true},
		{"number float", models.FieldDefinition{Name: "n", Type: "number"}, 3.14, false},
		{"number numeric string", models.FieldDefinition{Name: "n", Type: "number"}, "42", false},
		{"number bad", models.FieldDefinition{Name: "n", Type: "number"}, "abc", true},
		{"currency ok", models.FieldDefinition{Name: "c", Type: "currency"}, float64(1200), false},
		{"checkbox ok", models.FieldDefinition{Name: "b", Type: "checkbox"}, true, false},
		{"checkbox bad", models.FieldDefinition{Name: "b", Type: "checkbox"}, "yes", true},
		{"select in options", models.FieldDefinition{Name: "s", Type: "select", Options: []string{"a", "b"}}, "a", false},
		{"select not in options", models.FieldDefinition{Name: "s", Type: "select", Options: []string{"a", "b"}}, "c", true},
		{"multiselect ok", models.FieldDefinition{Name: "m", Type: "multiselect", Options: []string{"a", "b"}},
			[]interface{}{"a", "b"}, false},
		{"multiselect invalid option", models.FieldDefinition{Name: "m", Type: "multiselect", Options: []string{"a"}},
			[]interface{}{"a", "z"}, true},
		{"multiselect not a list", models.FieldDefinition{Name: "m", Type: "multiselect", Options: []string{"a"}}, "a", true},
		{"date ok", models.FieldDefinition{Name: "d", Type: "date"}, "2026-08-25", false},
		{"date bad", models.FieldDefinition{Name: "d", Type: "date"}, "25/08/2026", true},
		{"datetime rfc3339", models.FieldDefinition{Name: "d", Type: "datetime"}, "2026-08-25T10:00:00Z", false},
		{"datetime accepts plain date", models.FieldDefinition{Name: "d", Type: "datetime"}, "2026-08-25", false},
		{"unknown type passes", models.FieldDefinition{Name: "x", Type: "geo"}, "anything", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFieldValue(tt.field, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFieldValue() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRecordData(t *testing.T) {
	entity := &models.Entity{
		EntityName: "leads",
		Fields: models.FieldList{
			{Name: "name", Type: "text", Required: true},
			{Name: "email", Type: "email"},
		},
	}

	t.Run("full create requires required fields", func(t *testing.T) {
		err := ValidateRecordData(entity, models.JSONMap{"email": "a@b.co"}, false)
		if err == nil {
			t.Error("expected missing-required error")
		}
	})

	t.Run("partial update skips missing required", func(t *testing.T) {
		err := ValidateRecordData(entity, models.JSONMap{"email": "a@b.co"}, true)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("unknown key rejected", func(t *testing.T) {
		err := ValidateRecordData(entity, models.JSONMap{"name": "x", "bogus": 1}, false)
		if err == nil {
			t.Error("expected unknown-field error")
		}
	})

	t.Run("valid full payload", func(t *testing.T) {
		err := ValidateRecordData(entity, models.JSONMap{"name": "x", "email": "a@b.co"}, false)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
