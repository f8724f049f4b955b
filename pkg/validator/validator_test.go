package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRegister(t *testing.T) {
	errs := ValidateRegister("not-an-email", "a", "", "short")
	assert.True(t, errs.HasErrors())
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "username")
	assert.Contains(t, errs, "display_name")
	assert.Contains(t, errs, "password")

	errs = ValidateRegister("alice@example.com", "alice", "Alice", "Secret123")
	assert.False(t, errs.HasErrors())

	errs = ValidateRegister("alice@example.com", "alice", "Alice", "secret123")
	assert.Equal(t, "Password must contain at least one uppercase letter", errs["password"])
}

func TestValidateChannel(t *testing.T) {
	assert.False(t, ValidateChannel("off-topic", "").HasErrors())
	assert.False(t, ValidateChannel("Stage", "VIDEO").HasErrors())
	assert.Contains(t, ValidateChannel("has space", "TEXT"), "name")
	assert.Contains(t, ValidateChannel("ok", "public"), "type")
}

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		content string
		fileURL string
		field   string
	}{
		{name: "text", content: "hi"},
		{name: "file only", fileURL: "https://cdn.example.com/a.pdf"},
		{name: "empty", content: "  ", field: "content"},
		{name: "too long", content: strings.Repeat("é", 4001), field: "content"},
		{name: "relative file", fileURL: "/uploads/a.png", field: "file_url"},
		{name: "bad scheme", fileURL: "javascript:alert(1)", field: "file_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateMessage(tt.content, tt.fileURL)
			if tt.field == "" {
				assert.False(t, errs.HasErrors(), "%v", errs)
				return
			}
			assert.Contains(t, errs, tt.field)
		})
	}
}
