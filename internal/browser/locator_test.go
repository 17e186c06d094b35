package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLiteral(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Email", `'Email'`},
		{"", `''`},
		{"Don't", `"Don't"`},
		{`say "hi"`, `'say "hi"'`},
		{`it's "x"`, `concat('it', "'", 's "x"')`},
		{`'both"`, `concat("'", 'both"')`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Literal(tt.input))
		})
	}
}

func TestContainsText_NormalisesNeedle(t *testing.T) {
	got := containsText(".", "  Log   IN ")
	assert.Equal(t,
		"contains(translate(normalize-space(.), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), 'log in')",
		got)
}

func TestContainsText_FoldsOnlyASCII(t *testing.T) {
	got := containsText(".", "ÉMAIL")
	assert.True(t, strings.HasSuffix(got, ", 'Émail')"), got)
	assert.Equal(t, "émail", asciiLower("émail"))
}

func TestByLabel(t *testing.T) {
	xpath := ByLabel("Email")

	branches := strings.Split(xpath, " | ")
	if assert.Len(t, branches, 3) {
		assert.True(t, strings.HasPrefix(branches[0], "//*[@id = //label["), "label[for] association")
		assert.True(t, strings.HasPrefix(branches[1], "//label["), "nested control association")
		assert.Contains(t, branches[2], "@aria-label", "aria-label association")
	}
	assert.Contains(t, xpath, "'email'")
	assert.NotContains(t, xpath, "'Email'", "needle is lower-cased for case-insensitive matching")
}

func TestByRole(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		label    string
		contains []string
	}{
		{
			name:     "button by name",
			role:     RoleButton,
			label:    "Login",
			contains: []string{"self::button", "@type='submit'", "@role='button'", "'login'", "@value"},
		},
		{
			name:     "heading by name",
			role:     RoleHeading,
			label:    "Dashboard",
			contains: []string{"self::h1", "self::h6", "@role='heading'", "'dashboard'"},
		},
		{
			name:     "link without name",
			role:     RoleLink,
			label:    "",
			contains: []string{"self::a and @href", "@role='link'"},
		},
		{
			name:     "custom role",
			role:     Role("tab"),
			label:    "Overview",
			contains: []string{"@role='tab'", "'overview'"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			xpath := ByRole(tt.role, tt.label)
			assert.True(t, strings.HasPrefix(xpath, "//*["))
			for _, want := range tt.contains {
				assert.Contains(t, xpath, want)
			}
		})
	}
}

func TestByRole_EmptyNameHasNoNamePredicate(t *testing.T) {
	assert.NotContains(t, ByRole(RoleHeading, "  "), "contains(")
}
