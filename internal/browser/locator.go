package browser

import (
	"fmt"
	"strings"
)

// Role is an ARIA role used to locate elements by accessible name.
type Role string

const (
	RoleButton   Role = "button"
	RoleHeading  Role = "heading"
	RoleLink     Role = "link"
	RoleTextbox  Role = "textbox"
	RoleCheckbox Role = "checkbox"
)

const (
	upperAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerAlphabet = "abcdefghijklmnopqrstuvwxyz"
)

// roleCandidates maps a role to an XPath predicate matching elements that
// carry it implicitly (by tag) or explicitly (by role attribute).
var roleCandidates = map[Role]string{
	RoleButton:   `self::button or (self::input and (@type='submit' or @type='button' or @type='reset')) or @role='button'`,
	RoleHeading:  `self::h1 or self::h2 or self::h3 or self::h4 or self::h5 or self::h6 or @role='heading'`,
	RoleLink:     `(self::a and @href) or @role='link'`,
	RoleTextbox:  `(self::input and (not(@type) or @type='text' or @type='email' or @type='search' or @type='tel' or @type='url')) or self::textarea or @role='textbox'`,
	RoleCheckbox: `(self::input and @type='checkbox') or @role='checkbox'`,
}

// ByLabel returns an XPath expression selecting form controls whose
// accessible label contains label. Matching ignores case and collapses
// whitespace. Three associations are recognised: <label for="id">, a control
// nested inside its <label>, and an aria-label attribute.
func ByLabel(label string) string {
	match := containsText(".", label)
	control := `self::input or self::textarea or self::select or @role='textbox' or @role='combobox'`

	return strings.Join([]string{
		fmt.Sprintf(`//*[@id = //label[%s]/@for]`, match),
		fmt.Sprintf(`//label[%s]//*[%s]`, match, control),
		fmt.Sprintf(`//*[%s][%s]`, control, containsText("@aria-label", label)),
	}, " | ")
}

// ByRole returns an XPath expression selecting elements with the given role
// whose accessible name contains name. An empty name matches every element
// with the role.
func ByRole(role Role, name string) string {
	candidates, ok := roleCandidates[role]
	if !ok {
		candidates = "@role=" + Literal(string(role))
	}

	if strings.TrimSpace(name) == "" {
		return fmt.Sprintf(`//*[%s]`, candidates)
	}

	named := strings.Join([]string{
		containsText(".", name),
		containsText("@aria-label", name),
		containsText("@value", name),
	}, " or ")

	return fmt.Sprintf(`//*[%s][%s]`, candidates, named)
}

// Literal quotes s as an XPath 1.0 string literal. XPath has no escape
// sequences, so strings holding both quote kinds are built with concat().
func Literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	parts := strings.Split(s, "'")
	args := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			args = append(args, `"'"`)
		}
		if part != "" {
			args = append(args, "'"+part+"'")
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}

// containsText builds a case-insensitive, whitespace-normalised substring
// test of expr against needle. XPath 1.0 translate() only folds A-Z, so the
// needle is folded with the same mapping and nothing else.
func containsText(expr, needle string) string {
	normalized := asciiLower(strings.Join(strings.Fields(needle), " "))
	return fmt.Sprintf("contains(translate(normalize-space(%s), '%s', '%s'), %s)",
		expr, upperAlphabet, lowerAlphabet, Literal(normalized))
}

// asciiLower lowercases A-Z and leaves every other rune untouched.
func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}
