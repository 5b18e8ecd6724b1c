package mapping

import (
	"strings"
	"unicode"

	pluralizer "github.com/gertd/go-pluralize"
)

var pluralizeClient = pluralizer.NewClient()

// defaultIndexName converts a Go type name into a pluralised snake_case index name:
// BlogPost -> blog_posts, Person -> people.
func defaultIndexName(typeName string) string {
	snake := toSnakeCase(typeName)
	if snake == "" {
		return ""
	}
	parts := strings.Split(snake, "_")
	last := len(parts) - 1
	parts[last] = strings.ToLower(pluralizeClient.Plural(parts[last]))
	return strings.Join(parts, "_")
}

// toSnakeCase splits on case changes, keeping acronyms together: HTTPRequest -> http_request.
func toSnakeCase(name string) string {
	if name == "" {
		return ""
	}
	if strings.Contains(name, "_") && strings.ToLower(name) == name {
		return name
	}

	runes := []rune(name)
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			switch {
			case unicode.IsLower(prev) || unicode.IsDigit(prev):
				b.WriteByte('_')
			case unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
