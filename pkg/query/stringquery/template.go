package stringquery

import (
	"sort"
	"strconv"
	"strings"
)

// PositionalMarker starts a positional placeholder such as ?0.
const PositionalMarker = '?'

type segmentKind uint8

const (
	segmentLiteral segmentKind = iota
	segmentPlaceholder
)

type segment struct {
	kind  segmentKind
	text  string
	name  string
	index int
}

// template is a query template split into literal text and placeholder references.
// It is immutable once built and shared between goroutines through the cache.
type template struct {
	raw          string
	segments     []segment
	placeholders int
	// undeclared lists :identifier tokens no declared parameter matched.
	undeclared []string
}

func (t *template) add(seg segment) {
	if seg.kind == segmentPlaceholder {
		t.placeholders++
	}
	t.segments = append(t.segments, seg)
}

// parsePositional locates ?N placeholders. The digit run is consumed greedily, so
// ?1 never matches the prefix of ?12. Index runs that overflow int stay literal.
func parsePositional(raw string) *template {
	t := &template{raw: raw}
	start := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] != PositionalMarker {
			continue
		}
		j := i + 1
		for j < len(raw) && isDigit(raw[j]) {
			j++
		}
		if j == i+1 {
			continue
		}
		index, err := strconv.Atoi(raw[i+1 : j])
		if err != nil {
			i = j - 1
			continue
		}
		if start < i {
			t.add(segment{kind: segmentLiteral, text: raw[start:i]})
		}
		t.add(segment{kind: segmentPlaceholder, text: raw[i:j], index: index})
		start = j
		i = j - 1
	}
	if start < len(raw) {
		t.add(segment{kind: segmentLiteral, text: raw[start:]})
	}
	return t
}

// parseNamed locates the declared parameter tokens wherever they occur, including
// directly before further identifier characters. At each position the longest declared
// token wins. When the same token is declared twice the first declaration is kept.
func parseNamed(raw string, params []Parameter) *template {
	tokens := namedTokens(params)
	t := &template{raw: raw}
	start := 0
	i := 0
	for i < len(raw) {
		param, ok := matchToken(raw, i, tokens[raw[i]])
		if ok {
			if start < i {
				t.add(segment{kind: segmentLiteral, text: raw[start:i]})
			}
			t.add(segment{kind: segmentPlaceholder, text: param.Placeholder, name: param.Name, index: param.Index})
			i += len(param.Placeholder)
			start = i
			continue
		}
		if strings.HasPrefix(raw[i:], NamedPrefix) {
			if ident := identifierAt(raw, i+len(NamedPrefix)); ident != "" {
				if !isJSONLiteral(ident) {
					t.undeclared = append(t.undeclared, ident)
				}
				i += len(NamedPrefix) + len(ident)
				continue
			}
		}
		i++
	}
	if start < len(raw) {
		t.add(segment{kind: segmentLiteral, text: raw[start:]})
	}
	return t
}

// namedTokens indexes declared tokens by first byte, longest first.
func namedTokens(params []Parameter) map[byte][]Parameter {
	byFirst := make(map[byte][]Parameter)
	seen := make(map[string]struct{}, len(params))
	for _, p := range params {
		if p.Placeholder == "" {
			continue
		}
		if _, dup := seen[p.Placeholder]; dup {
			continue
		}
		seen[p.Placeholder] = struct{}{}
		byFirst[p.Placeholder[0]] = append(byFirst[p.Placeholder[0]], p)
	}
	for first := range byFirst {
		candidates := byFirst[first]
		sort.SliceStable(candidates, func(a, b int) bool {
			return len(candidates[a].Placeholder) > len(candidates[b].Placeholder)
		})
	}
	return byFirst
}

func matchToken(raw string, at int, candidates []Parameter) (Parameter, bool) {
	for _, p := range candidates {
		if strings.HasPrefix(raw[at:], p.Placeholder) {
			return p, true
		}
	}
	return Parameter{}, false
}

func identifierAt(raw string, at int) string {
	if at >= len(raw) || isDigit(raw[at]) || !isIdentByte(raw[at]) {
		return ""
	}
	end := at
	for end < len(raw) && isIdentByte(raw[end]) {
		end++
	}
	return raw[at:end]
}

func isJSONLiteral(ident string) bool {
	switch ident {
	case "true", "false", "null":
		return true
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isIdentByte(b byte) bool {
	return b == '_' || isDigit(b) || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
