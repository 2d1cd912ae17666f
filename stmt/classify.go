package stmt

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

type StatementType int

const (
	PlainStatementType StatementType = iota
	AttachStatementType
	DetachStatementType
)

func (t StatementType) String() string {
	switch t {
	case AttachStatementType:
		return "attach"
	case DetachStatementType:
		return "detach"
	default:
		return "plain"
	}
}

// Statement is the classification of one statement text. Name is the
// lower-cased database alias for attach and detach statements.
type Statement struct {
	kind StatementType
	Name string
}

func (s Statement) Type() StatementType {
	return s.kind
}

const (
	identifier = `[A-Za-z_][A-Za-z0-9_]*`
	quoted     = `"((?:[^"]|"")+)"`
)

var (
	attachPrefix = regexp.MustCompile(`(?is)^\s*ATTACH\s+(?:DATABASE\s+)?(?:IF\s+NOT\s+EXISTS\s+)?`)
	pathLiteral  = regexp.MustCompile(`^'((?:[^']|'')*)'`)
	aliasClause  = regexp.MustCompile(`(?is)^\s*AS\s+(?:` + quoted + `|(` + identifier + `))`)
	detachForm   = regexp.MustCompile(`(?is)^\s*DETACH\s+(?:DATABASE\s+)?(?:IF\s+EXISTS\s+)?(?:` + quoted + `|(` + identifier + `))`)
)

// Classify reports whether text is an ATTACH or DETACH statement and which
// alias it targets. Statements whose alias cannot be extracted are Plain.
func Classify(text string) Statement {
	if loc := attachPrefix.FindStringIndex(text); loc != nil {
		if name, ok := attachAlias(text[loc[1]:]); ok {
			return Statement{kind: AttachStatementType, Name: name}
		}
		return Statement{kind: PlainStatementType}
	}

	if m := detachForm.FindStringSubmatch(text); m != nil {
		name := firstNonEmpty(unquote(m[1]), m[2])
		if m[2] != "" && isKeyword(name) {
			return Statement{kind: PlainStatementType}
		}
		return Statement{kind: DetachStatementType, Name: strings.ToLower(name)}
	}

	return Statement{kind: PlainStatementType}
}

// attachAlias reads the path literal and the alias that follows it. Without
// an AS clause the engine names the database after the file stem, which
// need not be a bare identifier ('data/my-file.db' becomes "my-file").
func attachAlias(rest string) (string, bool) {
	m := pathLiteral.FindStringSubmatch(rest)
	if m == nil {
		return "", false
	}
	target := strings.ReplaceAll(m[1], "''", "'")
	rest = rest[len(m[0]):]

	if a := aliasClause.FindStringSubmatch(rest); a != nil {
		return strings.ToLower(firstNonEmpty(unquote(a[1]), a[2])), true
	}

	if target == "" || target == ":memory:" {
		return "", false
	}
	base := path.Base(filepath.ToSlash(target))
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		return "", false
	}
	return strings.ToLower(stem), true
}

func unquote(name string) string {
	return strings.ReplaceAll(name, `""`, `"`)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func isKeyword(name string) bool {
	switch strings.ToUpper(name) {
	case "DATABASE", "IF":
		return true
	}
	return false
}
