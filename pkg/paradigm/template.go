package paradigm

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// placeholderPattern matches "{{dotted.path}}" placeholders, the same
// convention as internal/application/template's Engine, scoped down here
// to a single flat variable map rather than the engine/resolver/env
// precedence chain that package implements for workflow nodes.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([^}\s]+)\s*\}\}`)

// Render substitutes every "{{a.b.c}}" placeholder in tmpl by walking
// dotted-path lookups into vars. A missing path renders as "" rather
// than failing, a non-strict template mode.
func Render(tmpl string, vars map[string]any) (string, error) {
	var renderErr error
	out := placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-2])
		v, ok := lookupPath(vars, path)
		if !ok {
			return ""
		}
		return fmt.Sprintf("%v", v)
	})
	return out, renderErr
}

// readTemplateFile reads a template file relative to baseDir (the
// paradigm_dir configuration key), backing the "read_template"
// affordance's read_file() expr-lang call.
func readTemplateFile(baseDir, path string) (string, error) {
	full := path
	if baseDir != "" && !filepath.IsAbs(path) {
		full = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("paradigm: read_file %s: %w", full, err)
	}
	return string(data), nil
}

func lookupPath(vars map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var cur any = vars
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
