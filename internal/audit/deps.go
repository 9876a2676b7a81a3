package audit

import (
	"path"
	"slices"
	"strings"

	"github.com/sprite-ai/reviewgate/internal/diff"
)

// manifests maps dependency manifest names to their ecosystem. Lockfiles
// are left out since they repeat transitive entries.
var manifests = map[string]string{
	"go.mod":           "go",
	"package.json":     "npm",
	"Cargo.toml":       "cargo",
	"requirements.txt": "pip",
	"Gemfile":          "gem",
	"mix.exs":          "hex",
}

// AddedDependencies lists the dependencies added to manifests in ds, sorted
// and deduplicated.
func AddedDependencies(ds *diff.DiffSet) []string {
	var deps []string
	for _, f := range ds.Files {
		eco, ok := manifests[path.Base(f.Name())]
		if !ok || f.IsDeleted {
			continue
		}
		for _, line := range f.AddedText() {
			if dep := parseDepLine(line, eco); dep != "" {
				deps = append(deps, dep)
			}
		}
	}
	slices.Sort(deps)
	return slices.Compact(deps)
}

var (
	npmKeys   = []string{"dependencies", "devDependencies", "peerDependencies", "name", "version", "scripts", "main", "private", "license", "description"}
	cargoKeys = []string{"name", "version", "edition", "authors", "description", "license"}
)

func parseDepLine(line, eco string) string {
	line = strings.TrimSpace(line)
	switch eco {
	case "go":
		// require github.com/foo/bar v1.2.3, or a line inside a require block
		fields := strings.Fields(strings.TrimPrefix(line, "require "))
		if len(fields) >= 2 && strings.Contains(fields[0], "/") && !strings.HasPrefix(fields[0], "//") && fields[0] != "(" {
			return fields[0]
		}

	case "npm":
		// "dep-name": "^1.0.0"
		name, value, ok := strings.Cut(strings.TrimSuffix(line, ","), ":")
		name = strings.Trim(name, `" `)
		value = strings.TrimSpace(value)
		if ok && name != "" && !strings.HasPrefix(value, "{") && !strings.HasPrefix(name, "@types/") && !slices.Contains(npmKeys, name) {
			return name
		}

	case "cargo":
		// dep-name = "1.0"  or  dep-name = { version = "1.0" }
		if strings.HasPrefix(line, "[") || strings.HasPrefix(line, "#") {
			return ""
		}
		name, _, ok := strings.Cut(line, "=")
		name = strings.TrimSpace(name)
		if ok && name != "" && !strings.Contains(name, ".") && !slices.Contains(cargoKeys, name) {
			return name
		}

	case "pip":
		// package==1.0.0 or package>=1.0
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			return ""
		}
		if i := strings.IndexAny(line, "=<>!~;["); i > 0 {
			return strings.TrimSpace(line[:i])
		}
		if !strings.Contains(line, " ") {
			return line
		}

	case "gem":
		// gem 'name', '~> 1.0'
		if rest, ok := strings.CutPrefix(line, "gem "); ok {
			name, _, _ := strings.Cut(rest, ",")
			return strings.Trim(name, `'" `)
		}

	case "hex":
		// {:dep_name, "~> 1.0"}
		if rest, ok := strings.CutPrefix(line, "{:"); ok {
			if name, _, ok := strings.Cut(rest, ","); ok && name != "" {
				return name
			}
		}
	}
	return ""
}
