package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const moduleName = "lexcontrib"

// layerRule lists the in-module and third-party prefixes a context layer may
// import besides the standard library. Paths starting with "@" are relative
// to the owning service.
type layerRule struct {
	allowed []string
	libs    []string
}

var layerRules = map[string]layerRule{
	"domain": {
		allowed: []string{"@/domain"},
	},
	"ports": {
		allowed: []string{"@/domain", moduleName + "/contracts"},
	},
	"application": {
		allowed: []string{"@/application", "@/domain", "@/ports", moduleName + "/contracts"},
		libs:    []string{"golang.org/x/sync"},
	},
}

// driverOwners pins each storage or wire library to the directories allowed
// to speak it directly.
var driverOwners = map[string][]string{
	"gorm.io/":                     {"adapters/postgres", "internal/platform/db"},
	"github.com/jackc/pgx":         {"adapters/postgres"},
	"github.com/tidwall/gjson":     {"adapters/corpus"},
	"github.com/swaggo/":           {"internal/platform/httpserver"},
	"github.com/joho/godotenv":     {"internal/platform/config"},
	"gopkg.in/yaml.v3":             {"internal/platform/config"},
	"github.com/spf13/pflag":       {"cmd/"},
	"github.com/stretchr/testify/": {""},
}

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

func main() {
	var violations []violation
	for _, root := range []string{"contexts", "internal", "cmd"} {
		violations = append(violations, collectViolations(root)...)
	}
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File == violations[j].File {
			if violations[i].Line == violations[j].Line {
				return violations[i].Import < violations[j].Import
			}
			return violations[i].Line < violations[j].Line
		}
		return violations[i].File < violations[j].File
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string) []violation {
	var violations []violation
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") {
			return nil
		}
		violations = append(violations, checkFile(filepath.ToSlash(path), nil)...)
		return nil
	})
	return violations
}

// checkFile parses the imports of path (or of src when non-nil) and applies
// the layer and driver ownership rules.
func checkFile(path string, src any) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: path, Line: 1, Rule: "file must parse"}}
	}

	isTest := strings.HasSuffix(path, "_test.go")
	servicePrefix, layer := serviceLayer(path)

	var violations []violation
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		line := fset.Position(imp.Pos()).Line
		add := func(rule string) {
			violations = append(violations, violation{File: path, Line: line, Import: importPath, Rule: rule})
		}

		if servicePrefix != "" && strings.HasPrefix(importPath, moduleName+"/contexts/") && !hasPrefix(importPath, servicePrefix) {
			add("cross-service imports are forbidden")
		}
		if rule := driverRule(path, importPath, isTest); rule != "" {
			add(rule)
		}
		if isTest {
			continue
		}
		if rule, ok := layerRules[layer]; ok && !isStdlib(importPath) && !rule.permits(importPath, servicePrefix) {
			add(layer + " import is outside explicit allowlist")
		}
	}
	return violations
}

// serviceLayer splits contexts/<context>/<service>/<layer>/... into the
// service import prefix and the layer name.
func serviceLayer(path string) (string, string) {
	parts := strings.Split(path, "/")
	if len(parts) < 4 || parts[0] != "contexts" {
		return "", ""
	}
	return fmt.Sprintf("%s/contexts/%s/%s", moduleName, parts[1], parts[2]), parts[3]
}

func (r layerRule) permits(importPath string, servicePrefix string) bool {
	for _, prefix := range r.allowed {
		if strings.HasPrefix(prefix, "@") {
			prefix = servicePrefix + strings.TrimPrefix(prefix, "@")
		}
		if hasPrefix(importPath, prefix) {
			return true
		}
	}
	for _, lib := range r.libs {
		if hasPrefix(importPath, lib) {
			return true
		}
	}
	return false
}

func driverRule(path string, importPath string, isTest bool) string {
	for library, owners := range driverOwners {
		if !strings.HasPrefix(importPath, library) {
			continue
		}
		for _, owner := range owners {
			if owner == "" && isTest {
				return ""
			}
			if owner != "" && strings.Contains(path, owner) {
				return ""
			}
		}
		return fmt.Sprintf("%s is owned by %s", strings.TrimSuffix(library, "/"), strings.Join(ownerNames(owners), ", "))
	}
	return ""
}

func ownerNames(owners []string) []string {
	names := make([]string, 0, len(owners))
	for _, owner := range owners {
		if owner == "" {
			owner = "tests"
		}
		names = append(names, owner)
	}
	return names
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isStdlib(importPath string) bool {
	if strings.HasPrefix(importPath, moduleName+"/") {
		return false
	}
	first := importPath
	if idx := strings.Index(first, "/"); idx != -1 {
		first = first[:idx]
	}
	return !strings.Contains(first, ".")
}
