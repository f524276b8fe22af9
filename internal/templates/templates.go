// Package templates provides the embedded HTML pages with user override support.
// Pages are loaded with resolution order:
// 1. User override: templatesDir/{name}.html
// 2. Embedded default: internal/templates/{name}.html
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
)

//go:embed *.html
var fs embed.FS

// Funcs are available to every page
var Funcs = template.FuncMap{
	"lower": strings.ToLower,
}

// GetPage parses a page by name, preferring a user override
func GetPage(name string, templatesDir string) (*template.Template, error) {
	if templatesDir != "" {
		userPath := filepath.Join(templatesDir, name+".html")
		if data, err := os.ReadFile(userPath); err == nil {
			return parsePage(name, data)
		}
	}

	data, err := fs.ReadFile(name + ".html")
	if err != nil {
		return nil, fmt.Errorf("page '%s' not found (checked user override and embedded)", name)
	}
	return parsePage(name, data)
}

// ListEmbeddedPages returns names of all embedded pages
func ListEmbeddedPages() ([]string, error) {
	entries, err := fs.ReadDir(".")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if name, ok := strings.CutSuffix(entry.Name(), ".html"); ok && !entry.IsDir() {
			names = append(names, name)
		}
	}
	return names, nil
}

func parsePage(name string, data []byte) (*template.Template, error) {
	t, err := template.New(name).Funcs(Funcs).Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %s: %w", name, err)
	}
	return t, nil
}
