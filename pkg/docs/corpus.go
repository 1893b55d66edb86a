// Package docs loads the markdown corpus and ranks its fragments with BM25.
package docs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Fragment is a unit of retrievable text with a stable id.
type Fragment struct {
	ID      string
	Content string
	Source  string
}

// LoadDir reads every *.md file directly under dir and splits it into fragments.
func LoadDir(dir string) ([]Fragment, error) {
	return LoadFS(os.DirFS(dir))
}

func LoadFS(fsys fs.FS) ([]Fragment, error) {
	paths, err := fs.Glob(fsys, "*.md")
	if err != nil {
		return nil, fmt.Errorf("failed to list markdown files: %w", err)
	}
	sort.Strings(paths)

	var out []Fragment
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		out = append(out, Split(strings.TrimSuffix(filepath.Base(p), ".md"), string(data))...)
	}
	return out, nil
}

// Split cuts a markdown document on "##" section markers. Ids are "<source>::chunk<i>"
// where i is the position in the raw split, so ids stay stable when empty sections are
// dropped.
func Split(source, content string) []Fragment {
	var out []Fragment
	for i, raw := range strings.Split(content, "##") {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		if i > 0 {
			text = "## " + text
		}
		out = append(out, Fragment{
			ID:      fmt.Sprintf("%s::chunk%d", source, i),
			Content: text,
			Source:  source,
		})
	}
	return out
}
