// Package diff parses git diffs into the file and line summaries used by
// the plan audit.
package diff

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// File represents a single file in a diff with its parsed fragments.
type File struct {
	OldName      string
	NewName      string
	IsNew        bool
	IsDeleted    bool
	IsRenamed    bool
	IsBinary     bool
	Fragments    []*gitdiff.TextFragment
	AddedLines   int
	DeletedLines int
}

// Name returns the display name for the file.
func (f *File) Name() string {
	if f.IsDeleted {
		return f.OldName
	}
	if f.NewName != "" {
		return f.NewName
	}
	return f.OldName
}

// AddedText returns the file's added lines without trailing newlines.
func (f *File) AddedText() []string {
	var out []string
	for _, frag := range f.Fragments {
		for _, line := range frag.Lines {
			if line.Op == gitdiff.OpAdd {
				out = append(out, strings.TrimRight(line.Line, "\r\n"))
			}
		}
	}
	return out
}

var commentPrefixes = []string{"#", "//", "/*", "*", `"""`, "'''"}

// CodeLines counts added lines that are neither blank nor comments.
func (f *File) CodeLines() int {
	n := 0
	for _, l := range f.AddedText() {
		t := strings.TrimSpace(l)
		if t == "" || hasAnyPrefix(t, commentPrefixes) {
			continue
		}
		n++
	}
	return n
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// DiffSet holds the parsed diff for all files.
type DiffSet struct {
	Files []*File
	Raw   string // the raw unified diff text
}

// Stats returns aggregate statistics.
func (ds *DiffSet) Stats() (files, added, deleted int) {
	files = len(ds.Files)
	for _, f := range ds.Files {
		added += f.AddedLines
		deleted += f.DeletedLines
	}
	return
}

// Parse reads a unified diff string and returns a DiffSet.
func Parse(raw string) (*DiffSet, error) {
	parsed, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	ds := &DiffSet{Raw: raw}
	for _, f := range parsed {
		df := &File{
			OldName:   f.OldName,
			NewName:   f.NewName,
			IsNew:     f.IsNew,
			IsDeleted: f.IsDelete,
			IsRenamed: f.IsRename,
			IsBinary:  f.IsBinary,
		}
		for _, frag := range f.TextFragments {
			df.Fragments = append(df.Fragments, frag)
			df.AddedLines += int(frag.LinesAdded)
			df.DeletedLines += int(frag.LinesDeleted)
		}
		ds.Files = append(ds.Files, df)
	}
	return ds, nil
}

// Git runs `git diff` with args in dir and returns the raw output.
func Git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"diff"}, args...)...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git diff: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return string(out), nil
}

// GitSource produces the working tree's diff against Base.
type GitSource struct {
	Dir  string
	Base string // default "HEAD"
}

// Diff runs git and parses its output.
func (s GitSource) Diff(ctx context.Context) (*DiffSet, error) {
	base := s.Base
	if base == "" {
		base = "HEAD"
	}
	raw, err := Git(ctx, s.Dir, "--no-color", "--no-ext-diff", base)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}
