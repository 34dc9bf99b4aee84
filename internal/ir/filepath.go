package ir

import (
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// pathSeparator joins the component paths of a merged load.
const pathSeparator = "+"

// runNumberPattern extracts the run number from names like REF_M_24945_event.nxs.
var runNumberPattern = regexp.MustCompile(`_(\d+)`)

// FilePath is the source identity of a run: one path, or several paths
// joined by '+' for a merged load. Component paths are kept sorted unless
// constructed with NewFilePathUnsorted.
type FilePath struct {
	paths []string
}

// NewFilePath builds a FilePath from one or more paths. Paths that are
// themselves '+'-joined are split first. The result is sorted.
func NewFilePath(paths ...string) FilePath {
	var split []string
	for _, p := range paths {
		for _, part := range strings.Split(p, pathSeparator) {
			if part = strings.TrimSpace(part); part != "" {
				split = append(split, part)
			}
		}
	}
	slices.Sort(split)
	return FilePath{paths: slices.Compact(split)}
}

// NewFilePathUnsorted keeps the caller's path order.
func NewFilePathUnsorted(paths ...string) FilePath {
	return FilePath{paths: slices.Clone(paths)}
}

// JoinFilePath prefixes every component of a '+'-joined name with dir.
//
//	JoinFilePath("/SNS", "REF_M_2.nxs+REF_M_1.nxs") // "/SNS/REF_M_1.nxs+/SNS/REF_M_2.nxs"
func JoinFilePath(dir, name string) string {
	parts := strings.Split(name, pathSeparator)
	for i, p := range parts {
		parts[i] = filepath.Join(dir, strings.TrimSpace(p))
	}
	return NewFilePath(parts...).String()
}

// String returns the '+'-joined path. This is the run cache key.
func (f FilePath) String() string {
	return strings.Join(f.paths, pathSeparator)
}

// SinglePaths returns the component paths.
func (f FilePath) SinglePaths() []string {
	return slices.Clone(f.paths)
}

// IsComposite reports whether the path names more than one file.
func (f FilePath) IsComposite() bool {
	return len(f.paths) > 1
}

// IsZero reports whether no path is set.
func (f FilePath) IsZero() bool {
	return len(f.paths) == 0
}

// FirstPath returns the first component path.
func (f FilePath) FirstPath() string {
	if len(f.paths) == 0 {
		return ""
	}
	return f.paths[0]
}

// Dirname returns the directory of the first component path.
func (f FilePath) Dirname() string {
	if len(f.paths) == 0 {
		return ""
	}
	return filepath.Dir(f.paths[0])
}

// Basename joins the base names of every component with '+'.
func (f FilePath) Basename() string {
	names := make([]string, len(f.paths))
	for i, p := range f.paths {
		names[i] = filepath.Base(p)
	}
	return strings.Join(names, pathSeparator)
}

// Split returns Dirname and Basename.
func (f FilePath) Split() (dir, base string) {
	return f.Dirname(), f.Basename()
}

// UniqueDirname reports whether all components share one directory.
func (f FilePath) UniqueDirname() bool {
	if len(f.paths) == 0 {
		return false
	}
	dir := filepath.Dir(f.paths[0])
	for _, p := range f.paths[1:] {
		if filepath.Dir(p) != dir {
			return false
		}
	}
	return true
}

// RunNumbers extracts one run number per component from its base name.
// Components without a recognizable number are skipped.
func (f FilePath) RunNumbers() RunNumbers {
	var numbers []int
	for _, p := range f.paths {
		m := runNumberPattern.FindStringSubmatch(filepath.Base(p))
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			numbers = append(numbers, n)
		}
	}
	return NewRunNumbers(numbers...)
}
