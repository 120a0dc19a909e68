// Package scanner discovers image-sequence folders and derives the shared
// filename prefix and sequence bounds of the images inside them.
package scanner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultExt is the image extension PIV consumes.
const DefaultExt = "bmp"

// ErrNoMatch is returned by Extract when a folder has image files but none of them
// follows the <prefix><6 digits>.<ext> naming convention.
var ErrNoMatch = errors.New("no filename matches <prefix><6 digits>.<ext>")

// ErrNoFrames is reported by Scan for a sequence whose highest number is 0. PIV
// would be asked for a negative frame count.
var ErrNoFrames = errors.New("highest sequence number is 0")

// Sequence is the numbering derived from one folder.
type Sequence struct {
	Prefix string // prefix of the lowest-numbered match
	First  int    // lowest sequence number
	Final  int    // highest sequence number
	Count  int    // number of matching files
}

// Candidate is an actionable folder.
type Candidate struct {
	Path string
	Sequence
}

// Skipped is a folder that had image files but could not be used.
type Skipped struct {
	Path   string
	Reason error
}

// Report is the result of Scan.
type Report struct {
	Candidates []Candidate
	Skipped    []Skipped
}

// Entry is one scanned folder. Err is set for skipped folders.
type Entry struct {
	Path     string
	Sequence Sequence
	Err      error
}

// Entries returns candidates and skipped folders together, sorted by path.
func (r Report) Entries() []Entry {
	out := make([]Entry, 0, len(r.Candidates)+len(r.Skipped))
	for _, c := range r.Candidates {
		out = append(out, Entry{Path: c.Path, Sequence: c.Sequence})
	}
	for _, s := range r.Skipped {
		out = append(out, Entry{Path: s.Path, Err: s.Reason})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Pattern returns the filename pattern for ext, anchored and case-insensitive on the extension.
func Pattern(ext string) *regexp.Regexp {
	return regexp.MustCompile(`^(.*?)(\d{6})\.(?i:` + regexp.QuoteMeta(normExt(ext)) + `)$`)
}

// FindFolders returns the absolute paths of the immediate subdirectories of base that
// contain at least one *.ext file, sorted lexicographically.
func FindFolders(base, ext string) ([]string, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read input root: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !isDir(abs, e) {
			continue
		}
		dir := filepath.Join(abs, e.Name())
		names, err := imageFiles(dir, ext)
		if err != nil {
			return nil, err
		}
		if len(names) > 0 {
			out = append(out, dir)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Extract derives the Sequence of folder. It returns ErrNoMatch when no image file
// name matches the pattern.
func Extract(folder, ext string) (Sequence, error) {
	names, err := imageFiles(folder, ext)
	if err != nil {
		return Sequence{}, err
	}
	return FromNames(names, ext)
}

// FromNames derives a Sequence from bare file names.
func FromNames(names []string, ext string) (Sequence, error) {
	re := Pattern(ext)
	type entry struct {
		prefix string
		num    int
	}
	matches := make([]entry, 0, len(names))
	for _, n := range names {
		m := re.FindStringSubmatch(n)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		matches = append(matches, entry{prefix: m[1], num: num})
	}
	if len(matches) == 0 {
		return Sequence{}, ErrNoMatch
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].num != matches[j].num {
			return matches[i].num < matches[j].num
		}
		return matches[i].prefix < matches[j].prefix
	})
	return Sequence{
		Prefix: matches[0].prefix,
		First:  matches[0].num,
		Final:  matches[len(matches)-1].num,
		Count:  len(matches),
	}, nil
}

// Scan runs FindFolders and Extract for each folder found. Folders whose
// sequence ends at 0 are skipped with ErrNoFrames.
func Scan(base, ext string) (Report, error) {
	folders, err := FindFolders(base, ext)
	if err != nil {
		return Report{}, err
	}
	var r Report
	for _, f := range folders {
		seq, err := Extract(f, ext)
		if err == nil && seq.Final <= 0 {
			err = ErrNoFrames
		}
		if err != nil {
			r.Skipped = append(r.Skipped, Skipped{Path: f, Reason: err})
			continue
		}
		r.Candidates = append(r.Candidates, Candidate{Path: f, Sequence: seq})
	}
	return r, nil
}

// imageFiles lists regular files in dir whose extension equals ext (case-insensitive).
func imageFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", dir, err)
	}
	want := "." + normExt(ext)
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), want) {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// isDir follows symlinks so linked sequence folders are scanned too.
func isDir(parent string, e os.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&os.ModeSymlink == 0 {
		return false
	}
	fi, err := os.Stat(filepath.Join(parent, e.Name()))
	return err == nil && fi.IsDir()
}

func normExt(ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		return DefaultExt
	}
	return strings.ToLower(ext)
}
