package scanner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o644))
	}
}

func seqNames(prefix string, from, to int) []string {
	out := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, fmt.Sprintf("%s%06d.bmp", prefix, i))
	}
	return out
}

func TestExtract_ShotA(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shotA")
	touch(t, dir, seqNames("shotA", 1, 50)...)

	seq, err := Extract(dir, "bmp")
	require.NoError(t, err)
	assert.Equal(t, Sequence{Prefix: "shotA", First: 1, Final: 50, Count: 50}, seq)
}

func TestFromNames(t *testing.T) {
	cases := []struct {
		name  string
		files []string
		want  Sequence
		err   error
	}{
		{
			name:  "unsorted input",
			files: []string{"run000010.bmp", "run000002.bmp", "run000007.bmp"},
			want:  Sequence{Prefix: "run", First: 2, Final: 10, Count: 3},
		},
		{
			name:  "prefix from lowest number",
			files: []string{"b000005.bmp", "a000009.bmp", "c000001.bmp"},
			want:  Sequence{Prefix: "c", First: 1, Final: 9, Count: 3},
		},
		{
			name:  "non matching files ignored",
			files: []string{"cam000001.bmp", "cam01.bmp", "notes.bmp", "cam000002.txt"},
			want:  Sequence{Prefix: "cam", First: 1, Final: 1, Count: 1},
		},
		{
			name:  "empty prefix allowed",
			files: []string{"000003.bmp", "000004.bmp"},
			want:  Sequence{Prefix: "", First: 3, Final: 4, Count: 2},
		},
		{
			name:  "uppercase extension",
			files: []string{"img000001.BMP", "img000002.Bmp"},
			want:  Sequence{Prefix: "img", First: 1, Final: 2, Count: 2},
		},
		{
			name:  "wrong convention",
			files: []string{"frame_1.bmp", "frame_2.bmp"},
			err:   ErrNoMatch,
		},
		{
			name:  "no files",
			files: nil,
			err:   ErrNoMatch,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromNames(tc.files, "bmp")
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFindFolders(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b_shot"), "b000001.bmp")
	touch(t, filepath.Join(root, "a_shot"), "a000001.bmp", "readme.txt")
	touch(t, filepath.Join(root, "empty"))
	touch(t, filepath.Join(root, "text_only"), "notes.txt")
	touch(t, filepath.Join(root, "nested", "deeper"), "x000001.bmp")
	touch(t, root, "loose000001.bmp")

	got, err := FindFolders(root, "bmp")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a_shot"), filepath.Join(root, "b_shot")}, got)
}

func TestFindFolders_MissingRoot(t *testing.T) {
	_, err := FindFolders(filepath.Join(t.TempDir(), "nope"), "bmp")
	require.Error(t, err)
}

func TestScan_SplitsSkipped(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "good"), seqNames("good", 1, 3)...)
	touch(t, filepath.Join(root, "bad"), "IMG_1.bmp")

	r, err := Scan(root, "")
	require.NoError(t, err)
	require.Len(t, r.Candidates, 1)
	assert.Equal(t, filepath.Join(root, "good"), r.Candidates[0].Path)
	assert.Equal(t, 3, r.Candidates[0].Final)
	require.Len(t, r.Skipped, 1)
	assert.True(t, errors.Is(r.Skipped[0].Reason, ErrNoMatch))
}

func TestScan_ZeroFinalIsSkipped(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "zero"), "shot000000.bmp")
	touch(t, filepath.Join(root, "one"), "shot000000.bmp", "shot000001.bmp")

	r, err := Scan(root, "bmp")
	require.NoError(t, err)
	require.Len(t, r.Candidates, 1)
	assert.Equal(t, 1, r.Candidates[0].Final)
	require.Len(t, r.Skipped, 1)
	assert.Equal(t, filepath.Join(root, "zero"), r.Skipped[0].Path)
	assert.ErrorIs(t, r.Skipped[0].Reason, ErrNoFrames)
}

func TestReport_EntriesSorted(t *testing.T) {
	r := Report{
		Candidates: []Candidate{{Path: "/in/c", Sequence: Sequence{Prefix: "c", Final: 2}}, {Path: "/in/a"}},
		Skipped:    []Skipped{{Path: "/in/b", Reason: ErrNoMatch}},
	}
	got := r.Entries()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"/in/a", "/in/b", "/in/c"}, []string{got[0].Path, got[1].Path, got[2].Path})
	assert.ErrorIs(t, got[1].Err, ErrNoMatch)
	assert.Equal(t, 2, got[2].Sequence.Final)
}

func TestPattern_OtherExtension(t *testing.T) {
	re := Pattern(".tif")
	assert.True(t, re.MatchString("s000123.tif"))
	assert.False(t, re.MatchString("s000123.bmp"))
	assert.False(t, re.MatchString("s000123.tiff"))
}
