package env

import (
	"strings"
	"testing"
)

func TestMerge_Precedence(t *testing.T) {
	e := New().FromList([]string{"A=base", "B=base", "PATH=/bin"}).WithSet("B", "global").WithSet("C", "global")
	out := e.Merge([]string{"C=proc", "D=${PATH}:/opt"})
	want := []string{"A=base", "B=global", "C=proc", "D=/bin:/opt", "PATH=/bin"}
	if strings.Join(out, "|") != strings.Join(want, "|") {
		t.Fatalf("Merge mismatch:\n got %v\nwant %v", out, want)
	}
}

func TestMerge_TempOverrides(t *testing.T) {
	e := New().FromList([]string{"TEMP=C:\\Users\\op\\AppData\\Local\\Temp", "TMP=x", "HOME=/h"})
	out := e.Merge(TempOverrides("/scratch/PIV_1"))
	for _, k := range TempVars {
		if v, ok := lookup(out, k, false); !ok || v != "/scratch/PIV_1" {
			t.Fatalf("%s not redirected: %v", k, out)
		}
	}
	if v, _ := lookup(out, "HOME", false); v != "/h" {
		t.Fatalf("unrelated var lost: %v", out)
	}
}

func TestMerge_CaseInsensitiveKeys(t *testing.T) {
	e := New().FromList([]string{"Temp=old", "Path=C:\\bin"}).caseInsensitive(true)
	out := e.Merge([]string{"TEMP=new"})
	joined := strings.Join(out, "|")
	if strings.Contains(joined, "Temp=old") {
		t.Fatalf("folded key should have been replaced: %v", out)
	}
	if v, ok := lookup(out, "temp", true); !ok || v != "new" {
		t.Fatalf("lookup folded: %v", out)
	}
}

func TestMerge_SkipsMalformed(t *testing.T) {
	e := New().FromList([]string{"=C:=C:\\", "NOEQUALS", "OK=1"})
	out := e.Merge([]string{"=bad", "X=$NOT_BRACED"})
	want := []string{"OK=1", "X=$NOT_BRACED"}
	if strings.Join(out, "|") != strings.Join(want, "|") {
		t.Fatalf("got %v want %v", out, want)
	}
}
