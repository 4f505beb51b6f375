// Package testsupport loads fixtures and golden files from a package's
// testdata directory.
package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// UpdateEnv rewrites golden files instead of comparing when set to a
// non-empty value.
const UpdateEnv = "UPDATE_GOLDEN"

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(tb testing.TB, path string) []byte {
	tb.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		tb.Fatalf("failed to load fixture from %s: %v", path, err)
	}
	return data
}

// WriteGolden writes test output to a golden file, creating its directory.
func WriteGolden(tb testing.TB, path string, data []byte) {
	tb.Helper()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		tb.Fatalf("failed to create directory %s: %v", dir, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("failed to write golden file to %s: %v", path, err)
	}
}

// CompareWithGolden compares actual with the golden file at path. A missing
// golden file, or UpdateEnv being set, writes actual instead.
func CompareWithGolden(tb testing.TB, path string, actual []byte) {
	tb.Helper()

	if os.Getenv(UpdateEnv) != "" {
		WriteGolden(tb, path, actual)
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			tb.Logf("golden file %s does not exist, creating it", path)
			WriteGolden(tb, path, actual)
			return
		}
		tb.Fatalf("failed to read golden file %s: %v", path, err)
	}

	if string(actual) == string(expected) {
		return
	}
	line, want, got := firstDiff(string(expected), string(actual))
	tb.Errorf("output mismatch for %s at line %d:\nexpected: %s\nactual:   %s", path, line, want, got)
}

// firstDiff returns the 1-based number of the first differing line.
func firstDiff(expected, actual string) (int, string, string) {
	e := strings.Split(expected, "\n")
	a := strings.Split(actual, "\n")
	for i := 0; i < len(e) || i < len(a); i++ {
		var want, got string
		if i < len(e) {
			want = e[i]
		}
		if i < len(a) {
			got = a[i]
		}
		if want != got {
			return i + 1, want, got
		}
	}
	return 0, "", ""
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// GoldenPath constructs a path to a golden file relative to the testdata directory.
func GoldenPath(filename string) string {
	return filepath.Join("testdata", "golden", filename)
}

// SQLitePath returns a database file inside a per-test temporary directory.
func SQLitePath(tb testing.TB) string {
	tb.Helper()
	return filepath.Join(tb.TempDir(), "ads.db")
}
