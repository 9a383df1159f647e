package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// MustLoadFixture reads a file under the calling package, usually from
// testdata/, and fails the test when it is missing.
func MustLoadFixture(t testing.TB, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		t.Fatalf("load fixture %s: %v", path, err)
	}
	return data
}
