package fixtures

import (
	"math/rand"
	"os"
	"testing"
)

// Directory creates a temporary directory inside dir which is removed when
// the test finishes.
func Directory(t testing.TB, dir string) string {
	name, err := os.MkdirTemp(dir, "persistence-bench")
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := os.RemoveAll(name); err != nil {
			t.Fatal(err)
		}
	})

	return name
}

func RandomBytes(n int) []byte {
	r := make([]byte, n)
	_, err := rand.Read(r)
	if err != nil {
		panic(err)
	}
	return r
}
