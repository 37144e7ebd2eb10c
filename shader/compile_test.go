package shader

import (
	"slices"
	"strings"
	"testing"

	"github.com/gogpu/wavescope/rescache"
)

// minimal valid WGSL compute shader for compiler round-trips
const testShaderWGSL = `
@compute @workgroup_size(1)
fn main() {
}
`

func newCache(t *testing.T) *rescache.Cache {
	t.Helper()
	c, err := rescache.New(rescache.Config{Dir: t.TempDir(), Tag: "test"})
	if err != nil {
		t.Fatalf("rescache.New() = %v", err)
	}
	return c
}

func TestKey(t *testing.T) {
	a := Key("fft", "shader source A")
	b := Key("fft", "shader source B")
	if a == b {
		t.Error("different sources must produce different keys")
	}
	if Key("fft", "s") != Key("fft", "s") {
		t.Error("Key must be deterministic")
	}
	if !strings.HasPrefix(a, "fft.") {
		t.Errorf("key %q must carry the label", a)
	}
}

func TestCompileHitSkipsCompiler(t *testing.T) {
	c := newCache(t)
	key := Key("precomputed", "not even wgsl")

	// Pre-seed the cache: Compile must return this verbatim without ever
	// invoking the compiler (the source is deliberately invalid).
	c.StoreBlob(key, []uint32{1, 2, 3})

	words, err := Compile(c, key, "not even wgsl")
	if err != nil {
		t.Fatalf("Compile() on a cache hit = %v", err)
	}
	if !slices.Equal(words, []uint32{1, 2, 3}) {
		t.Errorf("Compile() = %v, want cached words", words)
	}
}

func TestCompileMissStoresResult(t *testing.T) {
	c := newCache(t)
	key := Key("noop", testShaderWGSL)

	words, err := Compile(c, key, testShaderWGSL)
	if err != nil {
		t.Fatalf("Compile() = %v", err)
	}
	if len(words) == 0 {
		t.Fatal("Compile() returned empty SPIR-V")
	}
	// SPIR-V magic number.
	if words[0] != 0x07230203 {
		t.Errorf("words[0] = %#x, want SPIR-V magic 0x07230203", words[0])
	}

	cached, ok := c.LookupBlob(key)
	if !ok {
		t.Fatal("Compile() did not store the result")
	}
	if !slices.Equal(cached, words) {
		t.Error("cached words differ from returned words")
	}
}

func TestCompileInvalidSource(t *testing.T) {
	c := newCache(t)
	key := Key("broken", "@not valid wgsl @@")

	if _, err := Compile(c, key, "@not valid wgsl @@"); err == nil {
		t.Error("Compile() accepted invalid WGSL")
	}
	if _, ok := c.LookupBlob(key); ok {
		t.Error("failed compilation must not be cached")
	}
}
