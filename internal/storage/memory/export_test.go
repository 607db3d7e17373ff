// internal/storage/memory/export_test.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/railsim/formation/internal/config"
	"github.com/railsim/formation/pkg/core"
)

func fill(b *Backend) {
	_ = b.SaveFormation(&core.FormationRecord{ID: 2, Size: 2, Entries: []core.EntryRecord{
		{Car: 7, EntryID: 0},
		{Car: 8, EntryID: 1, Dir: core.Reverse},
	}})
	_ = b.SaveCar(&core.CarRecord{ID: 7, Control: true, Formation: 2})
	_ = b.SaveCar(&core.CarRecord{ID: 8, Formation: 2, EntryID: 1, Dir: core.Reverse})
}

func TestExportJSON_Uncompressed(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})
	fill(b)

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	path := b.GetExportedFilePath()
	if !strings.HasSuffix(path, ".json") {
		t.Fatalf("unexpected export path %s", path)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("export written outside OutputDir: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	for _, key := range []string{"version", "exportedAt", "formations", "cars"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("export missing key %q", key)
		}
	}
}

func TestExportJSON_Gzip(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir(), CompressOutput: true})
	fill(b)
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	path := b.GetExportedFilePath()
	if !strings.HasSuffix(path, ".json.gz") {
		t.Fatalf("unexpected export path %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	if _, err := gzip.NewReader(f); err != nil {
		t.Errorf("export is not gzip: %v", err)
	}
}

func TestImportRoundTrip(t *testing.T) {
	src := New(config.MemoryConfig{OutputDir: t.TempDir(), CompressOutput: true})
	fill(src)
	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	dst := New(config.MemoryConfig{})
	_ = dst.SaveCar(&core.CarRecord{ID: 99})
	if err := dst.Import(src.GetExportedFilePath()); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if _, ok := dst.GetCar(99); ok {
		t.Error("import must replace existing state")
	}
	f, ok := dst.GetFormation(2)
	if !ok {
		t.Fatal("formation 2 not imported")
	}
	if len(f.Entries) != 2 || f.Entries[1].Dir != core.Reverse {
		t.Errorf("unexpected entries %+v", f.Entries)
	}
	c, _ := dst.GetCar(7)
	if !c.Control {
		t.Error("car 7 lost control flag")
	}
}

func TestReadExport_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := ReadExport(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte("{not json"), 0644)
	if _, err := ReadExport(bad); err == nil {
		t.Error("expected error for invalid JSON")
	}

	future := filepath.Join(dir, "future.json")
	_ = os.WriteFile(future, []byte(`{"version":99}`), 0644)
	if _, err := ReadExport(future); err == nil {
		t.Error("expected error for unsupported version")
	}

	notGzip := filepath.Join(dir, "plain.json.gz")
	_ = os.WriteFile(notGzip, []byte(`{"version":1}`), 0644)
	if _, err := ReadExport(notGzip); err == nil {
		t.Error("expected error for non-gzip .gz file")
	}
}
