package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/bbngrid/internal/card"
	"github.com/san-kum/bbngrid/internal/collect"
	"github.com/san-kum/bbngrid/internal/grid"
)

func testSet(t *testing.T) *grid.Set {
	t.Helper()
	eta, err := grid.NewRange(3, 3, 5)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	set := grid.NewSet(grid.NumParams)
	if err := set.Add(0, grid.DefaultAxes().With("eta10", eta)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := set.Add(2, grid.DefaultAxes()); err != nil {
		t.Fatalf("add: %v", err)
	}
	return set
}

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	common := card.DefaultCommon(card.NewTemplates(st.Folder("b1"), "b1"))
	common.Network = card.InterNet
	common.Rates = []card.RateOverride{{Reaction: 3, Correction: card.CorrectionFactor, Factor: 1.1}}
	set := testSet(t)

	if err := st.Save(common, set); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(st.Folder("b1"), SettingsFile))
	if err != nil {
		t.Fatalf("settings not written: %v", err)
	}
	if strings.Contains(string(raw), tmpDir) {
		t.Error("settings must not contain absolute paths")
	}

	def, err := Load(st.Folder("b1"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if def.Tag != "b1" {
		t.Errorf("expected tag 'b1', got '%s'", def.Tag)
	}
	if def.Common.Network != card.InterNet {
		t.Errorf("expected network interNet, got %s", def.Common.Network)
	}
	if len(def.Common.Rates) != 1 || def.Common.Rates[0].Factor != 1.1 {
		t.Errorf("rate overrides not restored: %+v", def.Common.Rates)
	}
	if def.Common.Templates.Card != common.Templates.Card {
		t.Errorf("expected card template %s, got %s", common.Templates.Card, def.Common.Templates.Card)
	}

	jobs, err := def.Jobs()
	if err != nil {
		t.Fatalf("jobs failed: %v", err)
	}
	if len(jobs) != 4 {
		t.Fatalf("expected 4 jobs, got %d", len(jobs))
	}
	if jobs[1].Point.Get("eta10") != 4 {
		t.Errorf("expected eta10 4 for job 1, got %f", jobs[1].Point.Get("eta10"))
	}
	if jobs[3].Point.Get("eta10") != 6.13832 {
		t.Errorf("expected default eta10 for job 3, got %f", jobs[3].Point.Get("eta10"))
	}

	restored, err := def.Set()
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if ids := restored.IDs(); len(ids) != 2 || ids[1] != 2 {
		t.Errorf("expected grid ids [0 2], got %v", ids)
	}
}

func TestLoadRelocatedFolder(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)
	common := card.DefaultCommon(card.NewTemplates(st.Folder("b1"), "b1"))
	if err := st.Save(common, testSet(t)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	moved := filepath.Join(tmpDir, "moved")
	if err := os.Rename(st.Folder("b1"), moved); err != nil {
		t.Fatalf("rename failed: %v", err)
	}

	def, err := Load(moved)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if want := filepath.Join(moved, "parthenope_b1.out"); def.Common.Templates.Aggregate != want {
		t.Errorf("expected aggregate %s, got %s", want, def.Common.Templates.Aggregate)
	}
	if def.Folder != moved {
		t.Errorf("expected folder %s, got %s", moved, def.Folder)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected an error for a folder without settings")
	}
}

func TestStoreList(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	batches, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(batches) != 0 {
		t.Errorf("expected 0 batches, got %d", len(batches))
	}

	common := card.DefaultCommon(card.NewTemplates(st.Folder("b1"), "b1"))
	if err := st.Save(common, testSet(t)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(tmpDir, "unrelated"), 0755); err != nil {
		t.Fatal(err)
	}

	batches, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	if batches[0].Jobs != 4 || batches[0].Done {
		t.Errorf("unexpected batch info %+v", batches[0])
	}
}

func TestExport(t *testing.T) {
	res := &collect.Results{
		Header: []string{"N_eff", "Y_p"},
		Rows:   []collect.Row{{3.044, 0.247}, {collect.NotAvailable, collect.NotAvailable}},
	}

	var buf bytes.Buffer
	if err := ExportJSON(&buf, "b1", res, false); err != nil {
		t.Fatalf("export json failed: %v", err)
	}
	var data struct {
		Rows [][]*float64 `json:"rows"`
	}
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if data.Rows[0][1] == nil || *data.Rows[0][1] != 0.247 {
		t.Errorf("expected 0.247, got %v", data.Rows[0][1])
	}
	if data.Rows[1][0] != nil {
		t.Error("expected null for not-available cell")
	}

	buf.Reset()
	if err := ExportCSV(&buf, res); err != nil {
		t.Fatalf("export csv failed: %v", err)
	}
	want := "id,N_eff,Y_p\n0,3.0440000e+00,2.4700000e-01\n1,,\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}
