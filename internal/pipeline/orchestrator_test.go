package pipeline

import (
	"bytes"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/grllgrll/gaers.bio/internal/config"
	"github.com/grllgrll/gaers.bio/internal/data/demo"
	"github.com/grllgrll/gaers.bio/internal/extract"
	"github.com/grllgrll/gaers.bio/internal/render"
	"github.com/grllgrll/gaers.bio/internal/schema"
)

// fakeStrategy is a scriptable tier for orchestration tests.
type fakeStrategy struct {
	name    string
	outcome extract.Outcome
	err     error
	panics  bool
	called  bool
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Extract(req extract.Request) (extract.Outcome, error) {
	f.called = true
	if f.panics {
		panic("boom")
	}
	return f.outcome, f.err
}

func successOutcome() extract.Outcome {
	return extract.Outcome{
		Status: extract.StatusSuccess,
		Dataset: &schema.Dataset{
			Coordinates: map[string]schema.Point{"A1": {X: 1, Y: 2}},
			Expression:  map[string]map[string]float64{"G": {"A1": 1}},
			ScaleFactor: 1,
			ImageSize:   schema.ImageSize{Width: 4, Height: 4},
			NSpots:      1,
			NGenes:      1,
		},
		Image: image.NewGray(image.Rect(0, 0, 4, 4)),
	}
}

func testSample(t *testing.T, name string) config.Sample {
	t.Helper()
	return config.Sample{
		Cloupe: filepath.Join(t.TempDir(), "missing.cloupe"),
		Name:   name,
		Output: filepath.Join(t.TempDir(), name),
	}
}

func TestFirstSuccessWins(t *testing.T) {
	winner := &fakeStrategy{name: "first", outcome: successOutcome()}
	later := &fakeStrategy{name: "second", outcome: successOutcome()}

	o := NewOrchestrator([]extract.Strategy{winner, later}, render.PreviewConfig{})
	sample := testSample(t, "s1")
	result := o.Process(sample)

	if !result.Succeeded || result.Tier != "first" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if later.called {
		t.Error("later strategy ran after an earlier success")
	}
	if _, err := os.Stat(filepath.Join(sample.Output, DatasetFileName)); err != nil {
		t.Errorf("dataset artifact missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(sample.Output, ImageFileName)); err != nil {
		t.Errorf("image artifact missing: %v", err)
	}
}

func TestDeferralAdvancesInOrder(t *testing.T) {
	first := &fakeStrategy{name: "first", outcome: extract.Deferred("no spatial information found")}
	second := &fakeStrategy{name: "second", outcome: extract.Deferred("too complex")}
	third := &fakeStrategy{name: "third", outcome: successOutcome()}

	o := NewOrchestrator([]extract.Strategy{first, second, third}, render.PreviewConfig{})
	result := o.Process(testSample(t, "s1"))

	if !result.Succeeded || result.Tier != "third" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Attempts) != 2 {
		t.Fatalf("expected 2 recorded attempts, got %d", len(result.Attempts))
	}
	if result.Attempts[0].Strategy != "first" || result.Attempts[0].Reason != "no spatial information found" {
		t.Errorf("unexpected first attempt: %+v", result.Attempts[0])
	}
	if result.Attempts[1].Strategy != "second" {
		t.Errorf("unexpected second attempt: %+v", result.Attempts[1])
	}
}

func TestPanicIsIsolated(t *testing.T) {
	angry := &fakeStrategy{name: "angry", panics: true}
	calm := &fakeStrategy{name: "calm", outcome: successOutcome()}

	o := NewOrchestrator([]extract.Strategy{angry, calm}, render.PreviewConfig{})
	result := o.Process(testSample(t, "s1"))

	if !result.Succeeded || result.Tier != "calm" {
		t.Fatalf("panic in one strategy blocked later tiers: %+v", result)
	}
	if len(result.Attempts) != 1 || result.Attempts[0].Strategy != "angry" {
		t.Fatalf("panic attempt not recorded: %+v", result.Attempts)
	}
}

func TestAllStrategiesExhausted(t *testing.T) {
	o := NewOrchestrator([]extract.Strategy{
		&fakeStrategy{name: "a", outcome: extract.Deferred("nope")},
		&fakeStrategy{name: "b", err: os.ErrNotExist},
	}, render.PreviewConfig{})

	sample := testSample(t, "s1")
	result := o.Process(sample)

	if result.Succeeded {
		t.Fatal("expected failure when every strategy defers or errors")
	}
	if len(result.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(result.Attempts))
	}
	if _, err := os.Stat(filepath.Join(sample.Output, DatasetFileName)); !os.IsNotExist(err) {
		t.Error("no artifacts should be written for a failed sample")
	}
}

func TestImageFailureLeavesNoPartialOutput(t *testing.T) {
	// A valid dataset whose tissue image cannot be copied must not leave a
	// dataset document behind when the remaining tiers also fail.
	broken := successOutcome()
	broken.Image = nil
	broken.ImagePath = filepath.Join(t.TempDir(), "vanished.png")

	o := NewOrchestrator([]extract.Strategy{
		&fakeStrategy{name: "broken", outcome: broken},
		&fakeStrategy{name: "last", outcome: extract.Deferred("nope")},
	}, render.PreviewConfig{})

	sample := testSample(t, "s1")
	result := o.Process(sample)
	if result.Succeeded {
		t.Fatal("expected failure when the image cannot be written")
	}

	if _, err := os.Stat(filepath.Join(sample.Output, DatasetFileName)); !os.IsNotExist(err) {
		t.Error("dataset document written despite image failure")
	}
	if _, err := os.Stat(filepath.Join(sample.Output, ImageFileName)); !os.IsNotExist(err) {
		t.Error("image artifact written despite image failure")
	}
	entries, err := os.ReadDir(sample.Output)
	if err != nil {
		t.Fatalf("reading output dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("staging residue left in output dir: %v", entries)
	}
}

func TestImageFailureAdvancesToNextTier(t *testing.T) {
	broken := successOutcome()
	broken.Image = nil
	broken.ImagePath = filepath.Join(t.TempDir(), "vanished.png")

	o := NewOrchestrator([]extract.Strategy{
		&fakeStrategy{name: "broken", outcome: broken},
		&fakeStrategy{name: "good", outcome: successOutcome()},
	}, render.PreviewConfig{})

	sample := testSample(t, "s1")
	result := o.Process(sample)
	if !result.Succeeded || result.Tier != "good" {
		t.Fatalf("expected the next tier to win, got %+v", result)
	}
	if _, err := os.Stat(filepath.Join(sample.Output, DatasetFileName)); err != nil {
		t.Errorf("dataset artifact missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(sample.Output, ImageFileName)); err != nil {
		t.Errorf("image artifact missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(sample.Output, DatasetFileName+".tmp")); !os.IsNotExist(err) {
		t.Error("staging file left behind after success")
	}
}

func TestInvalidDatasetRejected(t *testing.T) {
	broken := successOutcome()
	broken.Dataset.NSpots = 99

	o := NewOrchestrator([]extract.Strategy{
		&fakeStrategy{name: "broken", outcome: broken},
	}, render.PreviewConfig{})

	result := o.Process(testSample(t, "s1"))
	if result.Succeeded {
		t.Fatal("invalid dataset should not count as success")
	}
}

// demoOrchestrator wires the real strategy stack against a demo fixture dir.
func demoOrchestrator(t *testing.T, demoDir string) *Orchestrator {
	t.Helper()
	return NewOrchestrator([]extract.Strategy{
		&extract.Structured{},
		extract.Introspection{},
		&extract.DemoFallback{Reader: demo.NewReader(demoDir)},
	}, render.PreviewConfig{})
}

func writeDemoFixture(t *testing.T, base, sample string) {
	t.Helper()
	dir := filepath.Join(base, sample)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	docs := map[string]string{
		"spatial_coordinates.json":      `{"A1": {"x": 10.0, "y": 20.0}}`,
		"expression_matrix_subset.json": `{"GENE1": {"A1": 3.5}}`,
	}
	for name, content := range docs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
}

func TestFallsThroughToDemoTier(t *testing.T) {
	demoDir := t.TempDir()
	writeDemoFixture(t, demoDir, "p15")

	o := demoOrchestrator(t, demoDir)
	sample := config.Sample{
		Cloupe: filepath.Join(t.TempDir(), "GAERS_P15_PreSeizure.cloupe"),
		Name:   "p15",
		Output: filepath.Join(t.TempDir(), "out"),
	}

	result := o.Process(sample)
	if !result.Succeeded || result.Tier != "demo" {
		t.Fatalf("expected demo tier success, got %+v", result)
	}
	if len(result.Attempts) != 2 {
		t.Fatalf("expected structured and introspection deferrals, got %+v", result.Attempts)
	}

	doc, err := os.ReadFile(filepath.Join(sample.Output, DatasetFileName))
	if err != nil {
		t.Fatalf("reading dataset artifact: %v", err)
	}
	var ds schema.Dataset
	if err := json.Unmarshal(doc, &ds); err != nil {
		t.Fatalf("parsing dataset artifact: %v", err)
	}

	if ds.Source != "demo_data" {
		t.Errorf("expected source demo_data, got %q", ds.Source)
	}
	if ds.ScaleFactor != 1.0 {
		t.Errorf("expected scale_factor 1.0, got %g", ds.ScaleFactor)
	}
	if ds.NSpots != 1 || ds.NGenes != 1 {
		t.Errorf("unexpected counts: %d spots, %d genes", ds.NSpots, ds.NGenes)
	}
	if p := ds.Coordinates["A1"]; p.X != 10.0 || p.Y != 20.0 {
		t.Errorf("unexpected coordinates: %+v", p)
	}
	if ds.Expression["GENE1"]["A1"] != 3.5 {
		t.Errorf("unexpected expression: %v", ds.Expression)
	}
}

func TestRerunIsIdempotent(t *testing.T) {
	demoDir := t.TempDir()
	writeDemoFixture(t, demoDir, "p15")

	o := demoOrchestrator(t, demoDir)
	sample := config.Sample{
		Cloupe: filepath.Join(t.TempDir(), "missing.cloupe"),
		Name:   "p15",
		Output: filepath.Join(t.TempDir(), "out"),
	}

	if result := o.Process(sample); !result.Succeeded {
		t.Fatalf("first run failed: %+v", result)
	}
	first, err := os.ReadFile(filepath.Join(sample.Output, DatasetFileName))
	if err != nil {
		t.Fatalf("reading first output: %v", err)
	}

	if result := o.Process(sample); !result.Succeeded {
		t.Fatalf("second run failed: %+v", result)
	}
	second, err := os.ReadFile(filepath.Join(sample.Output, DatasetFileName))
	if err != nil {
		t.Fatalf("reading second output: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("rerun produced different dataset bytes")
	}
}

func TestBatchCoversEverySample(t *testing.T) {
	demoDir := t.TempDir()
	writeDemoFixture(t, demoDir, "p15")
	// p30 has no demo data and no readable container: it must fail alone.

	o := demoOrchestrator(t, demoDir)
	samples := []config.Sample{
		{Cloupe: "missing-a.cloupe", Name: "p15", Output: filepath.Join(t.TempDir(), "p15")},
		{Cloupe: "missing-b.cloupe", Name: "p30", Output: filepath.Join(t.TempDir(), "p30")},
	}

	results := RunBatch(samples, o)
	if len(results) != 2 {
		t.Fatalf("expected a result per sample, got %d", len(results))
	}
	if results[0].Sample != "p15" || !results[0].Succeeded {
		t.Errorf("unexpected p15 result: %+v", results[0])
	}
	if results[1].Sample != "p30" || results[1].Succeeded {
		t.Errorf("expected p30 to fail, got %+v", results[1])
	}
}

func TestPreviewArtifact(t *testing.T) {
	o := NewOrchestrator(
		[]extract.Strategy{&fakeStrategy{name: "first", outcome: successOutcome()}},
		render.PreviewConfig{Gene: "G", PointRadius: 1},
	)

	sample := testSample(t, "s1")
	if result := o.Process(sample); !result.Succeeded {
		t.Fatalf("process failed: %+v", result)
	}
	if _, err := os.Stat(filepath.Join(sample.Output, PreviewFileName)); err != nil {
		t.Errorf("preview artifact missing: %v", err)
	}
}
