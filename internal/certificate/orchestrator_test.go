package certificate

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator writes a stub file per render and records the order of
// records it saw.
type fakeGenerator struct {
	rendered []Record
	failOn   int // 1-based render index to fail at; 0 disables
}

func (f *fakeGenerator) RenderCertificate(_ context.Context, _ *ResolvedTemplate, rec Record, destPath string, _ Options) error {
	if f.failOn > 0 && len(f.rendered)+1 == f.failOn {
		return errors.New("disk full")
	}
	f.rendered = append(f.rendered, rec)
	return os.WriteFile(destPath, []byte("%PDF-stub"), 0o644)
}

func newTestOrchestrator(t *testing.T, gen Generator) (*Orchestrator, string) {
	t.Helper()
	workDir := t.TempDir()
	registry := NewRegistry()
	registry.Register(TypeImage, gen)
	return NewOrchestrator(registry, workDir, nil), workDir
}

func imageTemplate() *ResolvedTemplate {
	return &ResolvedTemplate{
		ID:         "tpl-1",
		Type:       TypeImage,
		Background: []byte{1},
		ImageType:  "PNG",
		Width:      1000,
		Height:     700,
	}
}

var outputNamePattern = regexp.MustCompile(`^certificate-[a-z0-9_-]+-[0-9a-f]{8}\.pdf$`)

func TestGenerateBatchOneFilePerRecordInOrder(t *testing.T) {
	gen := &fakeGenerator{}
	orchestrator, _ := newTestOrchestrator(t, gen)

	records := []Record{
		{"name": "Ada Lovelace"},
		{"name": "Alan Turing"},
		{"name": "Ada Lovelace"}, // duplicate display name
	}
	batch, err := orchestrator.GenerateBatch(context.Background(), imageTemplate(), NewSliceSource(records), Options{})
	require.NoError(t, err)

	require.Len(t, batch.Certificates, 3)
	for i, entry := range batch.Certificates {
		assert.Equal(t, records[i], entry.SourceRecord)
		assert.Regexp(t, outputNamePattern, entry.OutputName)
	}
	assert.Contains(t, batch.Certificates[0].OutputName, "ada-lovelace")
	assert.Contains(t, batch.Certificates[1].OutputName, "alan-turing")

	// Same display name, distinct files.
	assert.NotEqual(t, batch.Certificates[0].OutputName, batch.Certificates[2].OutputName)
	assert.Equal(t, records, gen.rendered)
}

func TestGenerateBatchPositionalFallbackName(t *testing.T) {
	gen := &fakeGenerator{}
	orchestrator, _ := newTestOrchestrator(t, gen)

	batch, err := orchestrator.GenerateBatch(context.Background(), imageTemplate(),
		NewSliceSource([]Record{{"score": "97"}, {"score": "82"}}), Options{})
	require.NoError(t, err)

	require.Len(t, batch.Certificates, 2)
	assert.Contains(t, batch.Certificates[0].OutputName, "record-1")
	assert.Contains(t, batch.Certificates[1].OutputName, "record-2")
}

func TestGenerateBatchEmptySourceFailsFast(t *testing.T) {
	gen := &fakeGenerator{}
	orchestrator, workDir := newTestOrchestrator(t, gen)

	_, err := orchestrator.GenerateBatch(context.Background(), imageTemplate(), NewSliceSource(nil), Options{})

	assert.ErrorIs(t, err, ErrNoRecords)
	entries, readErr := os.ReadDir(workDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "no batch directory may be created for an empty source")
	assert.Empty(t, gen.rendered)
}

func TestGenerateBatchUnsupportedType(t *testing.T) {
	orchestrator, _ := newTestOrchestrator(t, &fakeGenerator{})

	tpl := imageTemplate()
	tpl.Type = TypeHTML
	_, err := orchestrator.GenerateBatch(context.Background(), tpl, NewSliceSource([]Record{{"name": "x"}}), Options{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported template type")
	assert.Contains(t, err.Error(), "image", "error should list registered types")
}

func TestGenerateBatchFatalRenderAborts(t *testing.T) {
	gen := &fakeGenerator{failOn: 2}
	orchestrator, workDir := newTestOrchestrator(t, gen)

	_, err := orchestrator.GenerateBatch(context.Background(), imageTemplate(),
		NewSliceSource([]Record{{"name": "a"}, {"name": "b"}, {"name": "c"}}), Options{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 2")

	// The partial batch directory is left in place for the reaper.
	entries, readErr := os.ReadDir(workDir)
	require.NoError(t, readErr)
	require.Len(t, entries, 1)
	files, readErr := os.ReadDir(filepath.Join(workDir, entries[0].Name()))
	require.NoError(t, readErr)
	assert.Len(t, files, 1)
}

func TestGenerateBatchArchiveMatchesManifest(t *testing.T) {
	gen := &fakeGenerator{}
	orchestrator, _ := newTestOrchestrator(t, gen)

	batch, err := orchestrator.GenerateBatch(context.Background(), imageTemplate(),
		NewSliceSource([]Record{{"name": "Ada"}, {"name": "Alan"}}), Options{})
	require.NoError(t, err)
	require.NotEmpty(t, batch.ArchivePath)

	zr, err := zip.OpenReader(batch.ArchivePath)
	require.NoError(t, err)
	defer zr.Close()

	archived := map[string]bool{}
	for _, f := range zr.File {
		archived[f.Name] = true
	}

	assert.Len(t, archived, len(batch.Certificates))
	for _, entry := range batch.Certificates {
		assert.True(t, archived[entry.OutputName], "archive missing %s", entry.OutputName)
	}
}

func TestSanitizeFragment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ada Lovelace", "ada-lovelace"},
		{"  José Ñandú  ", "jos-and"},
		{"///", ""},
		{"UPPER_case-ok", "upper_case-ok"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFragment(tt.in), "input %q", tt.in)
	}
}

func TestRecordSourceRestartable(t *testing.T) {
	source := NewSliceSource([]Record{{"a": "1"}, {"a": "2"}})

	first := drain(source)
	source.Reset()
	second := drain(source)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, source.Len())
}

func drain(s RecordSource) []Record {
	var out []Record
	for {
		rec, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, rec)
	}
}
