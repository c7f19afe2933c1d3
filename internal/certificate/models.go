package certificate

import (
	"time"
)

type TemplateType string

const (
	TypeImage TemplateType = "image"
	TypeHTML  TemplateType = "html"
)

type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

type PackageTier string

const (
	TierFree PackageTier = "free"
	TierPaid PackageTier = "paid"
)

const (
	// DefaultFontSize is applied when a field mapping carries no size.
	DefaultFontSize = 36

	// DefaultColor is pure black, the mapper UI's default.
	DefaultColor = "#000000"

	// MaxWidthMargin is the horizontal margin subtracted from the remaining
	// page width when a field mapping has no explicit max width.
	MaxWidthMargin = 40
)

// FieldMapping is one overlay rule: which record key to draw, where, and how.
// Coordinates are background-image pixel coordinates; the page is sized so
// that pixels and points coincide. X/Y are deliberately unvalidated; the
// mapper UI is the guardrail, and out-of-bounds fields render off-page.
type FieldMapping struct {
	SourceKey string    `json:"source_key" db:"source_key"`
	X         float64   `json:"x" db:"x"`
	Y         float64   `json:"y" db:"y"`
	FontRef   string    `json:"font_ref,omitempty" db:"font_ref"`
	FontSize  float64   `json:"font_size,omitempty" db:"font_size"`
	Color     string    `json:"color,omitempty" db:"color"`
	MaxWidth  float64   `json:"max_width,omitempty" db:"max_width"`
	Align     Alignment `json:"align,omitempty" db:"align"`
}

// Record is one flat row of input data. Values are strings or numbers; the
// renderer coerces them to text and never mutates the map.
type Record map[string]any

// RecordSource is a finite, restartable, ordered sequence of records.
type RecordSource interface {
	// Len reports the total number of records.
	Len() int
	// Reset rewinds the source to the first record.
	Reset()
	// Next returns the next record, or ok=false when exhausted.
	Next() (Record, bool)
}

// SliceSource is the slice-backed RecordSource used by the dataset parsers.
type SliceSource struct {
	records []Record
	pos     int
}

func NewSliceSource(records []Record) *SliceSource {
	return &SliceSource{records: records}
}

func (s *SliceSource) Len() int { return len(s.records) }

func (s *SliceSource) Reset() { s.pos = 0 }

func (s *SliceSource) Next() (Record, bool) {
	if s.pos >= len(s.records) {
		return nil, false
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, true
}

// ResolvedTemplate is a template whose background asset has already been
// fetched and decoded. Width/Height are the background's pixel dimensions and
// become the PDF page size in points.
type ResolvedTemplate struct {
	ID         string
	Type       TemplateType
	Fields     []FieldMapping
	Background []byte
	// ImageType is the gofpdf image type tag for Background ("PNG" or "JPG").
	ImageType string
	Width     float64
	Height    float64
}

// Options carries per-generation settings.
type Options struct {
	Tier PackageTier
}

// Free reports whether the generation runs on the free package tier and
// therefore gets watermarked output.
func (o Options) Free() bool { return o.Tier == "" || o.Tier == TierFree }

// CertificateEntry pairs one rendered output file with the record it came from.
type CertificateEntry struct {
	OutputName   string `json:"output_name"`
	SourceRecord Record `json:"source_record"`
}

// Batch is the bookkeeping object for one generation request. ArchivePath is
// set only after the archive has been fully flushed and closed.
type Batch struct {
	ID           string             `json:"id"`
	Dir          string             `json:"dir"`
	Certificates []CertificateEntry `json:"certificates"`
	ArchivePath  string             `json:"archive_path,omitempty"`
	StartedAt    time.Time          `json:"started_at"`
}
