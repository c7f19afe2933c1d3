package certificate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"
)

// ErrTemplateAsset marks an unreadable or undecodable background asset. It is
// fatal for the whole batch: the background is shared by every record.
var ErrTemplateAsset = errors.New("template asset not found")

// baselineOffsetFactor converts the mapper UI's top-anchored click position to
// a text baseline: the origin drawn is (x, y - fontSize*0.75). The constant
// is empirical; every saved field mapping was placed against it, so changing
// it would shift all existing templates.
const baselineOffsetFactor = 0.75

const (
	watermarkText     = "FREE"
	watermarkFontSize = 48.0
	watermarkAlpha    = 0.35
	watermarkInset    = 24.0
)

// FontAsset is a resolved custom font: raw bytes plus a format tag ("ttf").
type FontAsset struct {
	Bytes  []byte
	Format string
}

// FontResolver fetches user-uploaded font assets by reference. A failed
// lookup is never fatal to a render; the renderer degrades to the default
// bold core font.
type FontResolver interface {
	ResolveFont(ctx context.Context, ref string) (*FontAsset, error)
}

// coreFonts are the font names gofpdf ships without embedding. Arial is
// accepted as an alias for Helvetica, matching what gofpdf itself does.
var coreFonts = map[string]string{
	"":          "Helvetica",
	"helvetica": "Helvetica",
	"arial":     "Helvetica",
	"times":     "Times",
	"courier":   "Courier",
}

// ImageRenderer produces one single-page PDF per record from an image-backed
// template. The page size equals the background's pixel dimensions, so field
// coordinates transfer 1:1 from the mapper UI.
type ImageRenderer struct {
	fonts  FontResolver
	logger *zap.Logger
}

func NewImageRenderer(fonts FontResolver, logger *zap.Logger) *ImageRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageRenderer{fonts: fonts, logger: logger}
}

// RenderCertificate writes exactly one PDF to destPath. A half-written file is
// removed on failure so callers never serve a truncated document.
func (r *ImageRenderer) RenderCertificate(ctx context.Context, tpl *ResolvedTemplate, rec Record, destPath string, opts Options) error {
	if tpl == nil || len(tpl.Background) == 0 || tpl.Width <= 0 || tpl.Height <= 0 {
		return fmt.Errorf("render certificate: %w", ErrTemplateAsset)
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: tpl.Width, Ht: tpl.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	imgOpts := gofpdf.ImageOptions{ImageType: tpl.ImageType, ReadDpi: false}
	pdf.RegisterImageOptionsReader("background", imgOpts, bytes.NewReader(tpl.Background))
	if pdf.Err() {
		return fmt.Errorf("render certificate: %w: %v", ErrTemplateAsset, pdf.Error())
	}
	pdf.ImageOptions("background", 0, 0, tpl.Width, tpl.Height, false, imgOpts, 0, "")

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	embedded := map[string]string{}

	for _, field := range tpl.Fields {
		text := coerceText(rec[field.SourceKey])
		if text == "" {
			// Missing or empty key: nothing is drawn, by contract.
			continue
		}

		size := field.FontSize
		if size <= 0 {
			size = DefaultFontSize
		}

		custom := r.selectFont(ctx, pdf, embedded, tpl.ID, field.FontRef, size)

		red, green, blue := parseHexColor(field.Color)
		pdf.SetTextColor(red, green, blue)

		maxWidth := field.MaxWidth
		if maxWidth <= 0 {
			maxWidth = tpl.Width - field.X - MaxWidthMargin
		}
		if maxWidth < 1 {
			maxWidth = 1
		}

		drawn := text
		if !custom {
			drawn = tr(text)
		}
		pdf.SetXY(field.X, field.Y-size*baselineOffsetFactor)
		pdf.CellFormat(maxWidth, size, drawn, "", 0, alignString(field.Align), false, 0, "")
	}

	if opts.Free() {
		r.drawWatermark(pdf, tpl)
	}

	if err := pdf.OutputFileAndClose(destPath); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("write certificate %s: %w", destPath, err)
	}
	return nil
}

// selectFont sets the active font for a field and reports whether a custom
// UTF-8 font is in use. Custom fonts are embedded once per document and
// reused across fields sharing the same reference. Any resolution failure
// degrades to Helvetica Bold with a logged warning.
func (r *ImageRenderer) selectFont(ctx context.Context, pdf *gofpdf.Fpdf, embedded map[string]string, templateID, ref string, size float64) bool {
	if family, ok := coreFonts[strings.ToLower(ref)]; ok {
		pdf.SetFont(family, "", size)
		return false
	}

	if family, ok := embedded[ref]; ok {
		pdf.SetFont(family, "", size)
		return true
	}

	if r.fonts != nil {
		asset, err := r.fonts.ResolveFont(ctx, ref)
		if err == nil && asset != nil && len(asset.Bytes) > 0 {
			family := fmt.Sprintf("custom-%d", len(embedded))
			pdf.AddUTF8FontFromBytes(family, "", asset.Bytes)
			if !pdf.Err() {
				embedded[ref] = family
				pdf.SetFont(family, "", size)
				return true
			}
			r.logger.Warn("failed to embed custom font, falling back to default",
				zap.String("template_id", templateID),
				zap.String("font_ref", ref),
				zap.Error(pdf.Error()))
			pdf.ClearError()
		} else {
			r.logger.Warn("failed to resolve custom font, falling back to default",
				zap.String("template_id", templateID),
				zap.String("font_ref", ref),
				zap.Error(err))
		}
	}

	pdf.SetFont("Helvetica", "B", size)
	return false
}

// drawWatermark stamps the free-tier marker in the lower-right corner, after
// all fields so it stays on top.
func (r *ImageRenderer) drawWatermark(pdf *gofpdf.Fpdf, tpl *ResolvedTemplate) {
	pdf.SetAlpha(watermarkAlpha, "Normal")
	pdf.SetFont("Helvetica", "B", watermarkFontSize)
	pdf.SetTextColor(128, 128, 128)

	width := pdf.GetStringWidth(watermarkText) + 8
	pdf.SetXY(tpl.Width-width-watermarkInset, tpl.Height-watermarkFontSize-watermarkInset)
	pdf.CellFormat(width, watermarkFontSize, watermarkText, "", 0, "R", false, 0, "")

	pdf.SetAlpha(1.0, "Normal")
}

// coerceText renders a record value as the string to draw. Records carry
// strings or numbers; anything empty after coercion means "skip this field".
func coerceText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// parseHexColor parses "#RRGGBB" (or "RRGGBB"); anything unparsable is black.
func parseHexColor(s string) (r, g, b int) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}

func alignString(a Alignment) string {
	switch a {
	case AlignCenter:
		return "C"
	case AlignRight:
		return "R"
	default:
		return "L"
	}
}
