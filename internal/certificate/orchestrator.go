package certificate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"certmint/certificate-portal/certificate-portal-backend/pkg/archive"
)

// ErrNoRecords is returned before any rendering when the record source is
// empty. A zero-length batch is a client error, not a degenerate success.
var ErrNoRecords = errors.New("dataset contains no records")

// nameKeys is the priority list of record keys checked when deriving the
// human-identifying part of an output filename. Case variants are listed
// explicitly because datasets arrive with whatever headers users typed.
var nameKeys = []string{"name", "Name", "NAME", "fullname", "fullName", "FullName", "full_name", "Full Name"}

var unsafeChars = regexp.MustCompile(`[^a-z0-9_-]+`)

const maxNameFragmentLen = 48

// Orchestrator drives a full generation batch: one render per record in
// source order, deterministic collision-free output names, and a single
// archive of the results. It is type-agnostic: the per-record render step
// comes from the injected registry.
type Orchestrator struct {
	registry *Registry
	workDir  string
	logger   *zap.Logger
}

func NewOrchestrator(registry *Registry, workDir string, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{registry: registry, workDir: workDir, logger: logger}
}

// GenerateBatch renders one certificate per record and archives the output
// directory. On a fatal per-record error the batch aborts and the partially
// written directory is left in place for the stale-batch reaper; nothing is
// deleted here (crash-only design, callers own cleanup policy).
func (o *Orchestrator) GenerateBatch(ctx context.Context, tpl *ResolvedTemplate, source RecordSource, opts Options) (*Batch, error) {
	if tpl == nil {
		return nil, fmt.Errorf("generate batch: %w", ErrTemplateAsset)
	}
	if source == nil || source.Len() == 0 {
		return nil, ErrNoRecords
	}

	generator, err := o.registry.Resolve(tpl.Type)
	if err != nil {
		return nil, err
	}

	batchID := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), shortSuffix())
	dir := filepath.Join(o.workDir, batchID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create batch directory: %w", err)
	}

	batch := &Batch{
		ID:        batchID,
		Dir:       dir,
		StartedAt: time.Now(),
	}

	o.logger.Info("starting certificate batch",
		zap.String("batch_id", batchID),
		zap.String("template_id", tpl.ID),
		zap.Int("records", source.Len()))

	source.Reset()
	for index := 0; ; index++ {
		rec, ok := source.Next()
		if !ok {
			break
		}

		outputName := outputFileName(rec, index)
		if err := generator.RenderCertificate(ctx, tpl, rec, filepath.Join(dir, outputName), opts); err != nil {
			return nil, fmt.Errorf("batch %s record %d: %w", batchID, index+1, err)
		}

		batch.Certificates = append(batch.Certificates, CertificateEntry{
			OutputName:   outputName,
			SourceRecord: rec,
		})
	}

	archivePath := filepath.Join(o.workDir, fmt.Sprintf("certificates-%s.zip", batchID))
	if err := archive.CompressDir(dir, archivePath); err != nil {
		return nil, fmt.Errorf("archive batch %s: %w", batchID, err)
	}
	batch.ArchivePath = archivePath

	o.logger.Info("certificate batch complete",
		zap.String("batch_id", batchID),
		zap.Int("certificates", len(batch.Certificates)),
		zap.String("archive", archivePath))

	return batch, nil
}

// outputFileName builds certificate-<fragment>-<suffix>.pdf. The fragment
// comes from a name-like record key when one exists, else a positional
// placeholder; the random suffix keeps names unique even when many records
// share the same display name.
func outputFileName(rec Record, index int) string {
	fragment := ""
	for _, key := range nameKeys {
		if text := coerceText(rec[key]); strings.TrimSpace(text) != "" {
			fragment = sanitizeFragment(text)
			break
		}
	}
	if fragment == "" {
		fragment = fmt.Sprintf("record-%d", index+1)
	}
	return fmt.Sprintf("certificate-%s-%s.pdf", fragment, shortSuffix())
}

// sanitizeFragment lowers the fragment into a filesystem-safe charset and
// bounds its length.
func sanitizeFragment(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = unsafeChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxNameFragmentLen {
		s = strings.Trim(s[:maxNameFragmentLen], "-")
	}
	return s
}

func shortSuffix() string {
	return uuid.NewString()[:8]
}
