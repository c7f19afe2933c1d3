package font

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"certmint/certificate-portal/certificate-portal-backend/internal/certificate"
	"certmint/certificate-portal/certificate-portal-backend/pkg/storage"
)

type Service interface {
	UploadFont(ctx context.Context, req UploadRequest) (*Font, error)
	GetFont(ctx context.Context, id uuid.UUID) (*Font, error)
	ListFonts(ctx context.Context, ownerID *uuid.UUID) ([]Font, error)
	DeleteFont(ctx context.Context, id uuid.UUID) error

	// ResolveFont implements the rendering core's font lookup. The ref is a
	// font asset id; any miss surfaces as an error the renderer treats as
	// non-fatal.
	ResolveFont(ctx context.Context, ref string) (*certificate.FontAsset, error)
}

type UploadRequest struct {
	OwnerID  uuid.UUID
	Name     string
	FileName string
	FileSize int64
	Content  io.Reader
}

type fontService struct {
	repo  Repository
	blobs storage.BlobStorage
}

func NewService(repo Repository, blobs storage.BlobStorage) Service {
	return &fontService{repo: repo, blobs: blobs}
}

func (s *fontService) UploadFont(ctx context.Context, req UploadRequest) (*Font, error) {
	format := strings.TrimPrefix(strings.ToLower(path.Ext(req.FileName)), ".")
	if format != "ttf" && format != "otf" {
		return nil, fmt.Errorf("unsupported font format %q (want ttf or otf)", format)
	}

	fontID := uuid.New()
	key := fmt.Sprintf("fonts/%s.%s", fontID, format)
	if err := s.blobs.Upload(ctx, key, req.Content); err != nil {
		return nil, err
	}

	f := &Font{
		ID:         fontID,
		OwnerID:    req.OwnerID,
		Name:       req.Name,
		Format:     format,
		StorageKey: key,
		FileSize:   req.FileSize,
		UploadedAt: time.Now(),
	}

	if err := s.repo.CreateFont(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *fontService) GetFont(ctx context.Context, id uuid.UUID) (*Font, error) {
	return s.repo.GetFontByID(ctx, id)
}

func (s *fontService) ListFonts(ctx context.Context, ownerID *uuid.UUID) ([]Font, error) {
	return s.repo.ListFonts(ctx, ownerID)
}

func (s *fontService) DeleteFont(ctx context.Context, id uuid.UUID) error {
	f, err := s.repo.GetFontByID(ctx, id)
	if err != nil {
		return err
	}
	if f == nil {
		return nil
	}
	if err := s.blobs.Delete(ctx, f.StorageKey); err != nil {
		return err
	}
	return s.repo.DeleteFont(ctx, id)
}

func (s *fontService) ResolveFont(ctx context.Context, ref string) (*certificate.FontAsset, error) {
	id, err := uuid.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("font ref %q is not an asset id", ref)
	}

	f, err := s.repo.GetFontByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("font %s not found", ref)
	}

	reader, err := s.blobs.Download(ctx, f.StorageKey)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", ref, err)
	}

	return &certificate.FontAsset{Bytes: data, Format: f.Format}, nil
}
