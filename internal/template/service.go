package template

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"certmint/certificate-portal/certificate-portal-backend/internal/certificate"
	"certmint/certificate-portal/certificate-portal-backend/pkg/storage"
)

type Service interface {
	CreateTemplate(ctx context.Context, req CreateRequest) (*Template, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error)
	ListTemplates(ctx context.Context, ownerID *uuid.UUID) ([]Template, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields []certificate.FieldMapping) (*Template, error)
	DeleteTemplate(ctx context.Context, id uuid.UUID) error

	// ResolveForRender fetches and decodes the background asset, producing
	// the fully resolved template the rendering core consumes.
	ResolveForRender(ctx context.Context, id uuid.UUID) (*certificate.ResolvedTemplate, error)
}

type CreateRequest struct {
	OwnerID        uuid.UUID
	Name           string
	Type           certificate.TemplateType
	BackgroundName string
	Background     io.Reader
	Fields         []certificate.FieldMapping
}

type templateService struct {
	repo  Repository
	blobs storage.BlobStorage
}

func NewService(repo Repository, blobs storage.BlobStorage) Service {
	return &templateService{repo: repo, blobs: blobs}
}

func (s *templateService) CreateTemplate(ctx context.Context, req CreateRequest) (*Template, error) {
	if req.Type == "" {
		req.Type = certificate.TypeImage
	}

	fieldsJSON, err := json.Marshal(req.Fields)
	if err != nil {
		return nil, fmt.Errorf("encode field mappings: %w", err)
	}

	tplID := uuid.New()
	key := backgroundKey(tplID, req.BackgroundName)
	if err := s.blobs.Upload(ctx, key, req.Background); err != nil {
		return nil, err
	}

	tpl := &Template{
		ID:            tplID,
		OwnerID:       req.OwnerID,
		Name:          req.Name,
		Type:          req.Type,
		BackgroundKey: key,
		Fields:        fieldsJSON,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	if err := s.repo.CreateTemplate(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *templateService) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	return s.repo.GetTemplateByID(ctx, id)
}

func (s *templateService) ListTemplates(ctx context.Context, ownerID *uuid.UUID) ([]Template, error) {
	return s.repo.ListTemplates(ctx, ownerID)
}

func (s *templateService) UpdateFields(ctx context.Context, id uuid.UUID, fields []certificate.FieldMapping) (*Template, error) {
	tpl, err := s.repo.GetTemplateByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, fmt.Errorf("template %s not found", id)
	}

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode field mappings: %w", err)
	}
	tpl.Fields = fieldsJSON

	if err := s.repo.UpdateTemplate(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *templateService) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	tpl, err := s.repo.GetTemplateByID(ctx, id)
	if err != nil {
		return err
	}
	if tpl == nil {
		return nil
	}
	if err := s.blobs.Delete(ctx, tpl.BackgroundKey); err != nil {
		return err
	}
	return s.repo.DeleteTemplate(ctx, id)
}

func (s *templateService) ResolveForRender(ctx context.Context, id uuid.UUID) (*certificate.ResolvedTemplate, error) {
	tpl, err := s.repo.GetTemplateByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, fmt.Errorf("template %s: %w", id, certificate.ErrTemplateAsset)
	}

	fields, err := tpl.FieldMappings()
	if err != nil {
		return nil, err
	}

	reader, err := s.blobs.Download(ctx, tpl.BackgroundKey)
	if err != nil {
		return nil, fmt.Errorf("background %s: %w", tpl.BackgroundKey, certificate.ErrTemplateAsset)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("background %s: %w", tpl.BackgroundKey, certificate.ErrTemplateAsset)
	}

	data, imageType, width, height, err := decodeBackground(data)
	if err != nil {
		return nil, fmt.Errorf("background %s: %w", tpl.BackgroundKey, err)
	}

	return &certificate.ResolvedTemplate{
		ID:         tpl.ID.String(),
		Type:       tpl.Type,
		Fields:     fields,
		Background: data,
		ImageType:  imageType,
		Width:      width,
		Height:     height,
	}, nil
}

// decodeBackground extracts pixel dimensions and normalizes the image into a
// format the PDF engine accepts. PNG and JPEG pass through untouched; other
// decodable formats are re-encoded to PNG.
func decodeBackground(data []byte) ([]byte, string, float64, float64, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", 0, 0, fmt.Errorf("%w: undecodable image: %v", certificate.ErrTemplateAsset, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", 0, 0, fmt.Errorf("%w: empty image dimensions", certificate.ErrTemplateAsset)
	}

	switch format {
	case "png":
		return data, "PNG", float64(cfg.Width), float64(cfg.Height), nil
	case "jpeg":
		return data, "JPG", float64(cfg.Width), float64(cfg.Height), nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", 0, 0, fmt.Errorf("%w: %v", certificate.ErrTemplateAsset, err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, "", 0, 0, fmt.Errorf("%w: %v", certificate.ErrTemplateAsset, err)
	}
	return buf.Bytes(), "PNG", float64(cfg.Width), float64(cfg.Height), nil
}

func backgroundKey(id uuid.UUID, fileName string) string {
	ext := path.Ext(fileName)
	if ext == "" {
		ext = ".png"
	}
	return fmt.Sprintf("templates/%s/background%s", id, ext)
}
