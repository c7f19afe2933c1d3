package template

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"certmint/certificate-portal/certificate-portal-backend/internal/certificate"
	"certmint/certificate-portal/certificate-portal-backend/pkg/storage"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateTemplate(ctx context.Context, tpl *Template) error {
	args := m.Called(ctx, tpl)
	return args.Error(0)
}

func (m *MockRepository) GetTemplateByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Template), args.Error(1)
}

func (m *MockRepository) ListTemplates(ctx context.Context, ownerID *uuid.UUID) ([]Template, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).([]Template), args.Error(1)
}

func (m *MockRepository) UpdateTemplate(ctx context.Context, tpl *Template) error {
	args := m.Called(ctx, tpl)
	return args.Error(0)
}

func (m *MockRepository) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestBlobs(t *testing.T) storage.BlobStorage {
	t.Helper()
	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return blobs
}

func TestCreateTemplate(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, newTestBlobs(t))

	ctx := context.Background()
	mockRepo.On("CreateTemplate", ctx, mock.AnythingOfType("*template.Template")).Return(nil)

	tpl, err := service.CreateTemplate(ctx, CreateRequest{
		OwnerID:        uuid.New(),
		Name:           "Completion Certificate",
		BackgroundName: "bg.png",
		Background:     bytes.NewReader(pngBytes(t, 800, 600)),
		Fields: []certificate.FieldMapping{
			{SourceKey: "name", X: 400, Y: 220, Align: certificate.AlignCenter},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "Completion Certificate", tpl.Name)
	assert.Equal(t, certificate.TypeImage, tpl.Type, "type defaults to image")
	assert.NotEmpty(t, tpl.BackgroundKey)

	fields, err := tpl.FieldMappings()
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "name", fields[0].SourceKey)

	mockRepo.AssertExpectations(t)
}

func TestResolveForRender(t *testing.T) {
	mockRepo := new(MockRepository)
	blobs := newTestBlobs(t)
	service := NewService(mockRepo, blobs)

	ctx := context.Background()
	tplID := uuid.New()

	require.NoError(t, blobs.Upload(ctx, "templates/bg.png", bytes.NewReader(pngBytes(t, 1000, 700))))

	fieldsJSON, err := json.Marshal([]certificate.FieldMapping{
		{SourceKey: "name", X: 500, Y: 280, Align: certificate.AlignCenter, MaxWidth: 800},
	})
	require.NoError(t, err)

	mockRepo.On("GetTemplateByID", ctx, tplID).Return(&Template{
		ID:            tplID,
		Type:          certificate.TypeImage,
		BackgroundKey: "templates/bg.png",
		Fields:        fieldsJSON,
	}, nil)

	resolved, err := service.ResolveForRender(ctx, tplID)
	require.NoError(t, err)

	assert.Equal(t, tplID.String(), resolved.ID)
	assert.Equal(t, "PNG", resolved.ImageType)
	assert.Equal(t, float64(1000), resolved.Width)
	assert.Equal(t, float64(700), resolved.Height)
	require.Len(t, resolved.Fields, 1)
	assert.Equal(t, certificate.AlignCenter, resolved.Fields[0].Align)

	mockRepo.AssertExpectations(t)
}

func TestResolveForRenderMissingBackground(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, newTestBlobs(t))

	ctx := context.Background()
	tplID := uuid.New()

	mockRepo.On("GetTemplateByID", ctx, tplID).Return(&Template{
		ID:            tplID,
		Type:          certificate.TypeImage,
		BackgroundKey: "templates/missing.png",
	}, nil)

	_, err := service.ResolveForRender(ctx, tplID)
	assert.ErrorIs(t, err, certificate.ErrTemplateAsset)
}

func TestResolveForRenderUnknownTemplate(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, newTestBlobs(t))

	ctx := context.Background()
	tplID := uuid.New()
	mockRepo.On("GetTemplateByID", ctx, tplID).Return(nil, nil)

	_, err := service.ResolveForRender(ctx, tplID)
	assert.ErrorIs(t, err, certificate.ErrTemplateAsset)
}
