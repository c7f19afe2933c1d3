package template

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"certmint/certificate-portal/certificate-portal-backend/internal/certificate"
)

// Template is the stored form of a certificate template: a background asset
// reference plus the ordered field mappings drawn over it. Field order is
// z-order during rendering.
type Template struct {
	ID            uuid.UUID                `json:"id" db:"id"`
	OwnerID       uuid.UUID                `json:"owner_id" db:"owner_id"`
	Name          string                   `json:"name" db:"name"`
	Type          certificate.TemplateType `json:"type" db:"type"`
	BackgroundKey string                   `json:"background_key" db:"background_key"`
	Fields        json.RawMessage          `json:"fields" db:"fields"`
	CreatedAt     time.Time                `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at" db:"updated_at"`
}

// FieldMappings decodes the stored field list.
func (t *Template) FieldMappings() ([]certificate.FieldMapping, error) {
	if len(t.Fields) == 0 {
		return nil, nil
	}
	var fields []certificate.FieldMapping
	if err := json.Unmarshal(t.Fields, &fields); err != nil {
		return nil, fmt.Errorf("decode field mappings for template %s: %w", t.ID, err)
	}
	return fields, nil
}
