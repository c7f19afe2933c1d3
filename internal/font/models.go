package font

import (
	"time"

	"github.com/google/uuid"
)

// Font is one user-uploaded font asset. Format is the container tag stored
// alongside the bytes ("ttf" or "otf").
type Font struct {
	ID         uuid.UUID `json:"id" db:"id"`
	OwnerID    uuid.UUID `json:"owner_id" db:"owner_id"`
	Name       string    `json:"name" db:"name"`
	Format     string    `json:"format" db:"format"`
	StorageKey string    `json:"storage_key" db:"storage_key"`
	FileSize   int64     `json:"file_size" db:"file_size"`
	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
}
