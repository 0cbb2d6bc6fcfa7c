// Package documents provides database operations for document metadata.
//
// This package implements the DocumentStore interface defined in internal/http.
//
// # Interface Implementation
//
//	var _ http.DocumentStore = (*Repository)(nil)
//
// # Usage
//
//	repo := documents.NewRepository(db)
//	docs, err := repo.ListByUser(userID)
package documents

import (
	"errors"

	"gorm.io/gorm"

	"github.com/openshelf/openshelf/internal/entities"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrNotOwner  = errors.New("document belongs to a different user")
	ErrEmptyName = errors.New("document lookup requires a name")
)

// Repository handles all document database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new documents repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create stores metadata for a newly uploaded document.
func (r *Repository) Create(doc *entities.Document) error {
	return r.db.Create(doc).Error
}

// ListByUser returns all documents owned by a user, most recently
// touched first.
func (r *Repository) ListByUser(userID uint) ([]entities.Document, error) {
	var docs []entities.Document
	err := r.db.Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&docs).Error
	return docs, err
}

// GetByID retrieves a document, verifying ownership.
func (r *Repository) GetByID(id uint, userID uint) (*entities.Document, error) {
	var doc entities.Document
	err := r.db.First(&doc, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if doc.UserID != userID {
		return nil, ErrNotOwner
	}
	return &doc, nil
}

// UpdateProgress writes the reading position for a document, scoped so
// only the owning user's row can be mutated. Returns ErrNotFound when no
// row matched (wrong ID or wrong owner).
func (r *Repository) UpdateProgress(id uint, userID uint, marker string, percentage int, finished bool) error {
	result := r.db.Model(&entities.Document{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"progress":            marker,
			"progress_percentage": clampPercent(percentage),
			"is_finished":         finished,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateURL refreshes the presigned download URL after a listing.
func (r *Repository) UpdateURL(id uint, url string) error {
	return r.db.Model(&entities.Document{}).
		Where("id = ?", id).
		Update("url", url).Error
}

// Delete removes a document's metadata row, scoped to the owning user.
func (r *Repository) Delete(id uint, userID uint) error {
	result := r.db.Where("id = ? AND user_id = ?", id, userID).
		Delete(&entities.Document{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByStoragePath removes the metadata row for an object key. Used by
// the reconciliation sweep when the storage object is already gone.
func (r *Repository) DeleteByStoragePath(path string) (int64, error) {
	result := r.db.Where("storage_path = ?", path).
		Delete(&entities.Document{})
	return result.RowsAffected, result.Error
}

// ListAllStoragePaths returns every known object key with its document ID.
// Used by the reconciliation sweep.
func (r *Repository) ListAllStoragePaths() (map[string]uint, error) {
	var docs []entities.Document
	if err := r.db.Select("id", "storage_path").Find(&docs).Error; err != nil {
		return nil, err
	}
	paths := make(map[string]uint, len(docs))
	for _, d := range docs {
		paths[d.StoragePath] = d.ID
	}
	return paths, nil
}

// lookupStrategy resolves a possibly stale document reference to a row.
type lookupStrategy func(userID uint, name string) (*entities.Document, error)

// FindByReference resolves a document the reader page was opened with.
// The reference may be a storage path, an exact title, or only a fragment
// of the stored name (upload keys carry a timestamp prefix the UI strips).
// Strategies are tried in order; the first hit wins.
func (r *Repository) FindByReference(userID uint, name string) (*entities.Document, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	strategies := []lookupStrategy{
		r.findByStoragePath,
		r.findByExactTitle,
		r.findBySubstring,
	}

	for _, lookup := range strategies {
		doc, err := lookup(userID, name)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (r *Repository) findByStoragePath(userID uint, name string) (*entities.Document, error) {
	var doc entities.Document
	err := r.db.Where("user_id = ? AND storage_path = ?", userID, name).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *Repository) findByExactTitle(userID uint, name string) (*entities.Document, error) {
	var doc entities.Document
	err := r.db.Where("user_id = ? AND title = ?", userID, name).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *Repository) findBySubstring(userID uint, name string) (*entities.Document, error) {
	var doc entities.Document
	err := r.db.Where("user_id = ? AND (storage_path LIKE ? OR title LIKE ?)",
		userID, "%"+name+"%", "%"+name+"%").
		Order("updated_at DESC").
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
