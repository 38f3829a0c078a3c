package store

import (
	"encoding/json"
	"strconv"
	"time"

	"gorm.io/gorm"

	"contentforge/pkg/domain"
)

// CreateTemplate inserts the template and its initial active version.
func (s *GormStore) CreateTemplate(t domain.Template, createdBy string) (domain.Template, error) {
	now := time.Now().UTC()
	model := TemplateModel{
		Name:        t.Name,
		Prompt:      t.Prompt,
		ContentType: string(t.ContentType),
		SEOEnabled:  t.SEOEnabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		version := TemplateVersionModel{
			TemplateID:    model.ID,
			VersionNumber: 1,
			Name:          model.Name,
			Prompt:        model.Prompt,
			ContentType:   model.ContentType,
			SEOEnabled:    model.SEOEnabled,
			ChangeLog:     "initial version",
			IsActive:      true,
			CreatedBy:     createdBy,
			CreatedAt:     now,
		}
		return tx.Create(&version).Error
	})
	if err != nil {
		return domain.Template{}, err
	}
	return templateFromModel(model), nil
}

// UpdateTemplate snapshots a new active version carrying the changes.
func (s *GormStore) UpdateTemplate(t domain.Template, createdBy, changeLog string) (domain.Template, error) {
	now := time.Now().UTC()
	var model TemplateModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model, "id = ?", t.ID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		model.Name = t.Name
		model.Prompt = t.Prompt
		model.ContentType = string(t.ContentType)
		model.SEOEnabled = t.SEOEnabled
		model.UpdatedAt = now
		if err := tx.Save(&model).Error; err != nil {
			return err
		}
		return s.appendVersion(tx, model, createdBy, changeLog, now)
	})
	if err != nil {
		return domain.Template{}, err
	}
	return templateFromModel(model), nil
}

// appendVersion deactivates current versions and inserts the next one.
func (s *GormStore) appendVersion(tx *gorm.DB, model TemplateModel, createdBy, changeLog string, now time.Time) error {
	if err := tx.Model(&TemplateVersionModel{}).
		Where("template_id = ? AND is_active = ?", model.ID, true).
		Update("is_active", false).Error; err != nil {
		return err
	}
	var latest TemplateVersionModel
	next := 1
	err := tx.Where("template_id = ?", model.ID).
		Order("version_number DESC").
		First(&latest).Error
	if err == nil {
		next = latest.VersionNumber + 1
	} else if err != gorm.ErrRecordNotFound {
		return err
	}
	version := TemplateVersionModel{
		TemplateID:    model.ID,
		VersionNumber: next,
		Name:          model.Name,
		Prompt:        model.Prompt,
		ContentType:   model.ContentType,
		SEOEnabled:    model.SEOEnabled,
		ChangeLog:     changeLog,
		IsActive:      true,
		CreatedBy:     createdBy,
		CreatedAt:     now,
	}
	return tx.Create(&version).Error
}

// GetTemplate returns one template by ID.
func (s *GormStore) GetTemplate(id int64) (domain.Template, error) {
	var model TemplateModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Template{}, ErrNotFound
		}
		return domain.Template{}, err
	}
	return templateFromModel(model), nil
}

// ListTemplates returns all templates ordered by name.
func (s *GormStore) ListTemplates() ([]domain.Template, error) {
	var models []TemplateModel
	if err := s.db.Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Template, 0, len(models))
	for _, m := range models {
		res = append(res, templateFromModel(m))
	}
	return res, nil
}

// DeleteTemplate removes a template and its version history.
func (s *GormStore) DeleteTemplate(id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&TemplateModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Delete(&TemplateVersionModel{}, "template_id = ?", id).Error
	})
}

// ListVersions returns version history, newest first.
func (s *GormStore) ListVersions(templateID int64) ([]domain.TemplateVersion, error) {
	var models []TemplateVersionModel
	if err := s.db.Where("template_id = ?", templateID).
		Order("version_number DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.TemplateVersion, 0, len(models))
	for _, m := range models {
		res = append(res, templateVersionFromModel(m))
	}
	return res, nil
}

// RestoreVersion copies an old version's content into a new active
// version, keeping the full history intact.
func (s *GormStore) RestoreVersion(templateID int64, versionNumber int, createdBy string) (domain.Template, error) {
	now := time.Now().UTC()
	var model TemplateModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var target TemplateVersionModel
		if err := tx.Where("template_id = ? AND version_number = ?", templateID, versionNumber).
			First(&target).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrVersionConflict
			}
			return err
		}
		if err := tx.First(&model, "id = ?", templateID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		model.Name = target.Name
		model.Prompt = target.Prompt
		model.ContentType = target.ContentType
		model.SEOEnabled = target.SEOEnabled
		model.UpdatedAt = now
		if err := tx.Save(&model).Error; err != nil {
			return err
		}
		return s.appendVersion(tx, model, createdBy,
			"restored from version "+strconv.Itoa(versionNumber), now)
	})
	if err != nil {
		return domain.Template{}, err
	}
	return templateFromModel(model), nil
}

func templateFromModel(m TemplateModel) domain.Template {
	return domain.Template{
		ID:          m.ID,
		Name:        m.Name,
		Prompt:      m.Prompt,
		ContentType: domain.ContentType(m.ContentType),
		SEOEnabled:  m.SEOEnabled,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func templateVersionFromModel(m TemplateVersionModel) domain.TemplateVersion {
	version := domain.TemplateVersion{
		ID:            m.ID,
		TemplateID:    m.TemplateID,
		VersionNumber: m.VersionNumber,
		Name:          m.Name,
		Prompt:        m.Prompt,
		ContentType:   domain.ContentType(m.ContentType),
		SEOEnabled:    m.SEOEnabled,
		ChangeLog:     m.ChangeLog,
		IsActive:      m.IsActive,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
	}
	if len(m.Variables) > 0 {
		_ = json.Unmarshal(m.Variables, &version.Variables)
	}
	return version
}
