package store

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PutSetting inserts or replaces a key/value setting.
func (s *GormStore) PutSetting(key, value string) error {
	model := SettingModel{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&model).Error
}

// GetSetting returns the value and whether the key exists.
func (s *GormStore) GetSetting(key string) (string, bool, error) {
	var model SettingModel
	if err := s.db.First(&model, "key = ?", key).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return model.Value, true, nil
}

// DeleteSetting removes a key. Missing keys are not an error.
func (s *GormStore) DeleteSetting(key string) error {
	return s.db.Delete(&SettingModel{}, "key = ?", key).Error
}
