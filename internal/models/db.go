package models

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

const defaultListLimit = 100

// SigAlertCreated is emitted with the new *AlertView as sender.
const SigAlertCreated = "alert.created"

// SigAlertDeleted is emitted with the deleted alert id (uint) as sender.
const SigAlertDeleted = "alert.deleted"

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Policy{}, &Video{}, &Alert{})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func deleteOne(db *gorm.DB, model any, query string, args ...any) error {
	res := db.Where(query, args...).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
