package main

import (
	"encoding/json"
	"fmt"

	"SafeStack/internal/models"

	"gorm.io/gorm"
)

type policyEntry struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Level       int    `json:"level"`
	Description string `json:"description"`
}

type policyFile struct {
	Version  string        `json:"version"`
	Policies []policyEntry `json:"policies"`
}

// parsePolicies accepts {"version","policies":[...]} or a bare array.
func parsePolicies(data []byte) (*policyFile, error) {
	var f policyFile
	if err := json.Unmarshal(data, &f); err != nil {
		var list []policyEntry
		if err2 := json.Unmarshal(data, &list); err2 != nil {
			return nil, fmt.Errorf("parse policy file: %w", err)
		}
		f.Policies = list
	}
	for i, p := range f.Policies {
		if p.Title == "" {
			return nil, fmt.Errorf("policy #%d has no title", i+1)
		}
	}
	return &f, nil
}

// importPolicies upserts by title. With replace, existing policies and
// their alerts are removed first.
func importPolicies(db *gorm.DB, f *policyFile, replace bool) (int, error) {
	n := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		if replace {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Alert{}).Error; err != nil {
				return err
			}
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Policy{}).Error; err != nil {
				return err
			}
		}
		for _, p := range f.Policies {
			if _, err := models.UpsertPolicy(tx, p.Title, p.Level, p.Description); err != nil {
				return fmt.Errorf("upsert %q: %w", p.Title, err)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
