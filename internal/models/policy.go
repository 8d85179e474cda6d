package models

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Policy 安全规范条目
type Policy struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Title       string `json:"title" gorm:"size:255;not null;uniqueIndex"`
	Level       int    `json:"level" gorm:"not null;index:idx_policies_level"`
	Description string `json:"description" gorm:"type:text"`
}

// CreatePolicy 创建规范
func CreatePolicy(db *gorm.DB, title string, level int, description string) (*Policy, error) {
	policy := &Policy{Title: title, Level: level, Description: description}
	if err := db.Create(policy).Error; err != nil {
		return nil, err
	}
	return policy, nil
}

// UpsertPolicy inserts a policy or, when the title exists, overwrites its level and description.
func UpsertPolicy(db *gorm.DB, title string, level int, description string) (*Policy, error) {
	policy := &Policy{Title: title, Level: level, Description: description}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "title"}},
		DoUpdates: clause.AssignmentColumns([]string{"level", "description"}),
	}).Create(policy).Error
	if err != nil {
		return nil, err
	}
	// 按数据库排序规则回查，冲突行的标题大小写可能与入参不同
	return takePolicyByTitle(db, title)
}

// GetPolicy 按 ID 获取规范
func GetPolicy(db *gorm.DB, id uint) (*Policy, error) {
	var policy Policy
	if err := db.First(&policy, id).Error; err != nil {
		return nil, translate(err)
	}
	return &policy, nil
}

// FindPolicyByTitle matches title exactly, case and trailing spaces included,
// whatever the column collation (MySQL's _ci collations compare loosely).
func FindPolicyByTitle(db *gorm.DB, title string) (*Policy, error) {
	policy, err := takePolicyByTitle(db, title)
	if err != nil {
		return nil, err
	}
	if policy.Title != title {
		return nil, ErrNotFound
	}
	return policy, nil
}

func takePolicyByTitle(db *gorm.DB, title string) (*Policy, error) {
	var policy Policy
	if err := db.Where("title = ?", title).Take(&policy).Error; err != nil {
		return nil, translate(err)
	}
	return &policy, nil
}

// ListCatalogPolicies returns every policy in catalog order (level, title).
func ListCatalogPolicies(db *gorm.DB) ([]Policy, error) {
	var policies []Policy
	if err := db.Order("level").Order("title").Find(&policies).Error; err != nil {
		return nil, err
	}
	return policies, nil
}

// ListPolicies 列表接口使用 level 倒序；level 为 nil 时不过滤
func ListPolicies(db *gorm.DB, level *int) ([]Policy, error) {
	var policies []Policy
	q := db.Order("level DESC").Order("title")
	if level != nil {
		q = q.Where("level = ?", *level)
	}
	if err := q.Find(&policies).Error; err != nil {
		return nil, err
	}
	return policies, nil
}

// UpdatePolicyDescription 覆盖规范描述
func UpdatePolicyDescription(db *gorm.DB, id uint, description string) (*Policy, error) {
	res := db.Model(&Policy{}).Where("id = ?", id).Update("description", description)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return GetPolicy(db, id)
}

// DeletePolicy removes a policy; its alerts go with it.
func DeletePolicy(db *gorm.DB, id uint) error {
	return deleteOne(db, &Policy{}, "id = ?", id)
}
