package models

import (
	"time"

	"gorm.io/gorm"
)

// Alert 违规告警，一条匹配成功的违规生成一条
type Alert struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	PolicyID       uint      `json:"policy_id" gorm:"not null;index:idx_alerts_policy_id"`
	Policy         *Policy   `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	VideoID        *uint     `json:"video_id" gorm:"index"`
	Video          *Video    `json:"-" gorm:"constraint:OnDelete:SET NULL"`
	ImageURLs      []string  `json:"image_urls" gorm:"column:image_urls;serializer:json;type:text"`
	AmendedImages  []string  `json:"amended_images" gorm:"serializer:json;type:text"`
	Explanation    string    `json:"explanation" gorm:"type:text"`
	Reasoning      string    `json:"reasoning" gorm:"type:text"`
	Severity       string    `json:"severity" gorm:"size:64"`
	VideoTimestamp string    `json:"video_timestamp" gorm:"size:32"`
	UserEmail      *string   `json:"user_email" gorm:"size:255;index"`
	User           *User     `json:"-" gorm:"foreignKey:UserEmail;references:Email;constraint:OnDelete:SET NULL"`
	Timestamp      time.Time `json:"timestamp" gorm:"column:timestamp;autoCreateTime;index:idx_alerts_timestamp"`
}

// AlertView is an Alert joined with its policy.
type AlertView struct {
	Alert
	PolicyTitle string `json:"policy_title"`
	PolicyLevel int    `json:"policy_level"`
}

// NewAlert carries the fields written when an alert is first created.
type NewAlert struct {
	PolicyID       uint
	VideoID        *uint
	ImageURLs      []string
	Explanation    string
	Reasoning      string
	Severity       string
	VideoTimestamp string
	UserEmail      *string
}

// AlertFilter 列表过滤条件，零值字段不参与过滤
type AlertFilter struct {
	PolicyID  *uint
	MinLevel  *int
	UserEmail string
	Limit     int
}

// CreateAlert 写入告警；外键不存在时由数据库拒绝
func CreateAlert(db *gorm.DB, in NewAlert) (*Alert, error) {
	images := in.ImageURLs
	if images == nil {
		images = []string{}
	}
	alert := &Alert{
		PolicyID:       in.PolicyID,
		VideoID:        in.VideoID,
		ImageURLs:      images,
		AmendedImages:  []string{},
		Explanation:    in.Explanation,
		Reasoning:      in.Reasoning,
		Severity:       in.Severity,
		VideoTimestamp: in.VideoTimestamp,
		UserEmail:      in.UserEmail,
	}
	if err := db.Omit("Policy", "Video", "User").Create(alert).Error; err != nil {
		return nil, err
	}
	return alert, nil
}

// AttachAmendedImages 只更新 amended_images 一列
func AttachAmendedImages(db *gorm.DB, id uint, urls []string) error {
	res := db.Model(&Alert{ID: id}).Select("AmendedImages").Updates(&Alert{AmendedImages: urls})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func GetAlert(db *gorm.DB, id uint) (*AlertView, error) {
	var alert Alert
	if err := db.Preload("Policy").First(&alert, id).Error; err != nil {
		return nil, translate(err)
	}
	return toView(alert), nil
}

// ListAlerts 最新的在前
func ListAlerts(db *gorm.DB, f AlertFilter) ([]AlertView, error) {
	q := db.Model(&Alert{}).Preload("Policy").
		Joins("JOIN policies ON policies.id = alerts.policy_id")
	if f.PolicyID != nil {
		q = q.Where("alerts.policy_id = ?", *f.PolicyID)
	}
	if f.MinLevel != nil {
		q = q.Where("policies.level >= ?", *f.MinLevel)
	}
	if f.UserEmail != "" {
		q = q.Where("alerts.user_email = ?", f.UserEmail)
	}

	var alerts []Alert
	err := q.Order("alerts.timestamp DESC").Order("alerts.id DESC").
		Limit(normalizeLimit(f.Limit)).Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	views := make([]AlertView, 0, len(alerts))
	for _, a := range alerts {
		views = append(views, *toView(a))
	}
	return views, nil
}

// ListAlertsByVideo returns a video's alerts in creation order.
func ListAlertsByVideo(db *gorm.DB, videoID uint) ([]Alert, error) {
	var alerts []Alert
	if err := db.Where("video_id = ?", videoID).Order("id").Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

func DeleteAlert(db *gorm.DB, id uint) error {
	return deleteOne(db, &Alert{}, "id = ?", id)
}

func toView(a Alert) *AlertView {
	v := &AlertView{Alert: a}
	if a.Policy != nil {
		v.PolicyTitle = a.Policy.Title
		v.PolicyLevel = a.Policy.Level
	}
	if v.ImageURLs == nil {
		v.ImageURLs = []string{}
	}
	if v.AmendedImages == nil {
		v.AmendedImages = []string{}
	}
	return v
}
