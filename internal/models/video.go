package models

import (
	"time"

	"gorm.io/gorm"
)

type Video struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	URL       string    `json:"url" gorm:"column:url;type:text;not null"`
	Timestamp time.Time `json:"timestamp" gorm:"column:timestamp;autoCreateTime;index"`
}

// CreateVideo 每次分析都会新建一条记录，不去重
func CreateVideo(db *gorm.DB, url string) (*Video, error) {
	video := &Video{URL: url}
	if err := db.Create(video).Error; err != nil {
		return nil, err
	}
	return video, nil
}

func GetVideo(db *gorm.DB, id uint) (*Video, error) {
	var video Video
	if err := db.First(&video, id).Error; err != nil {
		return nil, translate(err)
	}
	return &video, nil
}

// ListVideos 按时间倒序
func ListVideos(db *gorm.DB, limit int) ([]Video, error) {
	var videos []Video
	if err := db.Order("timestamp DESC").Order("id DESC").Limit(normalizeLimit(limit)).Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

func DeleteVideo(db *gorm.DB, id uint) error {
	return deleteOne(db, &Video{}, "id = ?", id)
}
