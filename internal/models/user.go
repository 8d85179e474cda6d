package models

import (
	"time"

	"gorm.io/gorm"
)

// User 仅用于手工告警的归属
type User struct {
	Email     string    `json:"email" gorm:"primaryKey;size:255"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// CreateUser returns ErrDuplicate when the email is taken.
func CreateUser(db *gorm.DB, email, name string) (*User, error) {
	if _, err := GetUser(db, email); err == nil {
		return nil, ErrDuplicate
	}
	user := &User{Email: email, Name: name}
	if err := db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func GetUser(db *gorm.DB, email string) (*User, error) {
	var user User
	if err := db.Where("email = ?", email).Take(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// ListUsers 按创建时间倒序
func ListUsers(db *gorm.DB) ([]User, error) {
	var users []User
	if err := db.Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func DeleteUser(db *gorm.DB, email string) error {
	return deleteOne(db, &User{}, "email = ?", email)
}
