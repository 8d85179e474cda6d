package models

import "gorm.io/gorm"

// Stats 数据库统计
type Stats struct {
	Users         int64         `json:"users"`
	Policies      int64         `json:"policies"`
	Alerts        int64         `json:"alerts"`
	Videos        int64         `json:"videos"`
	AlertsByLevel map[int]int64 `json:"alerts_by_level"`
}

func GetStats(db *gorm.DB) (*Stats, error) {
	st := &Stats{AlertsByLevel: map[int]int64{}}
	counts := []struct {
		model any
		dst   *int64
	}{
		{&User{}, &st.Users},
		{&Policy{}, &st.Policies},
		{&Alert{}, &st.Alerts},
		{&Video{}, &st.Videos},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Count(c.dst).Error; err != nil {
			return nil, err
		}
	}

	var rows []struct {
		Level int
		Count int64
	}
	err := db.Model(&Policy{}).
		Select("policies.level AS level, COUNT(alerts.id) AS count").
		Joins("LEFT JOIN alerts ON alerts.policy_id = policies.id").
		Group("policies.level").Order("policies.level").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		st.AlertsByLevel[r.Level] = r.Count
	}
	return st, nil
}
