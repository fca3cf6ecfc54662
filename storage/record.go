package storage

import (
	"encoding/json"
	"time"

	"github.com/signadot/sessiond/api"
)

type sessionRow struct {
	SessionID     string    `gorm:"column:session_id;primaryKey"`
	UserID        string    `gorm:"column:user_id"`
	Status        string    `gorm:"column:status"`
	CurrentTask   string    `gorm:"column:current_task"`
	Progress      float64   `gorm:"column:progress"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	LastActivity  time.Time `gorm:"column:last_activity"`
	ResourcesUsed string    `gorm:"column:resources_used"`
}

func (sessionRow) TableName() string {
	return "sessions"
}

func rowFromInfo(info *api.SessionInfo) (*sessionRow, error) {
	resources := info.ResourcesUsed
	if resources == nil {
		resources = map[string]any{}
	}
	blob, err := json.Marshal(resources)
	if err != nil {
		return nil, err
	}
	return &sessionRow{
		SessionID:     info.SessionID,
		UserID:        info.UserID,
		Status:        info.Status,
		CurrentTask:   info.CurrentTask,
		Progress:      info.Progress,
		CreatedAt:     info.CreatedAt,
		LastActivity:  info.LastActivity,
		ResourcesUsed: string(blob),
	}, nil
}

func (row *sessionRow) toInfo() (api.SessionInfo, error) {
	info := api.SessionInfo{
		SessionID:     row.SessionID,
		UserID:        row.UserID,
		Status:        row.Status,
		CurrentTask:   row.CurrentTask,
		Progress:      row.Progress,
		CreatedAt:     row.CreatedAt,
		LastActivity:  row.LastActivity,
		ResourcesUsed: map[string]any{},
	}
	if row.ResourcesUsed != "" {
		if err := json.Unmarshal([]byte(row.ResourcesUsed), &info.ResourcesUsed); err != nil {
			return api.SessionInfo{}, err
		}
	}
	return info, nil
}
