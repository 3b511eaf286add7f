// Package run records the history of load-test runs.
package run

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrRunNotFound       = errors.New("run not found")
	ErrInvalidTargetURL  = errors.New("target url must be an absolute http(s) url")
	ErrInvalidUsers      = errors.New("users must be at least 1")
	ErrInvalidDuration   = errors.New("duration must be positive")
	ErrInvalidStatus     = errors.New("invalid run status")
	ErrRunAlreadyStarted = errors.New("run already started")
	ErrRunNotRunning     = errors.New("run is not running")
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JSONMap is a custom type for JSON columns.
type JSONMap map[string]interface{}

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return json.Marshal(map[string]interface{}{})
	}
	return json.Marshal(j)
}

func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONMap)
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("failed to scan JSONMap: unsupported type")
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*j = m
	return nil
}

// ToJSONMap converts any JSON-encodable value (typically a report summary) to a JSONMap.
func ToJSONMap(v interface{}) (JSONMap, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m JSONMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Run is one load-test execution.
type Run struct {
	ID        uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	Status    Status     `json:"status" gorm:"type:varchar(20);not null;default:'created';index:idx_runs_status"`
	TargetURL string     `json:"target_url" gorm:"column:target_url;type:varchar(2048);not null"`
	Users     int        `json:"users" gorm:"not null"`
	Duration  int        `json:"duration" gorm:"column:duration_seconds;not null"`
	AIEnabled bool       `json:"ai_enabled" gorm:"column:ai_enabled;not null"`
	ReportDir string     `json:"report_dir" gorm:"column:report_dir;type:varchar(255)"`
	Summary   JSONMap    `json:"summary" gorm:"type:json"`
	Error     string     `json:"error,omitempty" gorm:"type:text"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	ElapsedMs *int64     `json:"elapsed_ms,omitempty" gorm:"column:elapsed_ms"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (r *Run) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = StatusCreated
	}
	return nil
}

// Validate checks the run parameters.
func (r *Run) Validate() error {
	u, err := url.Parse(r.TargetURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidTargetURL
	}
	if r.Users < 1 {
		return ErrInvalidUsers
	}
	if r.Duration < 1 {
		return ErrInvalidDuration
	}
	return nil
}

// Start marks the run as running.
func (r *Run) Start() error {
	if r.Status != StatusCreated {
		return ErrRunAlreadyStarted
	}
	now := time.Now()
	r.Status = StatusRunning
	r.StartTime = &now
	return nil
}

// Complete moves a running run to a terminal status with its summary.
func (r *Run) Complete(status Status, summary JSONMap) error {
	if !status.IsTerminal() {
		return ErrInvalidStatus
	}
	if r.Status != StatusRunning {
		return ErrRunNotRunning
	}
	now := time.Now()
	r.Status = status
	r.EndTime = &now
	r.Summary = summary
	if r.StartTime != nil {
		elapsed := now.Sub(*r.StartTime).Milliseconds()
		r.ElapsedMs = &elapsed
	}
	return nil
}
