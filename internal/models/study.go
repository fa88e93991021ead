package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/irt-tools/cat-service/internal/config"
)

type StudyStatus string

const (
	StudyDraft    StudyStatus = "draft"
	StudyActive   StudyStatus = "active"
	StudyArchived StudyStatus = "archived"
)

// Study binds an item bank to a validated configuration snapshot. The
// snapshot is what sessions run against; editing the config after launch
// does not affect sessions already started.
type Study struct {
	ID     uint        `json:"id" gorm:"primaryKey"`
	Name   string      `json:"name" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	BankID uint        `json:"bank_id" gorm:"not null;index"`
	Status StudyStatus `json:"status" gorm:"not null;size:16;index;default:draft"`

	Config datatypes.JSONType[config.StudyConfig] `json:"config"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Bank *ItemBank `json:"-" gorm:"foreignKey:BankID"`
}

func (Study) TableName() string {
	return "studies"
}
