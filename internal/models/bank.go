package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/irt-tools/cat-service/internal/irt"
)

// ItemBank is a static catalog of calibrated items. It is read-only while
// sessions run against it.
type ItemBank struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string   `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	Model       irt.Model `json:"model" gorm:"not null;size:8" validate:"required,irt_model"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Items []Item `json:"items" gorm:"foreignKey:BankID;constraint:OnDelete:CASCADE"`
}

// Item is one test item with its calibrated parameters. Parameters are
// immutable once the bank is loaded.
type Item struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	BankID uint `json:"bank_id" gorm:"not null;index;uniqueIndex:idx_bank_external"`

	// ExternalID is the item's identifier within the bank, unique per bank.
	ExternalID string `json:"external_id" gorm:"not null;size:100;uniqueIndex:idx_bank_external" validate:"required,min=1,max=100"`

	// Position is the original bank order, used to break selection ties.
	Position int `json:"position" gorm:"not null;index"`

	Content  string `json:"content" gorm:"type:text;not null" validate:"required"`
	Category string `json:"category" gorm:"size:100;index"`

	Discrimination float64                      `json:"discrimination"`
	Difficulty     float64                      `json:"difficulty"`
	Guessing       float64                      `json:"guessing"`
	Thresholds     datatypes.JSONSlice[float64] `json:"thresholds,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Params assembles the psychometric parameters for the estimation and
// selection code.
func (i *Item) Params() irt.ItemParams {
	return irt.ItemParams{
		Discrimination: i.Discrimination,
		Difficulty:     i.Difficulty,
		Guessing:       i.Guessing,
		Thresholds:     []float64(i.Thresholds),
	}
}

func (ItemBank) TableName() string {
	return "item_banks"
}

func (Item) TableName() string {
	return "items"
}

// ItemIssue reports one invalid item found during bank validation.
type ItemIssue struct {
	ExternalID string `json:"external_id"`
	Position   int    `json:"position"`
	Message    string `json:"message"`
}
