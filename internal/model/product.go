package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog entry. CategoryID is a weak reference: there is no
// foreign key, deletion of referenced categories is guarded by the service.
type Product struct {
	ID          string          `json:"id" gorm:"type:char(36);primaryKey"`
	Name        string          `json:"name" gorm:"size:100;not null"`
	CategoryID  string          `json:"categoryId" gorm:"type:char(36);not null;index"`
	Description string          `json:"description" gorm:"type:text"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	// ImageURL holds the relative blob reference (/uploads/<name>) in storage
	// and the absolute URL once returned to clients.
	ImageURL  *string   `json:"imageUrl" gorm:"column:image_url;size:255"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	// Populated by joined reads only.
	CategoryName string `json:"categoryName" gorm:"->;-:migration"`
}

// BeforeCreate sets UUID before creating the record.
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
