package models

import (
	"time"

	"gorm.io/gorm"
)

type Citizen struct {
	ID                 string `gorm:"type:varchar(128);primaryKey"`
	Email              string `gorm:"type:varchar(255);index;not null"`
	Status             string `gorm:"type:varchar(50);not null;default:'PENDING_PAYMENT'"`
	RegistrationStatus string `gorm:"type:varchar(50);not null;default:'REGISTER_START'"`

	BiometricRefID *string `gorm:"type:varchar(255)"`

	PaymentCustomerID     *string    `gorm:"type:varchar(255);index"`
	PaymentSubscriptionID *string    `gorm:"type:varchar(255);index"`
	PaymentInvoiceID      *string    `gorm:"type:varchar(255)"`
	PaymentIntentID       *string    `gorm:"type:varchar(255)"`
	CurrentPeriodEnd      *time.Time `gorm:"type:timestamp"`

	AvatarStyle      string  `gorm:"type:varchar(100)"`
	Gender           string  `gorm:"type:varchar(20)"`
	TempFaceImageURL string  `gorm:"type:text"`
	AvatarURL        *string `gorm:"type:text"`
	DocumentURL      *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
	BannedAt  *time.Time     `gorm:"type:timestamp"`
}

func (Citizen) TableName() string {
	return "citizens"
}
