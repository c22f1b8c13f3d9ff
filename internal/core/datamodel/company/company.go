package company

import "time"

type Company struct {
	ID             int64     `gorm:"primaryKey"`
	Name           string    `gorm:"column:name;not null"`
	Country        string    `gorm:"column:country;not null"`
	CurrencyCode   string    `gorm:"column:currency_code;size:3;not null"`
	CurrencySymbol string    `gorm:"column:currency_symbol"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Company) TableName() string {
	return "companies"
}
