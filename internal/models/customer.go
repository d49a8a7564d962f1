package models

import (
	"strings"

	"gorm.io/gorm"
)

// Customer is the ordering side of the marketplace.
type Customer struct {
	gorm.Model

	CustomerID    string `json:"customer_id" gorm:"uniqueIndex"`
	Name          string `json:"name"`
	Phone         string `json:"phone" gorm:"uniqueIndex"`
	Email         string `json:"email" gorm:"index"`
	IsActive      bool   `json:"is_active" gorm:"default:true"`
	PhoneVerified bool   `json:"phone_verified" gorm:"default:false"`
	EmailVerified bool   `json:"email_verified" gorm:"default:false"`
	TotalOrders   int    `json:"total_orders" gorm:"default:0"`
}

// BeforeCreate generates the CustomerID and normalizes the phone number.
func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.CustomerID == "" {
		c.CustomerID = GenerateID("CUS")
	}
	c.Phone = NormalizePhone(c.Phone)
	return nil
}

// NormalizePhone ensures numbers carry the +91 country prefix.
func NormalizePhone(phone string) string {
	phone = strings.ReplaceAll(phone, " ", "")
	if phone != "" && !strings.HasPrefix(phone, "+") {
		phone = "+91" + strings.TrimPrefix(phone, "91")
	}
	return phone
}
