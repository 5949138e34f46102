package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestStatus tracks how far quoting on a purchase request has progressed.
type RequestStatus string

const (
	StatusOpen            RequestStatus = "OPEN"
	StatusPartiallyQuoted RequestStatus = "PARTIALLY_QUOTED"
	StatusClosed          RequestStatus = "CLOSED"
)

// PurchaseRequest is one procurement need raised through the assistant.
type PurchaseRequest struct {
	ID               uint          `json:"id" gorm:"primaryKey"`
	CategoryID       uint          `json:"category_id" gorm:"not null;index"`
	MaterialID       uint          `json:"material_id" gorm:"not null;index"`
	Specification    string        `json:"specification" gorm:"type:text;not null"`
	Quantity         int           `json:"quantity" gorm:"not null"`
	ProposalDeadline time.Time     `json:"proposal_deadline" gorm:"type:date;not null"`
	DeliveryDueDate  time.Time     `json:"delivery_due_date" gorm:"type:date;not null"`
	Status           RequestStatus `json:"status" gorm:"type:varchar(20);not null;default:'OPEN'"`
	CreatedAt        time.Time     `json:"created_at"`

	Category         *Category         `json:"category,omitempty"`
	Material         *Material         `json:"material,omitempty"`
	SupplierRequests []SupplierRequest `json:"supplier_requests,omitempty" gorm:"foreignKey:RequestID"`
}

// SupplierRequest tracks that a supplier was asked to quote on a purchase request.
// ProposalValue stays null until the supplier's quote is ingested.
type SupplierRequest struct {
	ID            uint                `json:"id" gorm:"primaryKey"`
	SupplierID    uint                `json:"supplier_id" gorm:"not null;uniqueIndex:uix_supplier_request"`
	RequestID     uint                `json:"request_id" gorm:"not null;uniqueIndex:uix_supplier_request"`
	ProposalValue decimal.NullDecimal `json:"proposal_value" gorm:"type:numeric(12,2)"`

	Supplier *Supplier `json:"supplier,omitempty"`
}

func (PurchaseRequest) TableName() string { return "purchase_requests" }
func (SupplierRequest) TableName() string { return "supplier_requests" }

// All lists every model in dependency order for migrations.
func All() []interface{} {
	return []interface{}{
		&Category{},
		&Material{},
		&Supplier{},
		&SupplierMaterial{},
		&PurchaseRequest{},
		&SupplierRequest{},
	}
}
