package models

import "time"

// Direction indicates whether money entered or left the farm.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	PayCash   PaymentMethod = "CASH"
	PayMpesa  PaymentMethod = "MPESA"
	PayBank   PaymentMethod = "BANK"
	PayCredit PaymentMethod = "CREDIT"
)

// Electronic reports whether the method produces a transaction reference.
func (m PaymentMethod) Electronic() bool {
	return m == PayMpesa || m == PayBank
}

// FinancialLedger is one append-only money movement row. Every committed
// operation that moves money produces exactly one of these.
type FinancialLedger struct {
	ID            string        `bson:"_id"`
	Amount        float64       `bson:"amount"`
	Direction     Direction     `bson:"direction"`
	PaymentMethod PaymentMethod `bson:"paymentMethod"`
	Reference     string        `bson:"reference,omitempty"`
	Category      string        `bson:"category"`
	Description   string        `bson:"description,omitempty"`
	ContactID     string        `bson:"contactId,omitempty"`
	Date          string        `bson:"date"`
	CreatedAt     time.Time     `bson:"createdAt"`
}

// ContactRole tags a contact's relationship to the farm.
type ContactRole string

const (
	RoleSupplier ContactRole = "SUPPLIER"
	RoleCustomer ContactRole = "CUSTOMER"
	RoleVet      ContactRole = "VET"
	RoleStaffCt  ContactRole = "STAFF"
)

// Contact is a person or business the farm trades with.
type Contact struct {
	ID        string      `bson:"_id"`
	Name      string      `bson:"name"`
	Role      ContactRole `bson:"role"`
	Phone     string      `bson:"phone"`
	CreatedAt time.Time   `bson:"createdAt"`
}
