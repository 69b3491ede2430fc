package models

import "time"

// ItemType classifies inventory items.
type ItemType string

const (
	ItemFeed       ItemType = "FEED"
	ItemMedication ItemType = "MEDICATION"
	ItemEquipment  ItemType = "EQUIPMENT"
	ItemLivestock  ItemType = "LIVESTOCK"
	ItemProduce    ItemType = "PRODUCE"
	ItemSupply     ItemType = "SUPPLY"
)

// InventoryItem is a stocked item. Items are created on first reference by
// name and never deleted; Quantity must stay >= 0.
type InventoryItem struct {
	ID          string     `bson:"_id"`
	Name        string     `bson:"name"`
	Type        ItemType   `bson:"type"`
	Quantity    float64    `bson:"quantity"`
	Unit        string     `bson:"unit"`
	CostPerUnit float64    `bson:"costPerUnit"`
	BagWeight   float64    `bson:"bagWeight,omitempty"`
	ExpiryDate  *time.Time `bson:"expiryDate,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt"`
}

// InventoryLogEntry records a single stock movement. Append-only; the sign of
// QuantityChange matches the direction of the movement (production and
// purchases positive, usage, sales and spoilage negative).
type InventoryLogEntry struct {
	ID             string    `bson:"_id"`
	ItemID         string    `bson:"itemId"`
	ItemName       string    `bson:"itemName"`
	QuantityChange float64   `bson:"quantityChange"`
	LedgerID       string    `bson:"ledgerId,omitempty"`
	Notes          string    `bson:"notes,omitempty"`
	CreatedAt      time.Time `bson:"createdAt"`
}
