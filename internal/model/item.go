package model

import "time"

// Item is a catalog entry lent out by quantity, not by individual unit.
type Item struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	Category      string     `json:"category,omitempty"`
	ImageMime     string     `json:"image_mime,omitempty"`
	TotalQuantity int        `json:"total_quantity"`
	Available     int        `json:"available"`
	Status        ItemStatus `json:"status"`
	Condition     Condition  `json:"condition"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
}

// ItemStatus is derived from the cached available count and the condition.
type ItemStatus string

// Item statuses.
const (
	ItemStatusAvailable   ItemStatus = "available"
	ItemStatusAllBorrowed ItemStatus = "all_borrowed"
	ItemStatusMaintenance ItemStatus = "maintenance"
)

// Valid reports whether s is a known item status.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusAvailable, ItemStatusAllBorrowed, ItemStatusMaintenance:
		return true
	}
	return false
}

// Condition is the physical state of an item.
type Condition string

// Item conditions.
const (
	ConditionGood        Condition = "good"
	ConditionFair        Condition = "fair"
	ConditionNeedsRepair Condition = "needs_repair"
)

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	switch c {
	case ConditionGood, ConditionFair, ConditionNeedsRepair:
		return true
	}
	return false
}

// DeriveItemStatus maps an available count and condition to an item status.
// A needs_repair condition wins over any count.
func DeriveItemStatus(available int, condition Condition) ItemStatus {
	switch {
	case condition == ConditionNeedsRepair:
		return ItemStatusMaintenance
	case available <= 0:
		return ItemStatusAllBorrowed
	default:
		return ItemStatusAvailable
	}
}
