package usecase

import "time"

// Published on every persisted status change.
type StatusChangedMsg struct {
	OrderID       string    `json:"orderId"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	DesignerID    string    `json:"designerId,omitempty"`
	EmbroidererID string    `json:"embroidererId,omitempty"`
	At            time.Time `json:"at"`
}

// Sent by the storefront on Kafka when a customer places an order.
type OrderPlacedMsg struct {
	OrderID  string          `json:"orderId"`
	Customer CustomerMsg     `json:"customer"`
	Total    string          `json:"total"` // decimal string, e.g. "89.90"
	PlacedAt time.Time       `json:"placedAt"`
	Items    []PlacedItemMsg `json:"items"`
}

type CustomerMsg struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type PlacedItemMsg struct {
	ID                string `json:"id"`
	GroupID           string `json:"groupId"`
	SKU               string `json:"sku"`
	ProductName       string `json:"productName"`
	CustomizationType string `json:"customizationType"`
	Quantity          int    `json:"quantity"`
	UnitPrice         string `json:"unitPrice"`
	Slots             int    `json:"slots"`
}
