package models

import "time"

type LinkedAccount struct {
	ID               string    `json:"id"`
	Type             Provider  `json:"type"`
	Balance          float64   `json:"balance"`
	IsActive         bool      `json:"isActive"`
	ConnectionStatus bool      `json:"connectionStatus"`
	Description      string    `json:"description"`
	UserID           string    `json:"userId"`
	LastUpdated      time.Time `json:"lastUpdated"`
}
