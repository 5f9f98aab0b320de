package dto

import (
	"time"

	"FinanceFlow/internal/domain"
)

type Envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type NewsResponse struct {
	Items       []domain.Item           `json:"items"`
	RefreshedAt time.Time               `json:"refreshed_at"`
	StaleAt     time.Time               `json:"stale_at"`
	Fresh       bool                    `json:"fresh"`
	Quotes      map[string]domain.Quote `json:"quotes,omitempty"`
}

type AskRequest struct {
	Question     string `json:"question" binding:"required"`
	ContextItems int    `json:"context_items" binding:"omitempty,min=0"`
}

type AskResponse struct {
	Answer       string `json:"answer"`
	ContextItems int    `json:"context_items"`
}

type HealthResponse struct {
	Status     string           `json:"status"`
	WorkingSet WorkingSetStatus `json:"working_set"`
}

type WorkingSetStatus struct {
	Items       int        `json:"items"`
	Fresh       bool       `json:"fresh"`
	Refreshing  bool       `json:"refreshing"`
	RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
}
