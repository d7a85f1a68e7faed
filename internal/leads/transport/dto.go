package transport

import (
	"listing_leads_backend/internal/leads/domain"
)

// Request DTOs
type UpdateLeadRequest struct {
	Status              *string `json:"status,omitempty" validate:"omitempty,oneof=new contacted in-progress closed lost"`
	Notes               *string `json:"notes,omitempty" validate:"omitempty,max=5000"`
	AutoFollowUpEnabled *bool   `json:"autoFollowUpEnabled,omitempty"`
}

type ListLeadsRequest struct {
	Status   string `form:"status" validate:"omitempty,oneof=new contacted in-progress closed lost"`
	DealType string `form:"dealType" validate:"omitempty,oneof=purchase rental viewing"`
	MinScore *int   `form:"minScore" validate:"omitempty,min=0,max=100"`
	Limit    int    `form:"limit" validate:"omitempty,min=1,max=500"`
}

type HighPriorityRequest struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=100"`
}

// Response DTOs
type LeadListResponse struct {
	Items []domain.Lead `json:"items"`
	Total int           `json:"total"`
}

type RescoreResponse struct {
	LeadID         string                `json:"leadId"`
	PreviousScore  int                   `json:"previousScore"`
	Score          int                   `json:"score"`
	ScoreBreakdown domain.ScoreBreakdown `json:"scoreBreakdown"`
	BuyingIntent   domain.BuyingIntent   `json:"buyingIntent"`
}
