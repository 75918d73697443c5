package rules

type CreateRuleRequest struct {
	Name      string    `json:"name" validate:"required,min=2,max=100"`
	EventType EventType `json:"event_type" validate:"required"`
	Points    int64     `json:"points" validate:"ne=0"`
	Priority  *int      `json:"priority,omitempty" validate:"omitempty,min=0,max=10000"`
	Exclusive bool      `json:"exclusive"`
	Condition string    `json:"condition,omitempty" validate:"max=500"`
	IsActive  *bool     `json:"is_active,omitempty"`
}

type UpdateRuleRequest struct {
	Name      *string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Points    *int64  `json:"points,omitempty" validate:"omitempty,ne=0"`
	Priority  *int    `json:"priority,omitempty" validate:"omitempty,min=0,max=10000"`
	Exclusive *bool   `json:"exclusive,omitempty"`
	Condition *string `json:"condition,omitempty" validate:"omitempty,max=500"`
	IsActive  *bool   `json:"is_active,omitempty"`
}
