package campaigns

type CreateCampaignRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=150"`
	Description string `json:"description" validate:"max=2000"`
}

type CreateRewardRequest struct {
	Name        string     `json:"name" validate:"required,min=2,max=150"`
	Description string     `json:"description" validate:"max=2000"`
	Kind        RewardKind `json:"kind" validate:"required,oneof=TOP_POSITION POINTS_THRESHOLD"`
	Threshold   int64      `json:"threshold" validate:"min=1"`
}
