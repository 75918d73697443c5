package ranking

type LeaderboardQuery struct {
	Limit int `form:"limit" validate:"omitempty,min=1"`
}
