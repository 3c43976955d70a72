package dto

// ActivityQuery is bound from activity list query strings.
type ActivityQuery struct {
	Type     string `form:"type"`
	Role     string `form:"role"`
	Days     int    `form:"days" validate:"omitempty,min=1,max=365"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=500"`
	Format   string `form:"format"`
}

// BackfillResult summarises a backfill run.
type BackfillResult struct {
	Staff    int `json:"staff"`
	Students int `json:"students"`
	Parents  int `json:"parents"`
	Skipped  int `json:"skipped"`
}
