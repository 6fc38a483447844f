package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/bnc-guild/attendance-engine/internal/store"
)

const MAX_PAGE_SIZE = 200

// PaginationParams holds the shared page/page_size query parameters
type PaginationParams struct {
	Page     int `form:"page,default=1"`
	PageSize int `form:"page_size,default=50"`
}

// ParsePagination parses and caps the shared pagination parameters
func ParsePagination(c *gin.Context) (*PaginationParams, error) {
	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = 50
	}
	if params.PageSize > MAX_PAGE_SIZE {
		params.PageSize = MAX_PAGE_SIZE
	}

	return &params, nil
}

// ListLootQueryParams holds query parameters for GET /loot
type ListLootQueryParams struct {
	RaidIDs     []uint64 `form:"raid_id"`
	CharacterID *uint64  `form:"character_id"`

	// IncludePassToken includes the designated pass item in summaries
	IncludePassToken bool `form:"include_pass_token,default=false"`
}

// ParseListLootQuery parses query parameters for the loot endpoints
func ParseListLootQuery(c *gin.Context) (*ListLootQueryParams, error) {
	var params ListLootQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}
	return &params, nil
}

// Filter converts the query parameters into a store filter
func (p *ListLootQueryParams) Filter() store.LootFilter {
	return store.LootFilter{
		RaidIDs:     p.RaidIDs,
		CharacterID: p.CharacterID,
	}
}
