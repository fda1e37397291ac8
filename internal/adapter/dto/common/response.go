package common

// Pagination carries list paging metadata
type Pagination struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}

// ListResponse wraps a paginated collection
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

// NewListResponse builds a paginated list payload
func NewListResponse(items interface{}, limit, offset int, total int64) *ListResponse {
	return &ListResponse{
		Items: items,
		Pagination: Pagination{
			Limit:  limit,
			Offset: offset,
			Total:  total,
		},
	}
}
