package utils

type PaginationData struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// NormalizePage clamps page to >= 1 and falls back to defaultSize when
// pageSize is out of (0, maxSize].
func NormalizePage(page, pageSize, defaultSize, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || (maxSize > 0 && pageSize > maxSize) {
		pageSize = defaultSize
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return page, pageSize
}

func NewPagination(page, pageSize int, total int64) PaginationData {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return PaginationData{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

func Offset(page, pageSize int) int {
	return (page - 1) * pageSize
}
