package pagination

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Params struct {
	Page     int `query:"page"`
	PageSize int `query:"page_size"`
}

type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// Normalize clamps the page to >= 1 and the page size to 1..MaxPageSize.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p Params) Limit() int32 {
	return int32(p.Normalize().PageSize)
}

func (p Params) Offset() int32 {
	n := p.Normalize()
	return int32((n.Page - 1) * n.PageSize)
}

func (p Params) Meta(total int64) Meta {
	n := p.Normalize()
	pages := int((total + int64(n.PageSize) - 1) / int64(n.PageSize))
	return Meta{
		Total:      total,
		Page:       n.Page,
		PageSize:   n.PageSize,
		TotalPages: pages,
	}
}
