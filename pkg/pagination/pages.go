package pagination

const (
	DefaultPageSize = 12
	MaxPageSize     = 50
)

// Page is a normalized page request for offset-based listings.
type Page struct {
	Number int
	Size   int
}

// PageMeta describes where a page sits in the full result set.
type PageMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// NewPage clamps raw inputs: page starts at 1 and size falls in 1..MaxPageSize.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

func (p Page) Limit() int {
	return p.Size
}

// Meta computes page counts for total rows.
func (p Page) Meta(total int64) PageMeta {
	if total < 0 {
		total = 0
	}
	size := int64(p.Size)
	totalPages := int((total + size - 1) / size)
	return PageMeta{
		Page:       p.Number,
		PageSize:   p.Size,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    p.Number < totalPages,
		HasPrev:    p.Number > 1,
	}
}
