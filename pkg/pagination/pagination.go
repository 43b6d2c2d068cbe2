package pagination

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any paginated query can request.
	MaxLimit = 100
)

// Params holds page-number pagination inputs from callers.
type Params struct {
	Page  int
	Limit int
}

// Meta describes the page that was actually returned.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Normalize clamps the params to valid values.
func Normalize(p Params) Params {
	p.Limit = NormalizeLimit(p.Limit)
	if p.Page < 1 {
		p.Page = 1
	}
	return p
}

// Offset converts the normalized page/limit pair into a row offset.
func (p Params) Offset() int {
	n := Normalize(p)
	return (n.Page - 1) * n.Limit
}

// MetaFor computes the response metadata for a total row count.
func MetaFor(p Params, total int64) Meta {
	n := Normalize(p)
	pages := int((total + int64(n.Limit) - 1) / int64(n.Limit))
	if pages < 1 {
		pages = 1
	}
	return Meta{
		Page:       n.Page,
		Limit:      n.Limit,
		Total:      total,
		TotalPages: pages,
	}
}
