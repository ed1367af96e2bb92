package repo

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page turns a 1-based page number and size into offset and limit. Out of
// range values fall back to the first page and the default size.
func Page(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return (page - 1) * size, size
}
