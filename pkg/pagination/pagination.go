// Package pagination splits result lists into fixed-size pages.
package pagination

// Paginate returns consecutive pages of at most pageSize items. The last
// page may be shorter. Empty input or a non-positive pageSize yields no
// pages. Pages share the backing array of items.
func Paginate[T any](items []T, pageSize int) [][]T {
	if len(items) == 0 || pageSize <= 0 {
		return nil
	}
	pages := make([][]T, 0, (len(items)+pageSize-1)/pageSize)
	for start := 0; start < len(items); start += pageSize {
		end := min(start+pageSize, len(items))
		pages = append(pages, items[start:end:end])
	}
	return pages
}

// Page returns the 1-based page number of items and the total page count.
// An out-of-range page is empty.
func Page[T any](items []T, page, pageSize int) ([]T, int) {
	pages := Paginate(items, pageSize)
	if page < 1 || page > len(pages) {
		return []T{}, len(pages)
	}
	return pages[page-1], len(pages)
}
