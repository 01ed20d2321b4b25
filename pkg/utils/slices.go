package utils

// LimitPageSlice returns the page-th run of limit items of s and len(s).
// Pages start at 1.
func LimitPageSlice[T any](s []T, page, limit int) ([]T, int) {
	return LimitPageSliceFunc(s, page, limit, nil)
}

// LimitPageSliceFunc pages over the items of s accepted by filter; a nil
// filter accepts everything. The total counts accepted items.
func LimitPageSliceFunc[T any](s []T, page, limit int, filter func(T) bool) ([]T, int) {
	page = max(page, 1)
	limit = max(limit, 1)

	total := 0
	if filter != nil {
		for _, item := range s {
			if filter(item) {
				total++
			}
		}
	} else {
		total = len(s)
	}

	data := make([]T, 0, min(limit, total))
	if total == 0 || (page-1)*limit >= total {
		return data, total
	}

	skip := (page - 1) * limit
	pos := 0
	for _, item := range s {
		if filter != nil && !filter(item) {
			continue
		}
		if pos >= skip {
			data = append(data, item)
			if len(data) == limit {
				break
			}
		}
		pos++
	}
	return data, total
}
