package transport

import "context"

// MaxPageSize is the server-enforced cap on GraphQL page size (§6, §8).
const MaxPageSize = 50

// FetchPageFunc fetches one page given a cursor (empty for the first
// page) and a page size, returning the items and the resulting page info.
type FetchPageFunc[T any] func(ctx context.Context, cursor string, pageSize int) ([]T, PageInfo, error)

// Paginate drives a Relay-style cursor paginator: it calls fetch
// repeatedly until either the server reports no next page or totalLimit
// items have been collected, never requesting more than MaxPageSize items
// per call and never overshooting totalLimit (§8 boundary law). A
// totalLimit <= 0 means unlimited.
func Paginate[T any](ctx context.Context, totalLimit int, fetch FetchPageFunc[T]) ([]T, error) {
	var out []T
	cursor := ""
	for {
		pageSize := MaxPageSize
		if totalLimit > 0 {
			remaining := totalLimit - len(out)
			if remaining <= 0 {
				break
			}
			if remaining < pageSize {
				pageSize = remaining
			}
		}

		items, info, err := fetch(ctx, cursor, pageSize)
		if err != nil {
			return out, err
		}
		out = append(out, items...)

		if totalLimit > 0 && len(out) >= totalLimit {
			out = out[:totalLimit]
			break
		}
		if !info.HasNextPage || info.EndCursor == "" {
			break
		}
		cursor = info.EndCursor
	}
	return out, nil
}
