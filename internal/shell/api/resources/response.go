// Package resources provides JSON:API resource implementations for the
// skybite API, served through api2go.
package resources

import (
	"strconv"

	"github.com/artpar/skybite/internal/shell/store"
	"github.com/manyminds/api2go"
)

// =============================================================================
// Response Helper
// =============================================================================

// Response implements api2go.Responder for custom responses.
type Response struct {
	Code int
	Res  interface{}
	Meta map[string]interface{}
}

// Metadata returns additional metadata for the response.
func (r *Response) Metadata() map[string]interface{} {
	return r.Meta
}

// Result returns the response data.
func (r *Response) Result() interface{} {
	return r.Res
}

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int {
	return r.Code
}

// =============================================================================
// Query Helpers
// =============================================================================

// ListOptionsFrom reads page[size], page[offset] and page[number].
func ListOptionsFrom(req api2go.Request) store.ListOptions {
	opts := store.DefaultListOptions()

	if limit := queryParam(req, "page[size]"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			opts.Limit = l
		}
	}
	if offset := queryParam(req, "page[offset]"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			opts.Offset = o
		}
	}
	if pageNum := queryParam(req, "page[number]"); pageNum != "" {
		if pn, err := strconv.Atoi(pageNum); err == nil && pn > 0 {
			opts.Offset = (pn - 1) * opts.Limit
		}
	}
	return opts.Normalize()
}

// queryParam returns the first value of a query parameter. Filters are read
// from the plain request too, since api2go only keeps the ones it knows.
func queryParam(req api2go.Request, key string) string {
	if v, ok := req.QueryParams[key]; ok && len(v) > 0 {
		return v[0]
	}
	if req.PlainRequest != nil {
		return req.PlainRequest.URL.Query().Get(key)
	}
	return ""
}

func listMeta(count int, opts store.ListOptions) map[string]interface{} {
	return map[string]interface{}{
		"total":  count,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	}
}
