package endpoint

import (
	"strings"

	"github.com/neria/manager/internal/pkg/jsonvalue"
)

const listKey = "list"

// locateList finds the row array of a response: at the configured path, then
// under a literal "list" member. atPath tells which one matched.
func locateList(data jsonvalue.Value, responsePath string) (items []jsonvalue.Value, atPath bool, ok bool) {
	if v, found := data.Get(responsePath); found {
		if items, isArr := v.Items(); isArr {
			return items, true, true
		}
	}
	if v, found := data.Field(listKey); found {
		if items, isArr := v.Items(); isArr {
			return items, false, true
		}
	}
	return nil, false, false
}

// extractItems returns the rows of a response, which may itself be an array.
func extractItems(data jsonvalue.Value, responsePath string) []jsonvalue.Value {
	if items, ok := data.Items(); ok {
		return items
	}
	if data.Kind() == jsonvalue.KindObject {
		if items, _, ok := locateList(data, responsePath); ok {
			return items
		}
	}
	return nil
}

func countItems(data jsonvalue.Value, responsePath string) int {
	return len(extractItems(data, responsePath))
}

// itemYear reads a row's "year" member as a number or a numeric string.
func itemYear(item jsonvalue.Value) (int, bool) {
	y, ok := item.Field("year")
	if !ok {
		return 0, false
	}
	return y.Int()
}

func matches(item jsonvalue.Value, q Query) bool {
	if q.HasYear {
		if y, ok := itemYear(item); !ok || y != q.Year {
			return false
		}
	}
	if len(q.Keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(item.String())
	for _, kw := range q.Keywords {
		if strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func filterList(items []jsonvalue.Value, q Query, limit int) []jsonvalue.Value {
	out := make([]jsonvalue.Value, 0, min(len(items), limit))
	for _, item := range items {
		if len(out) >= limit {
			break
		}
		if matches(item, q) {
			out = append(out, item)
		}
	}
	return out
}

// filterData reduces a response to the rows matching q. Rows found at the
// configured path are wrapped as {path, list, totalRegisters}; rows under
// "list" keep the surrounding document. Objects without rows pass through.
func filterData(data jsonvalue.Value, responsePath string, q Query, limit int) jsonvalue.Value {
	switch data.Kind() {
	case jsonvalue.KindNull:
		return jsonvalue.Array(nil)
	case jsonvalue.KindArray:
		items, _ := data.Items()
		return jsonvalue.Array(filterList(items, q, limit))
	case jsonvalue.KindObject:
		items, atPath, ok := locateList(data, responsePath)
		if !ok {
			return data
		}
		filtered := filterList(items, q, limit)
		if atPath {
			fields := map[string]jsonvalue.Value{
				listKey:          jsonvalue.Array(filtered),
				"totalRegisters": jsonvalue.Int(len(filtered)),
			}
			if strings.TrimSpace(responsePath) != "" {
				fields["path"] = jsonvalue.String(responsePath)
			}
			return jsonvalue.Object(fields)
		}
		return data.With(listKey, jsonvalue.Array(filtered)).
			With("totalRegisters", jsonvalue.Int(len(filtered)))
	default:
		return data
	}
}
