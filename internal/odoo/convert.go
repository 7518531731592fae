package odoo

import "strconv"

// The XML-RPC layer hands back loosely typed values: ints may arrive as
// int64 or float64, absent relational fields as boolean false, and
// many2one fields as [id, display_name] pairs. These helpers normalize
// that zoo for callers.

// ToInt64 coerces an RPC scalar to int64.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// ToString coerces an RPC scalar to a string. Boolean false (Odoo's
// convention for an unset field) becomes the empty string.
func ToString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return ""
	case nil:
		return ""
	default:
		return ""
	}
}

// ToRecords converts a search_read result to a slice of records.
func ToRecords(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			records = append(records, rec)
		}
	}
	return records
}

// RelationID extracts the id of a many2one field value, which Odoo
// serializes as [id, display_name], or false when unset.
func RelationID(v any) (int64, bool) {
	pair, ok := v.([]any)
	if !ok || len(pair) == 0 {
		return 0, false
	}
	return ToInt64(pair[0])
}
