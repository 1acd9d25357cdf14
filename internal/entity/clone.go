package entity

// cloneMap copies m so that later writes to either map, or to the slices and
// nested maps it holds, are not visible through the other. It never returns nil.
func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []byte:
		if t == nil {
			return t
		}
		return append([]byte(nil), t...)
	case []string:
		if t == nil {
			return t
		}
		return append([]string(nil), t...)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		if t == nil {
			return t
		}
		return cloneMap(t)
	case map[string]string:
		if t == nil {
			return t
		}
		out := make(map[string]string, len(t))
		for k, e := range t {
			out[k] = e
		}
		return out
	default:
		return v
	}
}
