package server

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// keywordsToLower lowercases bare JSON keywords (NULL, True, FALSE, ...)
// outside quoted strings, so clients that capitalize them still parse.
func keywordsToLower(in []byte) []byte {
	keywords := []string{"null", "true", "false"}
	out := make([]byte, len(in))
	copy(out, in)

	inString := false
	for i := 0; i < len(out); i++ {
		c := out[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			continue
		}
		for _, kw := range keywords {
			n := len(kw)
			if i+n <= len(out) && strings.EqualFold(string(out[i:i+n]), kw) {
				copy(out[i:i+n], kw)
				i += n - 1
				break
			}
		}
	}
	return out
}

var formArrayRe = regexp.MustCompile(`^([^\[\]]*)\[([^\[\]]*)\]\[([^\[\]]*)\]$`)

// foldFormArrays converts HTML form fields into a request data object.
// Fields named group[i][key] fold into an ordered array of objects under
// "group"; indexes may arrive out of order and set the entry order, and
// slots that no field fills are dropped, so sparse indexes close up.
// Every other field maps verbatim.
func foldFormArrays(values url.Values) map[string]any {
	data := make(map[string]any, len(values))
	groups := make(map[string][]map[string]any)

	for name, vals := range values {
		value := ""
		if len(vals) > 0 {
			value = vals[len(vals)-1]
		}
		m := formArrayRe.FindStringSubmatch(name)
		if m == nil {
			data[name] = value
			continue
		}
		idx, err := strconv.Atoi(m[2])
		if err != nil || idx < 0 {
			data[name] = value
			continue
		}
		grp, key := m[1], m[3]
		arr := groups[grp]
		for len(arr) <= idx {
			arr = append(arr, nil)
		}
		if arr[idx] == nil {
			arr[idx] = map[string]any{}
		}
		arr[idx][key] = value
		groups[grp] = arr
	}

	for grp, arr := range groups {
		seq := make([]any, 0, len(arr))
		for _, entry := range arr {
			if len(entry) != 0 {
				seq = append(seq, entry)
			}
		}
		data[grp] = seq
	}
	return data
}
