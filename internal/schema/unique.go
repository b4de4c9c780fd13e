package schema

import "strconv"

// Disambiguate renames names that repeat across the combined attribute and
// dimension namespace of s. Attributes are scanned first, then dimensions,
// each in declared order; the first occurrence keeps its name and later ones
// get the lowest unused "_N" suffix starting at 2. The second result reports
// whether anything was renamed. Running Disambiguate on its own output is a
// no-op.
func Disambiguate(s *Schema) (*Schema, bool) {
	out, changed := Unique(s)
	return out[0], changed[0]
}

// Unique applies the Disambiguate rule across several schemas taken left to
// right, as if their names shared one namespace. Nil entries are passed
// through untouched. For each input the returned flag reports whether its
// schema was altered; unaltered schemas are returned as-is.
func Unique(schemas ...*Schema) ([]*Schema, []bool) {
	taken := make(map[string]struct{})
	for _, s := range schemas {
		if s == nil {
			continue
		}
		for _, a := range s.Attributes {
			taken[a.Name] = struct{}{}
		}
		for _, d := range s.Dimensions {
			taken[d.Name] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(taken))
	out := make([]*Schema, len(schemas))
	changed := make([]bool, len(schemas))
	for i, s := range schemas {
		if s == nil {
			continue
		}
		var renamed *Schema
		rename := func(name string) (string, bool) {
			if _, dup := seen[name]; !dup {
				seen[name] = struct{}{}
				return name, false
			}
			n := uniqueName(name, taken)
			taken[n] = struct{}{}
			seen[n] = struct{}{}
			return n, true
		}
		for j, a := range s.Attributes {
			if n, ok := rename(a.Name); ok {
				if renamed == nil {
					renamed = s.Clone()
				}
				renamed.Attributes[j].Name = n
			}
		}
		for j, d := range s.Dimensions {
			if n, ok := rename(d.Name); ok {
				if renamed == nil {
					renamed = s.Clone()
				}
				renamed.Dimensions[j].Name = n
			}
		}
		if renamed != nil {
			out[i], changed[i] = renamed, true
		} else {
			out[i] = s
		}
	}
	return out, changed
}

func uniqueName(name string, taken map[string]struct{}) string {
	if _, ok := taken[name]; !ok {
		return name
	}
	for n := 2; ; n++ {
		c := name + "_" + strconv.Itoa(n)
		if _, ok := taken[c]; !ok {
			return c
		}
	}
}
