package loader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/refseg/refseg/pkg/cloud"
	"github.com/refseg/refseg/pkg/model"
)

// ElementSummary describes a loaded element collection for display.
func ElementSummary(raw []model.RawElement) string {
	faces, cyls := 0, 0
	types := map[string]int{}
	for _, re := range raw {
		faces += len(re.Polygons)
		cyls += len(re.Cylinders)
		types[re.Type]++
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d elements (%d faces, %d cylinders)", len(raw), faces, cyls)
	if len(types) > 0 {
		b.WriteString(": ")
		first := true
		for _, t := range sortedKeys(types) {
			if !first {
				b.WriteString(", ")
			}
			first = false
			name := t
			if name == "" {
				name = "untyped"
			}
			fmt.Fprintf(&b, "%d %s", types[t], name)
		}
	}
	return b.String()
}

// CloudSummary describes a loaded point buffer for display.
func CloudSummary(c *cloud.Cloud) string {
	if c.Len() == 0 {
		return "0 points"
	}
	bb := c.Bounds()
	return fmt.Sprintf("%d points, bounds [%.3f %.3f %.3f]..[%.3f %.3f %.3f]",
		c.Len(), bb.Min.X, bb.Min.Y, bb.Min.Z, bb.Max.X, bb.Max.Y, bb.Max.Z)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
