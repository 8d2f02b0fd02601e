package interp

import "github.com/roach88/scp/internal/scp"

// shapeSet is a lookup table of supported FIXED/ASSIGN shapes.
type shapeSet map[scp.Shape]bool

func shapes(list ...scp.Shape) shapeSet {
	s := make(shapeSet, len(list))
	for _, sh := range list {
		s[sh] = true
	}
	return s
}

var (
	// searchElStr3: any shape with at least one FIXED position.
	searchStr3Shapes = shapes("faa", "afa", "aaf", "ffa", "faf", "aff", "fff")

	// searchElStr5: arcs ASSIGN with at least one FIXED outer position,
	// except f_a_f_a_f, plus the fully FIXED quintuple.
	searchStr5Shapes = shapes("faaaa", "aafaa", "aaaaf", "fafaa", "faaaf", "aafaf", "fffff")

	// Set searches and erasures over triples: arc ASSIGN, an end FIXED.
	str3EndShapes = shapes("faa", "aaf", "faf")

	// Set searches and erasures over quintuples: arcs ASSIGN, any outer
	// position FIXED.
	str5OuterShapes = shapes("faaaa", "aafaa", "aaaaf", "fafaa", "faaaf", "aafaf", "fafaf")
)
