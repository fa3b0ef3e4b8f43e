// Package geom defines the boundary-representation types for facet.
// A Brep owns a vertex arena; edges and faces refer to vertices by index.
// A Compound remembers the operand bodies a boolean operation consumed and
// caches the merged result. Both implement the sealed Body interface.
package geom
