// Package scan resolves type references and Go types into canonical
// descriptors.
//
// The scanner walks declared classes and Go struct layouts, binds generic
// parameters through explicit contexts, expands subclass sets and applies
// member options. Every failure carries the enclosing type chain. A failed
// scan leaves the descriptor table as it was.
package scan
