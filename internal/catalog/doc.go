// Package catalog loads the work catalog: the universe of leaf evaluation
// tasks and the named aggregates grouping them.
//
// Catalog documents carry a root aggregate name and a groups mapping; JSON
// and YAML encodings are both accepted. A Catalog is immutable once built and
// is passed explicitly to the reconciler and status reporting.
package catalog
