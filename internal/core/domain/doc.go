// Package domain defines the core business entities for Talksync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Segment: An aligned audio window plus visual frame span
//   - FeatureBatch: Extracted tensors grouped for one engine call
//   - Frame: A rendered output frame or its error marker
//   - Job: One end-to-end rendering run and its lifecycle
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
