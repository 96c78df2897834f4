// Package primitives provides the foundational types shared by every tier of
// the blending runtime: the external Track and Motion contracts, the error
// taxonomy, the generic free-list pool and the declarative rig configuration.
//
// Core invariants:
// - Tracks are owned by the node that created them and destroyed explicitly
// - Pooled values are reset before release and asserted reset on acquire
// - RigConfig is validated before anything is instantiated from it
package primitives
