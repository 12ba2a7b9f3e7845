/*
Package types defines the data-oriented domain model shared by every
simulation package: entity and component ids, the absent-cell sentinel,
permission levels, module/system/command descriptors, and the container
lifecycle states.

An entity is nothing but a row index; a component is nothing but a
column index. This package carries the identifiers and descriptors that
let the rest of the packages agree on that model without importing each
other: pkg/pool, pkg/store, pkg/registry, pkg/command, and pkg/container
all build on the types defined here.
*/
package types
