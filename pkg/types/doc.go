// Package types defines the store interfaces, the record field mapping,
// address helpers, configuration, and the standard error kinds shared by
// every glworbs component.
//
// Records ("glworbs") are ordered field mappings addressed as
// namespace:identifier. Blobs live in the same keyspace under opaque keys.
package types
