// Package record defines the data that flows through querypipe: scalar
// Values, ordered Records and parameterized Queries.
//
// # Values
//
// Value is sealed. The six implementations (Null, String, Int, Float, Bool,
// Bytes) cover what the supported drivers return; Scanner converts driver
// output on the way in and Value.Arg converts back on the way out.
//
// # Keys
//
// Cached results are indexed by a Key derived from a Query. TextKey uses the
// query text alone. QueryKey hashes the canonical JSON encoding of text and
// parameters with domain separation and is the default used by the cache
// stage.
package record
