// Package crud provides generic record contracts (create, read, update,
// delete) and association loaders built on top of them.
//
// A record type only supplies the primitives: a Reader for its own table and,
// per relation, one batched lookup (ParentLoader, JoinLoader or
// ThroughLoader). BelongsTo, HasMany, HasOne, HasManyAndBelongsTo and
// HasManyThrough derive every singular and batch lookup from those
// primitives plus in-memory grouping, so loading the children of N parents
// costs one store round trip instead of N.
//
// The store capability S is opaque to this package. It is handed unchanged to
// every primitive, which lets the same relation run against a *sqlx.DB, a
// *sqlx.Tx, a redis.Cmdable or a DynamoDB client. See the drivers directory
// for ready-made primitives.
//
// Grouping maps returned by batch lookups are built fresh for each call and
// belong to the caller. A parent with no children may be missing from such a
// map; use Lookup to read it as an empty slice.
package crud
