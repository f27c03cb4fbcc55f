// Package core defines the domain model shared by the storage, GraphQL and API layers.
//
// Types here carry both bson and json tags so the same value flows from MongoDB to
// GraphQL resolvers without intermediate copies. Validation lives next to the types
// and is enforced by the store before any write reaches the database.
package core
