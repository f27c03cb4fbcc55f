// Package gql exposes users stored in MongoDB through a GraphQL schema.
//
// The schema is parsed once at startup by NewSchema; resolvers depend only on the
// UserStore and Pinger interfaces so they can run against in-memory fakes.
package gql

import (
	"context"
	"fmt"

	"github.com/graph-gophers/graphql-go"
	"go.uber.org/zap"
)

// Schema is the GraphQL SDL served at /graphql
const Schema = `
	schema {
		query: Query
		mutation: Mutation
	}

	scalar Time

	type User {
		id: ID!
		name: String!
		email: String!
		createdAt: Time!
		updatedAt: Time!
	}

	type DatabaseStatus {
		connected: Boolean!
		host: String!
	}

	type Query {
		users(limit: Int, offset: Int): [User!]!
		user(id: ID!): User
		userCount: Int!
		database: DatabaseStatus!
	}

	input NewUser {
		name: String!
		email: String!
	}

	input UserChanges {
		name: String
		email: String
	}

	type Mutation {
		createUser(input: NewUser!): User!
		updateUser(id: ID!, input: UserChanges!): User!
		deleteUser(id: ID!): Boolean!
	}
`

// SchemaOptions limits query cost
type SchemaOptions struct {
	MaxDepth       int
	MaxParallelism int
}

// NewSchema parses Schema against the resolver
func NewSchema(resolver *Resolver, opts SchemaOptions, logger *zap.SugaredLogger) (*graphql.Schema, error) {
	schemaOpts := []graphql.SchemaOpt{
		graphql.Logger(panicLogger{logger: logger}),
	}
	if opts.MaxDepth > 0 {
		schemaOpts = append(schemaOpts, graphql.MaxDepth(opts.MaxDepth))
	}
	if opts.MaxParallelism > 0 {
		schemaOpts = append(schemaOpts, graphql.MaxParallelism(opts.MaxParallelism))
	}

	schema, err := graphql.ParseSchema(Schema, resolver, schemaOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GraphQL schema: %w", err)
	}
	return schema, nil
}

// panicLogger routes resolver panics to zap instead of the standard logger
type panicLogger struct {
	logger *zap.SugaredLogger
}

func (l panicLogger) LogPanic(_ context.Context, value interface{}) {
	l.logger.Errorw("GraphQL resolver panic", "panic", fmt.Sprintf("%v", value))
}
