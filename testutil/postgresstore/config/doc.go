// Package config provides PostgreSQL database configuration for circulation
// store testing.
//
// This package contains factory functions for creating database connections
// using the store's supported PostgreSQL adapters (pgxpool.Pool, sql.DB,
// sqlx.DB). The DSN is read from the CIRCULATION_POSTGRES_DSN environment
// variable, optionally loaded from a .env file, with a sensible default for
// local development.
package config
