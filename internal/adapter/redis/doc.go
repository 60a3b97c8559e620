// Package redis provides the redis-backed clip cache and client construction.
package redis
