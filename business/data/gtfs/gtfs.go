// Package gtfs provides the gtfs schedule lookups and vehicle position records used by the delay pipeline
package gtfs
