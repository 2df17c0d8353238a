// Package models contains the GORM persistence models of the billing store.
// Models stay separate from domain aggregates: owned collections and
// polymorphic actor references are flattened into columns or JSONB here and
// mapped back by ToDomain.
package models
