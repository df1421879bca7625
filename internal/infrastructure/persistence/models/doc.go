// Package models contains the GORM persistence models of the sync store.
//
// Domain types carry no ORM tags; each model converts with ToDomain/FromDomain.
// Every remote identifier column has a unique index so concurrent webhook and
// batch writers cannot create two local records for one remote record.
package models
