// Package store persists content records per account partition in SQLite.
//
// Each partition has its own database file holding a single records table.
// Every query is additionally scoped by the account column, so even two
// partitions configured onto one file cannot see each other's rows.
package store
