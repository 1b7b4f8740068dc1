// Package repositories implements the database access for [models.Selection] and
// [models.HistoryEntry].
//
// Repositories take an open *sql.DB with [shared.RunMigrations] applied. Lookups that find
// nothing return an error matching [shared.ErrNotFound].
package repositories
