// Package ident schedules and prepares the station identification
// announcement.
package ident
