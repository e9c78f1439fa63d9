// Package repository holds the SQL for every table of the order
// lifecycle.  Each repository keeps its queries in one place and runs them
// on the transaction carried by the context when there is one.
package repository

import "errors"

// ErrNotFound is returned when a looked-up row does not exist.  The
// service layer translates it into its own not-found kind.
var ErrNotFound = errors.New("not found")
