// Package all wires every built-in storage backend into the storage registry.
//
// Importing it for side effects runs each backend's init, which registers
// the following kinds:
//
//   - "mysql"    (studentetl/internal/storage/mysql)
//   - "postgres" (studentetl/internal/storage/postgres)
//   - "sqlite"   (studentetl/internal/storage/sqlite)
//   - "mssql"    (studentetl/internal/storage/mssql)
//
// Typical usage in a wiring layer:
//
//	import _ "studentetl/internal/storage/all"
//
//	school, err := storage.OpenSchool(ctx, storage.Config{Kind: job.School.Kind, DSN: job.School.DSN})
//
// A binary that needs only some backends can import those packages directly
// instead.
package all

import (
	_ "studentetl/internal/storage/mssql"
	_ "studentetl/internal/storage/mysql"
	_ "studentetl/internal/storage/postgres"
	_ "studentetl/internal/storage/sqlite"
)
