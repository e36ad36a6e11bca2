// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each backend, which register their
// factories and DDL bootstrappers with the storage package:
//
//   - "postgres" (tablexform/internal/storage/postgres)
//   - "mssql"    (tablexform/internal/storage/mssql)
//   - "mysql"    (tablexform/internal/storage/mysql)
//   - "sqlite"   (tablexform/internal/storage/sqlite)
//
// A binary that needs only a subset can import the backends directly.
package all

import (
	_ "tablexform/internal/storage/mssql"
	_ "tablexform/internal/storage/mysql"
	_ "tablexform/internal/storage/postgres"
	_ "tablexform/internal/storage/sqlite"
)
