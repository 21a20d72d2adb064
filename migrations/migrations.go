package migrations

import "embed"

// FS holds one directory of golang-migrate files per service database.
//
//go:embed catalog/*.sql orders/*.sql notifications/*.sql identity/*.sql
var FS embed.FS

const (
	Catalog       = "catalog"
	Orders        = "orders"
	Notifications = "notifications"
	Identity      = "identity"
)
