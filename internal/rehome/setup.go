package rehome

import _ "embed"

// SetupScriptName is the name of the script inside the setup scripts directory.
const SetupScriptName = "add_known_admin.sql"

//go:embed sql/add_known_admin.sql
var setupScript []byte

// SetupScript returns the SQL script that prepares the server for admin seeding.
func SetupScript() []byte {
	return append([]byte(nil), setupScript...)
}
