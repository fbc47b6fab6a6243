package provision

import (
	"fmt"
	"time"
)

// Report is what is known about a run so far.
type Report struct {
	RunID       string `json:"run_id"`
	Environment string `json:"environment"`

	State  State  `json:"state"`
	Reason string `json:"reason,omitempty"`

	DatabaseContainer    string `json:"database_container"`
	ApplicationContainer string `json:"application_container"`

	DatabaseHost string `json:"database_host"`
	DatabasePort int    `json:"database_port"`
	DatabaseUser string `json:"database_user"`
	DatabaseName string `json:"database_name"`

	Prefix    string `json:"prefix,omitempty"`
	AdminID   int64  `json:"admin_id,omitempty"`
	OriginURL string `json:"origin_url,omitempty"`
	SiteURL   string `json:"site_url,omitempty"`

	GUIDsRewritten    int64 `json:"guids_rewritten"`
	ContentsRewritten int64 `json:"contents_rewritten"`

	// ApplicationConfirmed is false when the application readiness marker has not been seen.
	ApplicationConfirmed bool `json:"application_confirmed"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Succeeded tells whether the application container has been launched.
func (r Report) Succeeded() bool {
	return r.State == ApplicationReady
}

// ConnectHint is a mysql client invocation for the restored database.
// The password is prompted for.
func (r Report) ConnectHint() string {
	return fmt.Sprintf("mysql -h %s -P %d -u%s -p %s", r.DatabaseHost, r.DatabasePort, r.DatabaseUser, r.DatabaseName)
}

func (r Report) AttachHint() string {
	return fmt.Sprintf("docker exec -i -t %s /bin/bash", r.ApplicationContainer)
}
