package provisionrun

import (
	"time"

	"github.com/lodthe/container-from-sqldump/internal/provision"

	"github.com/google/uuid"
)

// NewID generates an identifier of a provisioning run.
func NewID() string {
	return uuid.New().String()
}

// Run is the stored state of a provisioning run.
type Run struct {
	ID string `dynamodbav:"Id"`

	Environment string `dynamodbav:"Environment"`
	State       string `dynamodbav:"State"`
	Reason      string `dynamodbav:"Reason,omitempty"`

	DatabaseContainer    string `dynamodbav:"DatabaseContainer"`
	ApplicationContainer string `dynamodbav:"ApplicationContainer"`

	Prefix    string `dynamodbav:"Prefix,omitempty"`
	AdminID   int64  `dynamodbav:"AdminId,omitempty"`
	OriginURL string `dynamodbav:"OriginUrl,omitempty"`
	SiteURL   string `dynamodbav:"SiteUrl,omitempty"`

	ApplicationConfirmed bool `dynamodbav:"ApplicationConfirmed"`

	StartedAt time.Time `dynamodbav:"StartedAt"`
	UpdatedAt time.Time `dynamodbav:"UpdatedAt"`
}

func FromReport(report provision.Report) *Run {
	return &Run{
		ID:                   report.RunID,
		Environment:          report.Environment,
		State:                report.State.String(),
		Reason:               report.Reason,
		DatabaseContainer:    report.DatabaseContainer,
		ApplicationContainer: report.ApplicationContainer,
		Prefix:               report.Prefix,
		AdminID:              report.AdminID,
		OriginURL:            report.OriginURL,
		SiteURL:              report.SiteURL,
		ApplicationConfirmed: report.ApplicationConfirmed,
		StartedAt:            report.StartedAt,
		UpdatedAt:            report.UpdatedAt,
	}
}
