package statusapi

import (
	"context"

	"github.com/lodthe/container-from-sqldump/internal/provision"
	"github.com/lodthe/container-from-sqldump/internal/provisionrun"
)

type ReportSource interface {
	Report() provision.Report
}

type RunStorage interface {
	Get(ctx context.Context, id string) (*provisionrun.Run, error)
}
