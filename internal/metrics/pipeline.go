package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Docker engine steps.
const (
	StepPullImage       = "pull_image"
	StepRemoveContainer = "remove_container"
	StepCreateContainer = "create_container"
	StepStartContainer  = "start_container"
	StepExecCommand     = "exec_command"
)

// Provisioning steps.
const (
	StepPrepareWorkspace   = "prepare_workspace"
	StepStartDatabase      = "start_database"
	StepAwaitDatabase      = "await_database"
	StepLoadDump           = "load_dump"
	StepResolvePrefix      = "resolve_prefix"
	StepSeedAdmin          = "seed_admin"
	StepRehome             = "rehome"
	StepMaterializeContent = "materialize_content"
	StepStartApplication   = "start_application"
	StepAwaitApplication   = "await_application"
)

var Pipeline = PipelineExporter{
	histogram: promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "provision",
			Name:      "step_duration_seconds",
			Help:      "How long it took to process a provisioning step, partitioned by step name and status (success or failure).",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"step", "status"},
	),
	state: promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "provision",
			Name:      "state",
			Help:      "Ordinal of the current lifecycle state, -1 when the run has failed.",
		},
	),
}

type PipelineExporter struct {
	histogram *prometheus.HistogramVec
	state     prometheus.Gauge
}

func (p *PipelineExporter) Observe(step string, succeed bool, startedAt time.Time) {
	status := "success"
	if !succeed {
		status = "failure"
	}

	p.histogram.
		With(prometheus.Labels{
			"step":   step,
			"status": status,
		}).
		Observe(time.Since(startedAt).Seconds())
}

func (p *PipelineExporter) SetState(ordinal int) {
	p.state.Set(float64(ordinal))
}
