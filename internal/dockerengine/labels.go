package dockerengine

// LabelOwnership is set for all containers created by container-from-sqldump.
// Use it to find containers left behind by interrupted runs.
const LabelOwnership = "container-from-sqldump.ownership"

// CreateContainerLabels returns default labels for created containers.
// They tell which run and environment a container belongs to and what role it plays there.
func CreateContainerLabels(runID, environment, role string) map[string]string {
	return map[string]string{
		LabelOwnership:                       "1",
		"container-from-sqldump.run":         runID,
		"container-from-sqldump.environment": environment,
		"container-from-sqldump.role":        role,
	}
}
