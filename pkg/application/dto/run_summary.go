package dto

import "time"

// ClinicRun is the outcome of reconciling one clinic group in a batch
type ClinicRun struct {
	Clinic        string `json:"clinic"`
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	ResultKey     string `json:"result_key,omitempty"`
	Error         string `json:"error,omitempty"`
	InField       int    `json:"in_field"`
	GlobalOrphans int    `json:"global_orphans"`
}

// RunSummary describes one batch run over every configured clinic
type RunSummary struct {
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Clinics    []ClinicRun `json:"clinics"`
}

// Failed counts clinics whose job did not complete
func (s RunSummary) Failed() int {
	n := 0
	for _, c := range s.Clinics {
		if c.Error != "" {
			n++
		}
	}
	return n
}
