package pulse

const (
	SubjectPropagationDiverged = "risk.propagation.diverged"

	StreamName   = "BEACON_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

func SubjectRunCompleted(runID string) string { return "risk.run." + runID + ".completed" }
func SubjectRunFailed(runID string) string    { return "risk.run." + runID + ".failed" }

func SubjectCompanyScored(companyID string) string { return "risk.company." + companyID + ".scored" }
func SubjectGradeChanged(companyID string) string  { return "risk.company." + companyID + ".grade.changed" }
func SubjectCompanyAlert(companyID string) string  { return "risk.company." + companyID + ".alert" }
