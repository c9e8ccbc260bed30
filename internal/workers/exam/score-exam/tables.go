package scoreexam

// Branch binds a job-branch reference code to the label sent as job_type.
type Branch struct {
	Reference string
	Label     string
}

// CompetenciesPerBranch is the fixed width of every competency vector.
const CompetenciesPerBranch = 5

// MajorityThreshold is the number of selected answers that makes a title count.
const MajorityThreshold = 2

var branchTable = [16]Branch{
	{"R17", "Open Thinking Jobs"},
	{"R18", "Analytical Jobs"},
	{"R19", "Technical Jobs"},
	{"R20", "Creative Jobs"},
	{"R21", "Social Jobs"},
	{"R22", "Leadership Jobs"},
	{"R23", "Organizational Jobs"},
	{"R24", "Entrepreneurial Jobs"},
	{"R25", "Research Jobs"},
	{"R26", "Practical Jobs"},
	{"R27", "Communication Jobs"},
	{"R28", "Care Jobs"},
	{"R29", "Financial Jobs"},
	{"R30", "Digital Jobs"},
	{"R31", "Field Jobs"},
	{"R32", "Educational Jobs"},
}

var environmentTable = [10]string{
	"R33", "R34", "R35", "R36", "R37", "R38", "R39", "R40", "R41", "R42",
}

// BranchTable returns the 16 job branches in output order.
func BranchTable() [16]Branch {
	return branchTable
}

// EnvironmentTable returns the 10 environment references in output order.
func EnvironmentTable() [10]string {
	return environmentTable
}
