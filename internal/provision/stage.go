package provision

// Stage is a point reached in the provisioning sequence:
// start -> config_loaded -> authenticated -> project_ensured -> jobset_ensured.
type Stage int

const (
	StageStart Stage = iota
	StageConfigLoaded
	StageAuthenticated
	StageProjectEnsured
	StageJobsetEnsured
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageConfigLoaded:
		return "config_loaded"
	case StageAuthenticated:
		return "authenticated"
	case StageProjectEnsured:
		return "project_ensured"
	case StageJobsetEnsured:
		return "jobset_ensured"
	default:
		return "unknown"
	}
}

// Step is one action of the sequence.
type Step string

const (
	StepValidate      Step = "validate"
	StepLoadConfig    Step = "load config"
	StepLogin         Step = "login"
	StepEnsureProject Step = "ensure project"
	StepEnsureJobset  Step = "ensure jobset"
)
