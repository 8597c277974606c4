package executor

type Stage string

const (
	StageFetch    Stage = "fetch"
	StageGenerate Stage = "generate"
	StageWrite    Stage = "write"
	StageVerify   Stage = "verify"
	StagePublish  Stage = "publish"
)

// StepError is a pipeline failure tagged with the stage it came from. Every
// stage is retried the same way; the tag only serves logs and history.
type StepError struct {
	Stage Stage
	Err   error
}

func (e *StepError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func stepFailure(stage Stage, err error) error {
	return &StepError{Stage: stage, Err: err}
}
