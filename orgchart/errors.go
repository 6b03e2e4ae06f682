package orgchart

import "fmt"

// Stage names used in StageError.
const (
	StageLoad        = "load"
	StageAlias       = "alias"
	StageConsolidate = "consolidate"
	StageWrite       = "write"
)

// StageError records which stage failed a company run.
type StageError struct {
	Company string
	Stage   string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Company, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
