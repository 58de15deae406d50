package extract

import "fmt"

// Stage identifies the extraction step that failed. The values are the wire
// codes consumers key on; any of them is terminal for that section's fetch.
type Stage string

const (
	StageOpenBrowser Stage = "KO_OPEN_BROWSER"
	StageNavigate    Stage = "KO_GO_TO_URL"
	StageLogin       Stage = "KO_LOGIN"
	StageWaitLoad    Stage = "KO_WAIT_FOR_LOAD"
	StageMenu        Stage = "KO_MENU"
	StageChargesNav  Stage = "KO_CHARGES_NAV"
	StageLotsNav     Stage = "KO_LOTS_NAV"
	StageGetHTML     Stage = "KO_GET_HTML"
)

// FetchError is a terminal section-fetch failure.
type FetchError struct {
	Stage   Stage
	Section string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Stage, e.Section, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FailedStage extracts the stage code from a fetch error, or "" for other
// errors.
func FailedStage(err error) Stage {
	if fe, ok := err.(*FetchError); ok {
		return fe.Stage
	}
	return ""
}
