package verify

// State is a step of the verification state machine.
//
//	Start -> Navigated -> FormFilled -> Submitted -> URLConfirmed -> DashboardVisible -> ScreenshotTaken
//	any failure after Start -> Failed -> ErrorScreenshotTaken
type State int

const (
	StateStart State = iota
	StateNavigated
	StateFormFilled
	StateSubmitted
	StateURLConfirmed
	StateDashboardVisible
	StateScreenshotTaken
	StateFailed
	StateErrorScreenshotTaken
)

var stateNames = map[State]string{
	StateStart:                "start",
	StateNavigated:            "navigated",
	StateFormFilled:           "form_filled",
	StateSubmitted:            "submitted",
	StateURLConfirmed:         "url_confirmed",
	StateDashboardVisible:     "dashboard_visible",
	StateScreenshotTaken:      "screenshot_taken",
	StateFailed:               "failed",
	StateErrorScreenshotTaken: "error_screenshot_taken",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
