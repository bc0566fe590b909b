package skill

// Status is the closed set of outcomes a skill can report.
type Status int

const (
	// Unknown is the zero value: the skill did not set an outcome.
	Unknown Status = iota
	Success
	Failure
	NotFound
	NoResponse
	UnknownEntity
	UnknownAction
	NeedMoreInfo
)

var statusNames = [...]string{
	Unknown:       "unknown",
	Success:       "success",
	Failure:       "failure",
	NotFound:      "not_found",
	NoResponse:    "no_response",
	UnknownEntity: "unknown_entity",
	UnknownAction: "unknown_action",
	NeedMoreInfo:  "need_more_info",
}

// String returns the snake_case name used in logs and metric attributes.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "invalid"
	}
	return statusNames[s]
}

// Result is what a skill hands back to the dispatcher after one invocation.
// A skill mutates it while it runs; the dispatcher reads it once.
type Result struct {
	Status Status

	// Dialog overrides the dispatcher's default line for Status when
	// non-empty.
	Dialog string
}

// Set records the outcome. A dialog argument replaces any earlier dialog;
// omitting it clears the dialog so the status default is spoken.
func (r *Result) Set(status Status, dialog ...string) {
	r.Status = status
	r.Dialog = ""
	if len(dialog) > 0 {
		r.Dialog = dialog[0]
	}
}
