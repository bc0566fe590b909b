package dispatch

import "github.com/MrWong99/voicehac/internal/skill"

// FallbackDialog is spoken for a status without a default line.
const FallbackDialog = "I'm sorry, an unexpected error occurred."

var defaultDialogs = map[skill.Status]string{
	skill.Unknown:       "I'm sorry, I couldn't understand that.",
	skill.Success:       "The operation was successful.",
	skill.Failure:       "I'm sorry, there was a problem with the operation.",
	skill.NotFound:      "I'm sorry, I couldn't find what you were looking for.",
	skill.NoResponse:    "I'm sorry, I didn't receive a response.",
	skill.UnknownEntity: "I'm sorry, I couldn't identify the entity.",
	skill.UnknownAction: "I'm sorry, that action is not supported.",
	skill.NeedMoreInfo:  "Can you provide more information?",
}

// DefaultDialog returns the line spoken for status when the skill supplied
// none.
func DefaultDialog(status skill.Status) string {
	if d, ok := defaultDialogs[status]; ok {
		return d
	}
	return FallbackDialog
}

// Dialog maps a skill result to the line to speak. The skill's own dialog
// takes precedence over the status default. A nil result is treated as
// [skill.Unknown].
func Dialog(res *skill.Result) string {
	if res == nil {
		return DefaultDialog(skill.Unknown)
	}
	if res.Dialog != "" {
		return res.Dialog
	}
	return DefaultDialog(res.Status)
}
