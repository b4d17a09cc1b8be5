package pipeline

// Action is what the pipeline does with a URL after its liveness check
type Action int

const (
	// ActionSkip records URL_SKIPPED without submitting
	ActionSkip Action = iota
	// ActionUnreachable records UNREACHABLE without submitting
	ActionUnreachable
	// ActionSubmitUpdated publishes the URL as URL_UPDATED
	ActionSubmitUpdated
	// ActionSubmitDeleted publishes the URL as URL_DELETED
	ActionSubmitDeleted
)

// Classify maps a liveness status code to an action. Status 0 is the
// unreachable sentinel; 2xx means the page exists and should be (re)indexed;
// 4xx means it is gone and should be removed from the index; everything
// else (3xx, 5xx, invalid) is skipped.
func Classify(status int) Action {
	switch {
	case status == 0:
		return ActionUnreachable
	case status >= 200 && status <= 299:
		return ActionSubmitUpdated
	case status >= 400 && status <= 499:
		return ActionSubmitDeleted
	default:
		return ActionSkip
	}
}
