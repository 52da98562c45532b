package coze

import "fmt"

type ResultKind int

const (
	ResultAnswer ResultKind = iota
	ResultRemoteError
	ResultTimedOut
	ResultHandleMissing
	ResultUnrecognized
)

func (k ResultKind) String() string {
	switch k {
	case ResultAnswer:
		return "answer"
	case ResultRemoteError:
		return "remote_error"
	case ResultTimedOut:
		return "timed_out"
	case ResultHandleMissing:
		return "handle_missing"
	case ResultUnrecognized:
		return "unrecognized"
	}
	return fmt.Sprintf("ResultKind(%d)", int(k))
}

// PollResult is the outcome of one chat turn. Which fields are set depends on Kind:
// Text for answers, Code and Message for remote errors, Code and Status for
// unrecognized completion replies. Attempts counts outbound poll calls.
type PollResult struct {
	Kind     ResultKind
	Text     string
	Code     string
	Message  string
	Status   string
	Attempts int
}

func Answer(text string, attempts int) PollResult {
	return PollResult{Kind: ResultAnswer, Text: text, Attempts: attempts}
}

func RemoteError(code int64, message string, attempts int) PollResult {
	return PollResult{Kind: ResultRemoteError, Code: fmt.Sprint(code), Message: message, Attempts: attempts}
}

func TimedOut(attempts int) PollResult {
	return PollResult{Kind: ResultTimedOut, Attempts: attempts}
}

func HandleMissing() PollResult {
	return PollResult{Kind: ResultHandleMissing}
}

func Unrecognized(code, status string) PollResult {
	return PollResult{Kind: ResultUnrecognized, Code: code, Status: status}
}
