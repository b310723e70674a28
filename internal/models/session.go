package models

import "fmt"

// SessionDescriptor is supplied with a start command and stays immutable for
// the lifetime of the session. Field tags match the query parameters of the
// command endpoint.
type SessionDescriptor struct {
	SessionID   string `json:"sn" validate:"required,max=128"`
	RecordFile  string `json:"recordfile"`
	Client      string `json:"client"`
	ServerIP    string `json:"serverip" validate:"omitempty,ip"`
	From        string `json:"from"`
	AsrServer   string `json:"asrserver"`
	CallbackURL string `json:"callbackurl" validate:"omitempty,url"`
}

// String keeps log lines short.
func (d SessionDescriptor) String() string {
	return fmt.Sprintf("{ sn: %s, asr server: %s }", d.SessionID, d.AsrServer)
}

// CommandResult is the JSON envelope returned by the command endpoint.
type CommandResult struct {
	Result int    `json:"result"`
	Msg    string `json:"msg"`
}

// Success returns the envelope for an accepted command.
func Success() CommandResult {
	return CommandResult{Result: 0, Msg: "success"}
}

// Failure returns the envelope for a rejected command.
func Failure(err error) CommandResult {
	return FailureMsg(err.Error())
}

// FailureMsg returns a failure envelope with a fixed wire message.
func FailureMsg(msg string) CommandResult {
	return CommandResult{Result: 1, Msg: msg}
}
