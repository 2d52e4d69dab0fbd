package model

// ExecutionRequest is one piece of source code to run against a stdin.
type ExecutionRequest struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
	Stdin      string `json:"stdin"`
}

// ExecutionResult is the judge's report for one execution.
//
// StatusID is an opaque protocol value of the external judge: values of 2 or
// below mean the execution is still queued or running, anything above 2 is
// terminal. The engine must not interpret it further.
type ExecutionResult struct {
	StatusID      int    `json:"status_id"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output"`
}

// Terminal reports whether the judge has finished processing the execution.
func (r *ExecutionResult) Terminal() bool {
	return r.StatusID > 2
}
