package core

// ExecutionResult is the outcome of a message that was included, whether or
// not its call succeeded.
type ExecutionResult struct {
	UsedGas    uint64
	Err        error // call failure; nil on success
	ReturnData []byte
}

// Unwrap returns the execution error, if any.
func (r *ExecutionResult) Unwrap() error {
	return r.Err
}

// Failed reports whether the top-level call failed or reverted.
func (r *ExecutionResult) Failed() bool {
	return r.Err != nil
}

// Return returns the output of a successful call.
func (r *ExecutionResult) Return() []byte {
	if r.Failed() {
		return nil
	}
	return r.ReturnData
}

// Revert returns the revert payload of a failed call.
func (r *ExecutionResult) Revert() []byte {
	if r.Failed() {
		return r.ReturnData
	}
	return nil
}
