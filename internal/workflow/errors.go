package workflow

import "errors"

// ErrContractViolation indicates a model reply that breaks the JSON output
// contract. Unlike transport failures, which degrade to a fallback draft,
// a contract violation aborts the run.
var ErrContractViolation = errors.New("reply violates output contract")
