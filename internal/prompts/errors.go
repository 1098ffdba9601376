package prompts

import "errors"

// ErrInvalidStage indicates a stage name outside the known set.
var ErrInvalidStage = errors.New("unknown prompt stage")
