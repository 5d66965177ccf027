package reflection

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrEvaluationDecode is returned when the evaluator reply is not a valid
	// evaluation payload.
	ErrEvaluationDecode = errors.New("failed to decode evaluation")

	// ErrScoreOutOfRange is returned when the evaluation score is outside 1..10.
	ErrScoreOutOfRange = errors.New("evaluation score out of range")

	// ErrMalformedEvaluation is returned in strict mode when an evaluation has
	// no weaknesses or no suggestions.
	ErrMalformedEvaluation = errors.New("malformed evaluation")

	// ErrAlreadyExecuted is returned when Execute is called twice on the same Controller.
	ErrAlreadyExecuted = errors.New("controller already executed")
)

// ErrTagEvaluationContract marks errors caused by an untrustworthy evaluator reply.
var ErrTagEvaluationContract = goerr.NewTag("evaluation_contract")
