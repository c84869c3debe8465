package session

import (
	"fmt"
	"path/filepath"
)

// Load-time failures leave the session fully unloaded. Generation-entry
// failures mutate nothing. Mid-generation failures distinguish prefill
// (no partial text) from the decode loop (partial text returned alongside
// the error). Backend failure details are carried in the message only;
// callers branch on the Is* helpers, never on backend codes.

// modelLoadError signals that the backend rejected the model file.
type modelLoadError struct {
	path  string
	cause error
}

func (e modelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", filepath.Base(e.path), e.cause)
}

func ErrModelLoad(path string, cause error) error { return modelLoadError{path: path, cause: cause} }

// IsModelLoad reports whether err indicates a backend model-load failure.
func IsModelLoad(err error) bool {
	_, ok := err.(modelLoadError)
	return ok
}

// vocabError signals a model without a resolvable vocabulary.
type vocabError struct{ cause error }

func (e vocabError) Error() string { return fmt.Sprintf("resolve vocabulary: %v", e.cause) }

func ErrVocab(cause error) error { return vocabError{cause: cause} }

// IsVocab reports whether err indicates a vocabulary resolution failure.
func IsVocab(err error) bool {
	_, ok := err.(vocabError)
	return ok
}

// contextCreateError signals an inference context that could not be built.
type contextCreateError struct {
	ctxSize int
	cause   error
}

func (e contextCreateError) Error() string {
	return fmt.Sprintf("create context (n_ctx=%d): %v", e.ctxSize, e.cause)
}

func ErrContextCreate(ctxSize int, cause error) error {
	return contextCreateError{ctxSize: ctxSize, cause: cause}
}

// IsContextCreate reports whether err indicates a context construction failure.
func IsContextCreate(err error) bool {
	_, ok := err.(contextCreateError)
	return ok
}

// modelTooLargeError signals a model over the parameter-count cap.
type modelTooLargeError struct {
	params uint64
	limit  uint64
}

func (e modelTooLargeError) Error() string {
	return fmt.Sprintf("model too large: %d parameters exceeds cap %d", e.params, e.limit)
}

func ErrModelTooLarge(params, limit uint64) error {
	return modelTooLargeError{params: params, limit: limit}
}

// IsModelTooLarge reports whether err indicates the parameter-count gate fired.
func IsModelTooLarge(err error) bool {
	_, ok := err.(modelTooLargeError)
	return ok
}

// unsupportedQuantizationError signals a model description without an
// accepted quantization marker.
type unsupportedQuantizationError struct{ desc string }

func (e unsupportedQuantizationError) Error() string {
	return fmt.Sprintf("unsupported quantization: %q", e.desc)
}

func ErrUnsupportedQuantization(desc string) error {
	return unsupportedQuantizationError{desc: desc}
}

// IsUnsupportedQuantization reports whether err indicates the quantization gate fired.
func IsUnsupportedQuantization(err error) bool {
	_, ok := err.(unsupportedQuantizationError)
	return ok
}

// notLoadedError signals a generation attempt with no model loaded.
type notLoadedError struct{}

func (notLoadedError) Error() string { return "no model loaded" }

func ErrNotLoaded() error { return notLoadedError{} }

// IsNotLoaded reports whether err indicates the session had no model.
func IsNotLoaded(err error) bool {
	_, ok := err.(notLoadedError)
	return ok
}

// alreadyGeneratingError signals a second generation while one is in flight.
type alreadyGeneratingError struct{}

func (alreadyGeneratingError) Error() string { return "generation already in progress" }

func ErrAlreadyGenerating() error { return alreadyGeneratingError{} }

// IsAlreadyGenerating reports whether err indicates the single-flight gate
// rejected the call.
func IsAlreadyGenerating(err error) bool {
	_, ok := err.(alreadyGeneratingError)
	return ok
}

// callbackUnavailableError signals a generation request without a token sink.
type callbackUnavailableError struct{}

func (callbackUnavailableError) Error() string { return "token callback unavailable" }

func ErrCallbackUnavailable() error { return callbackUnavailableError{} }

// IsCallbackUnavailable reports whether err indicates a missing token callback.
func IsCallbackUnavailable(err error) bool {
	_, ok := err.(callbackUnavailableError)
	return ok
}

// tokenizationError signals a prompt the tokenizer could not convert.
type tokenizationError struct{ msg string }

func (e tokenizationError) Error() string { return "tokenize prompt: " + e.msg }

func ErrTokenization(msg string) error { return tokenizationError{msg: msg} }

// IsTokenization reports whether err indicates a tokenizer failure.
func IsTokenization(err error) bool {
	_, ok := err.(tokenizationError)
	return ok
}

// promptEvalError signals a decode failure while evaluating the prompt. The
// session stays loaded; no text was produced.
type promptEvalError struct {
	chunk int
	cause error
}

func (e promptEvalError) Error() string {
	return fmt.Sprintf("evaluate prompt (chunk %d): %v", e.chunk, e.cause)
}

func ErrPromptEval(chunk int, cause error) error {
	return promptEvalError{chunk: chunk, cause: cause}
}

// IsPromptEval reports whether err indicates a prefill decode failure.
func IsPromptEval(err error) bool {
	_, ok := err.(promptEvalError)
	return ok
}

// decodeStepError signals a decode failure mid-loop. The text generated up
// to the failure is returned alongside the error.
type decodeStepError struct {
	tokens int
	cause  error
}

func (e decodeStepError) Error() string {
	return fmt.Sprintf("decode step after %d tokens: %v", e.tokens, e.cause)
}

func ErrDecodeStep(tokens int, cause error) error {
	return decodeStepError{tokens: tokens, cause: cause}
}

// IsDecodeStep reports whether err indicates a mid-generation decode failure
// with a partial result.
func IsDecodeStep(err error) bool {
	_, ok := err.(decodeStepError)
	return ok
}
