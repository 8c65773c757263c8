package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: Common errors
// 11000-11999: Process execution errors
// 12000-12999: Test case source and file errors
// 13000-13999: Orchestration errors
// 14000-14999: Optional integrations (storage, queue)

const (
	// ========== Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	InternalError    ErrorCode = 10001
	InvalidParams    ErrorCode = 10002
	ValidationFailed ErrorCode = 10003
	Canceled         ErrorCode = 10004

	// ========== Process Execution Errors (11000-11999) ==========

	ProcessSpawnFailed ErrorCode = 11000
	InputWriteFailed   ErrorCode = 11001
	OutputReadFailed   ErrorCode = 11002
	GeneratorFailed    ErrorCode = 11003
	ReferenceTimeout   ErrorCode = 11004
	InvalidExecutable  ErrorCode = 11005

	// ========== Source & File Errors (12000-12999) ==========

	FileReadFailed  ErrorCode = 12000
	FileWriteFailed ErrorCode = 12001
	PairMissing     ErrorCode = 12002
	NoCasesFound    ErrorCode = 12003
	DataPackInvalid ErrorCode = 12004

	// ========== Orchestration Errors (13000-13999) ==========

	WorkerFault        ErrorCode = 13000
	ArtifactSaveFailed ErrorCode = 13001

	// ========== Integrations (14000-14999) ==========

	StorageError ErrorCode = 14000
	QueueError   ErrorCode = 14001
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success:          "Success",
	InternalError:    "Internal error",
	InvalidParams:    "Invalid parameters",
	ValidationFailed: "Validation failed",
	Canceled:         "Run canceled",

	ProcessSpawnFailed: "Failed to start process",
	InputWriteFailed:   "Failed to write process input",
	OutputReadFailed:   "Failed to read process output",
	GeneratorFailed:    "Generator failed",
	ReferenceTimeout:   "Reference solution did not terminate",
	InvalidExecutable:  "Invalid executable command",

	FileReadFailed:  "Failed to read file",
	FileWriteFailed: "Failed to write file",
	PairMissing:     "Expected output file is missing",
	NoCasesFound:    "No test cases found",
	DataPackInvalid: "Invalid data pack",

	WorkerFault:        "Worker failed unexpectedly",
	ArtifactSaveFailed: "Failed to save failing test",

	StorageError: "Object storage operation failed",
	QueueError:   "Message queue operation failed",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// ExitCode returns the process exit status used by the command line for the error code.
// Verdict failures exit with 1 and are not represented by an ErrorCode.
func (c ErrorCode) ExitCode() int {
	switch {
	case c == Success:
		return 0
	case c == Canceled:
		return 130
	default:
		return 2
	}
}
