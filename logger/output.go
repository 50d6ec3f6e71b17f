package logger

// Output controls what categories of information are shown at each verbosity level.
//
// Unlike log levels (which filter by severity), output categories control
// WHAT types of information are displayed regardless of severity.
//
// Verbosity Levels:
//
//	0 (default) - User-facing output only: results, errors with hints, final status
//	1 (-v)      - + Progress, startup info, worker status, operation summaries
//	2 (-vv)     - + Oracle request details, timing, config loaded, HTTP requests
//	3 (-vvv)    - + SQL queries, policy rule evaluation, internal flow
//	4 (-vvvv)   - + Full prompts, completions, request/response bodies

// OutputCategory defines a category of output that can be enabled/disabled
type OutputCategory int

const (
	// Level 0 (default) - Always shown
	OutputResults    OutputCategory = iota // Qualification results, command output
	OutputErrors                           // Errors with hints and resolution steps
	OutputUserStatus                       // Final success/failure status

	// Level 1 (-v) - Informational
	OutputProgress      // Progress indicators (e.g., "Processing 50/100 leads")
	OutputStartup       // Startup banners, config summary
	OutputWorkerStatus  // Worker pool started/stopped/health status
	OutputOperationInfo // High-level operation summaries

	// Level 2 (-vv) - Detailed
	OutputOracleCalls // Oracle request parameters and retry decisions
	OutputTiming      // Operation timing (e.g., "qualification took 420ms")
	OutputConfig      // Config values loaded/applied
	OutputHTTPCalls   // External HTTP requests made
	OutputDBStats     // Database statistics and connection info

	// Level 3 (-vvv) - Debug
	OutputSQLQueries // Individual SQL queries executed
	OutputPolicyEval // Escalation/governance rule evaluation steps
	OutputInternalOp // Internal operation flow (function entry/exit)

	// Level 4 (-vvvv) - Full dump
	OutputRequestBody  // Full HTTP request bodies
	OutputResponseBody // Full HTTP response bodies
	OutputPromptDump   // Full rendered prompts and raw completions
)

// categoryLevels maps each output category to its minimum verbosity level
var categoryLevels = map[OutputCategory]int{
	// Level 0 - Always shown
	OutputResults:    VerbosityUser,
	OutputErrors:     VerbosityUser,
	OutputUserStatus: VerbosityUser,

	// Level 1 - Informational
	OutputProgress:      VerbosityInfo,
	OutputStartup:       VerbosityInfo,
	OutputWorkerStatus:  VerbosityInfo,
	OutputOperationInfo: VerbosityInfo,

	// Level 2 - Detailed
	OutputOracleCalls: VerbosityDebug,
	OutputTiming:      VerbosityDebug,
	OutputConfig:      VerbosityDebug,
	OutputHTTPCalls:   VerbosityDebug,
	OutputDBStats:     VerbosityDebug,

	// Level 3 - Debug
	OutputSQLQueries: VerbosityTrace,
	OutputPolicyEval: VerbosityTrace,
	OutputInternalOp: VerbosityTrace,

	// Level 4 - Full dump
	OutputRequestBody:  VerbosityAll,
	OutputResponseBody: VerbosityAll,
	OutputPromptDump:   VerbosityAll,
}

// ShouldOutput returns true if the given category should be shown at the given verbosity
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		// Unknown category, default to highest verbosity required
		return verbosity >= VerbosityAll
	}
	return verbosity >= minLevel
}

// categoryNames provides human-readable names for output categories
var categoryNames = map[OutputCategory]string{
	OutputResults:       "results",
	OutputErrors:        "errors",
	OutputUserStatus:    "status",
	OutputProgress:      "progress",
	OutputStartup:       "startup",
	OutputWorkerStatus:  "worker-status",
	OutputOperationInfo: "operation-info",
	OutputOracleCalls:   "oracle",
	OutputTiming:        "timing",
	OutputConfig:        "config",
	OutputHTTPCalls:     "http",
	OutputDBStats:       "db-stats",
	OutputSQLQueries:    "sql",
	OutputPolicyEval:    "policy",
	OutputInternalOp:    "internal",
	OutputRequestBody:   "request-body",
	OutputResponseBody:  "response-body",
	OutputPromptDump:    "prompt-dump",
}

// CategoryName returns the human-readable name for an output category
func CategoryName(category OutputCategory) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return "unknown"
}

// EnabledCategories returns all output categories enabled at the given verbosity
func EnabledCategories(verbosity int) []OutputCategory {
	var enabled []OutputCategory
	for cat, minLevel := range categoryLevels {
		if verbosity >= minLevel {
			enabled = append(enabled, cat)
		}
	}
	return enabled
}

// VerbosityDescription returns a description of what's shown at each level
func VerbosityDescription(verbosity int) string {
	switch verbosity {
	case VerbosityUser:
		return "results and errors only"
	case VerbosityInfo:
		return "results, errors, progress, and status"
	case VerbosityDebug:
		return "above + oracle calls, timing, config details"
	case VerbosityTrace:
		return "above + SQL queries and policy evaluation"
	case VerbosityAll:
		return "full output including prompts and completions"
	default:
		if verbosity > VerbosityAll {
			return "maximum verbosity"
		}
		return "unknown verbosity level"
	}
}
