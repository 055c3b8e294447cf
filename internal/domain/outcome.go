package domain

import "fmt"

// TestStatus is the numeric status code the runner attaches to a test
// outcome. The set below is fixed; any other value classifies as unknown.
type TestStatus int

const (
	StatusCreated                  TestStatus = -1
	StatusSuccess                  TestStatus = 1
	StatusFailure                  TestStatus = 2
	StatusSkip                     TestStatus = 3
	StatusSuccessPercentageFailure TestStatus = 4
	StatusStarted                  TestStatus = 16
)

// Outcome tags as they appear in the end-of-test log marker.
const (
	TagSuccess           = "SUCCESS"
	TagFailure           = "!!! FAILURE !!!"
	TagSkip              = "SKIP"
	TagSuccessPercentage = "SUCCESS WITHIN PERCENTAGE"
	TagStarted           = "STARTED"
	TagCreated           = "CREATED"
	TagUnknown           = "UNKNOWN"
)

// Tag classifies a status code into its end-marker log tag. Unrecognized
// codes fall through to TagUnknown; classification never fails.
func (s TestStatus) Tag() string {
	switch s {
	case StatusSuccess:
		return TagSuccess
	case StatusFailure:
		return TagFailure
	case StatusSkip:
		return TagSkip
	case StatusSuccessPercentageFailure:
		return TagSuccessPercentage
	case StatusStarted:
		return TagStarted
	case StatusCreated:
		return TagCreated
	default:
		return TagUnknown
	}
}

// Result returns the lowercase label used for publish subjects and metric
// label values. Like Tag, it defaults to "unknown" instead of failing.
func (s TestStatus) Result() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusSkip:
		return "skip"
	case StatusSuccessPercentageFailure:
		return "success_within_percentage"
	case StatusStarted:
		return "started"
	case StatusCreated:
		return "created"
	default:
		return "unknown"
	}
}

// IsSuccess reports whether the status counts as a success for the purpose of
// per-instance failure tracking.
func (s TestStatus) IsSuccess() bool {
	return s == StatusSuccess
}

// TestOutcome is the per-test result record produced by the runner. The
// lifecycle wrapper and the outcome reporter consume it read-only; it is not
// retained beyond logging and reporting.
type TestOutcome struct {
	Suite       string
	TestName    string
	Status      TestStatus
	StartMillis int64
	EndMillis   int64
}

// FullName returns the fully-qualified test name used in log markers.
func (o TestOutcome) FullName() string {
	return fmt.Sprintf("%s:%s", o.Suite, o.TestName)
}

// ElapsedSeconds is the test's wall time in whole seconds. Sub-second
// precision is deliberately discarded (floor division).
func (o TestOutcome) ElapsedSeconds() int64 {
	return (o.EndMillis - o.StartMillis) / 1000
}

// OutcomeKey uniquely identifies a test outcome within a run, in the format
// run_id:suite:test_name. The reporter dedups on it.
type OutcomeKey string

// OutcomeReport is the payload published to the test-run stream for every
// classified outcome and consumed by the reporter service.
type OutcomeReport struct {
	RunID          string `json:"run_id"`
	Suite          string `json:"suite"`
	TestName       string `json:"test_name"`
	Status         int    `json:"status"`
	Tag            string `json:"tag"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
	StartMillis    int64  `json:"start_millis"`
	EndMillis      int64  `json:"end_millis"`
}

// Key derives the deduplication key for this report.
func (r *OutcomeReport) Key() OutcomeKey {
	return OutcomeKey(fmt.Sprintf("%s:%s:%s", r.RunID, r.Suite, r.TestName))
}

// ParsedOutcomeSubject holds the parts extracted from a test-run subject.
// Subjects follow the pattern testrun.<run_id>.<suite>.<result>.
type ParsedOutcomeSubject struct {
	RawSubject string
	Prefix     string
	RunID      string
	Suite      string
	Result     string
	IsValid    bool
}
