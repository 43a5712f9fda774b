// Package msg carries user-facing advisories and errors as message keys plus
// interpolation arguments. The model never emits pre-rendered text; keys are
// resolved into a locale at the delivery boundary only.
package msg

// Severity distinguishes advisory hints from errors that failed an operation.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityError
)

// Message is one classified condition: a translation key and its arguments.
type Message struct {
	Key      string   `json:"key"`
	Args     []string `json:"args,omitempty"`
	Severity Severity `json:"severity"`
}

// Info builds an advisory message.
func Info(key string, args ...string) Message {
	return Message{Key: key, Args: args, Severity: SeverityInfo}
}

// Error builds an error message.
func Error(key string, args ...string) Message {
	return Message{Key: key, Args: args, Severity: SeverityError}
}

// Message keys for the calendar editor. The key set is shared with the
// translation catalogs; renaming a key breaks existing locale files.
const (
	KeyBlockLong     = "calendar.block.long"
	KeyBlockNegative = "calendar.block.negative"

	KeyUploadError             = "calendar.upload.error"
	KeyUploadIsEmpty           = "calendar.upload.isEmpty"
	KeyUploadOverlappingRanges = "calendar.upload.overlappingDateRanges"
	KeyUploadMissingElement    = "calendar.upload.missingMandatoryElement"
	KeyUploadMissingValue      = "calendar.upload.missingMandatoryValue"

	KeyCalendarIsEmpty = "calendar.isEmpty"
	KeyDownloadError   = "granularity.download.error"
)

// Date input fields accepted by the per-field block keys below.
const (
	FieldFirstAppearance = "firstAppearance"
	FieldLastAppearance  = "lastAppearance"
)

// Per-field block keys, e.g. "calendar.block.firstAppearance.early".
func KeyBlockEarly(field string) string         { return "calendar.block." + field + ".early" }
func KeyBlockFiction(field string) string       { return "calendar.block." + field + ".fiction" }
func KeyBlockYearCompleted(field string) string { return "calendar.block." + field + ".yearCompleted" }
func KeyBlockSwapped(field string) string       { return "calendar.block." + field + ".swapped" }
func KeyBlockInvalid(field string) string       { return "calendar.block." + field + ".invalid" }
