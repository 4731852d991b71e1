package cli

// Output formats accepted by --output.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Default values for CLI flags and formatted output.
const (
	// DefaultSearchLimit is the default number of search results to return.
	DefaultSearchLimit = 50
	// MaxNameLength is the maximum length of an add-on name in tables.
	MaxNameLength = 40
	// MaxDescriptionLength is the maximum length of a description shown by show.
	MaxDescriptionLength = 400
	// TabWidth is the width of tabs in formatted output.
	TabWidth = 2
	// dateLayout formats catalog dates in tables.
	dateLayout = "2006-01-02"
)
