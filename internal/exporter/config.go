package exporter

import "fmt"

// DefaultReportPrefix is the key prefix the migration writes handle reports under
const DefaultReportPrefix = "HANDLE_REPORTS/"

// DefaultOutputPath is the output file name used when none is configured
const DefaultOutputPath = "handles.csv"

// MalformedPolicy decides what happens to a report that cannot be parsed
type MalformedPolicy string

const (
	// Abort stops the run at the first malformed report
	Abort MalformedPolicy = "abort"
	// Skip logs and counts the report and carries on
	Skip MalformedPolicy = "skip"
)

// Config holds the export settings. Bucket identity lives with the store.
type Config struct {
	OutputPath   string
	ReportPrefix string
	OnMalformed  MalformedPolicy
}

// Validate checks the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.OutputPath == "" {
		c.OutputPath = DefaultOutputPath
	}
	if c.ReportPrefix == "" {
		c.ReportPrefix = DefaultReportPrefix
	}
	switch c.OnMalformed {
	case "":
		c.OnMalformed = Abort
	case Abort, Skip:
	default:
		return fmt.Errorf("unknown malformed-record policy %q (want %q or %q)", c.OnMalformed, Abort, Skip)
	}
	return nil
}

// Prefix returns the listing prefix for a report time argument. The argument
// is not validated: an empty value lists every report.
func (c Config) Prefix(reportTime string) string {
	return c.ReportPrefix + reportTime
}
