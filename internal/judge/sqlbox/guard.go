// Package sqlbox judges SQL submissions against an ephemeral per-submission
// database and compares normalized result sets.
package sqlbox

import (
	"regexp"
	"strings"
)

// dangerousPatterns match statements a read-only SQL submission has no
// business issuing. Matched case-insensitively against the raw query before
// any database is provisioned.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bdrop\s+(table|database|schema|view|index)\b`),
	regexp.MustCompile(`(?i)\btruncate\s+table\b`),
	regexp.MustCompile(`(?i)\balter\s+(table|database|schema)\b`),
	regexp.MustCompile(`(?i)\bcreate\s+(table|database|schema|user)\b`),
	regexp.MustCompile(`(?i)\bgrant\b`),
	regexp.MustCompile(`(?i)\brevoke\b`),
	regexp.MustCompile(`(?i)\bdelete\s+from\b`),
	regexp.MustCompile(`(?i)\bupdate\s+\S+\s+set\b`),
	regexp.MustCompile(`(?i)\binsert\s+into\b`),
	regexp.MustCompile(`(?i)\bload_file\s*\(`),
	regexp.MustCompile(`(?i)\binto\s+(outfile|dumpfile)\b`),
	regexp.MustCompile(`(?i)\bsleep\s*\(`),
	regexp.MustCompile(`(?i)\bbenchmark\s*\(`),
	regexp.MustCompile(`(?i)\binformation_schema\b`),
	regexp.MustCompile(`(?i)\bmysql\s*\.\s*user\b`),
	regexp.MustCompile(`(?i)\bset\s+(global|session)\b`),
	regexp.MustCompile(`(?i)\bkill\s+\d`),
}

// CheckQuery returns the matched pattern when the query contains a statement
// outside the read-only contract, or "" when clean. The scan runs on the raw
// text before execution; the per-submission database is the real boundary.
func CheckQuery(query string) string {
	q := strings.TrimSpace(query)
	for _, re := range dangerousPatterns {
		if re.MatchString(q) {
			return re.String()
		}
	}
	return ""
}
