package bot

import (
	"fmt"
	"regexp"
	"time"
)

var (
	ciscoUserRe  = regexp.MustCompile(`^[a-zA-Z0-9_\-.]+@cisco\.com$`)
	emailRe      = regexp.MustCompile(`^[a-zA-Z0-9_\-.]+@[a-zA-Z0-9_\-.]+\.[a-zA-Z]{2,5}$`)
	caseNumberRe = regexp.MustCompile(`6[0-9]{8}`)
)

// CheckCiscoUser reports whether the email belongs to a cisco.com user.
func CheckCiscoUser(email string) bool {
	return ciscoUserRe.MatchString(email)
}

// CheckEmailSyntax reports whether the string is a plausible email address.
func CheckEmailSyntax(email string) bool {
	return emailRe.MatchString(email)
}

// VerifyCaseNumber returns the first case number found in the content
// (the pattern is 6 followed by 8 digits), or "" when none is present.
func VerifyCaseNumber(content string) string {
	return caseNumberRe.FindString(content)
}

// FormatElapsed renders a duration the way the bot reports open and
// update gaps: "H:MM:SS", prefixed with "N day(s), " past 24 hours.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)

	days := int(d / (24 * time.Hour))
	rem := d % (24 * time.Hour)
	hours := int(rem / time.Hour)
	minutes := int(rem % time.Hour / time.Minute)
	seconds := int(rem % time.Minute / time.Second)

	clock := fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	switch {
	case days == 1:
		return "1 day, " + clock
	case days > 1:
		return fmt.Sprintf("%d days, %s", days, clock)
	default:
		return clock
	}
}

// formatTimestamp renders an upstream timestamp for replies.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
