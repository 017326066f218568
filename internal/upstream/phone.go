package upstream

import "strings"

var phoneStripper = strings.NewReplacer(" ", "", "\t", "", "-", "", "(", "", ")", "")

// FormatPhoneNumber normalizes a number to E.164, assuming UK when no
// country code is present.
func FormatPhoneNumber(raw string) string {
	n := phoneStripper.Replace(strings.TrimSpace(raw))

	switch {
	case strings.HasPrefix(n, "07") && len(n) == 11:
		return "+44" + n[1:]
	case strings.HasPrefix(n, "+"):
		return n
	case strings.HasPrefix(n, "00"):
		return "+" + n[2:]
	case len(n) == 10 || len(n) == 11:
		return "+44" + strings.TrimPrefix(n, "0")
	}
	return "+" + n
}
