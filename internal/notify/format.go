package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/avolkov/webtracker/internal/domain"
)

const maxErrorChars = 200

// FailureMessage formats the alert sent when a check fails. It carries
// the resource identity, the truncated error text, the status code when
// one was received, and a pointer to the detailed log command.
func FailureMessage(r domain.Resource, errText string, statusCode int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📌 %s - DOWN ❌\n", time.Now().Format("02.01.2006 - 15:04:05"))
	fmt.Fprintf(&b, "ID: %d\n", r.ID)
	fmt.Fprintf(&b, "Name: %s\n", r.Name)
	fmt.Fprintf(&b, "Url: %s\n", r.URL)
	fmt.Fprintf(&b, "Type: %s\n", r.Type)
	fmt.Fprintf(&b, "Interval: %d min\n", r.Interval)
	fmt.Fprintf(&b, "Error: %s\n", truncate(errText, maxErrorChars))
	if statusCode != 0 {
		fmt.Fprintf(&b, "Status code: %d\n", statusCode)
	}
	fmt.Fprintf(&b, "Cause: %s\n", cause(errText))
	fmt.Fprintf(&b, "Logs: /logs %d", r.ID)
	return b.String()
}

// AddedMessage confirms that a resource entered the check queue.
func AddedMessage(r domain.Resource) string {
	return fmt.Sprintf(
		"Resource %s (ID: %d) added to the queue; it will be checked every %d minute(s).\nStatus: /status",
		r.Name, r.ID, r.Interval,
	)
}

// DeletedMessage confirms a resource removal.
func DeletedMessage(resourceID int64) string {
	return fmt.Sprintf("Resource ID: %d removed.", resourceID)
}

// cause distinguishes a semantically failing endpoint (body reported
// success=false) from a transport or server failure.
func cause(errText string) string {
	if strings.Contains(errText, `"success":false`) || strings.Contains(errText, `"success": false`) {
		return "empty or invalid response from the endpoint"
	}
	return "network failure or server error"
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
