package probe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/avolkov/webtracker/internal/domain"
)

func TestExecute_UnknownTypeError(t *testing.T) {
	r := domain.Resource{ID: 9, Name: "x", URL: "https://example.com", Type: domain.ProbeType("ftp")}
	_, err := newTestExecutor().Execute(context.Background(), r)
	var ue *UnknownTypeError
	if !errors.As(err, &ue) {
		t.Fatalf("want UnknownTypeError, got %v", err)
	}
	if !strings.Contains(err.Error(), "ftp") {
		t.Fatalf("error should name the type: %v", err)
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", MaxResponseChars+50)
	if got := Truncate(long); len([]rune(got)) != MaxResponseChars {
		t.Fatalf("want %d chars, got %d", MaxResponseChars, len([]rune(got)))
	}
	if got := Truncate("short"); got != "short" {
		t.Fatalf("short strings must pass through, got %q", got)
	}
}

func TestErrorText_PrefersDescription(t *testing.T) {
	te := &TransportError{URL: "http://x", Err: errors.New("boom"), Description: "described"}
	if ErrorText(te) != "described" {
		t.Fatalf("want description, got %q", ErrorText(te))
	}
	te.Description = ""
	if !strings.Contains(ErrorText(te), "boom") {
		t.Fatalf("want raw error, got %q", ErrorText(te))
	}
	// wrapped inside a step error the description still wins
	se := &MailerStepError{Step: "verify", Err: &TransportError{Err: errors.New("x"), Description: "inner"}}
	if ErrorText(se) != "inner" {
		t.Fatalf("want inner description, got %q", ErrorText(se))
	}
}
