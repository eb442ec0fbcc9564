// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	admin := strings.TrimSpace(os.Getenv("ADMIN_API_KEYS"))
	pub := strings.TrimSpace(os.Getenv("PUBLIC_API_KEYS"))
	addr := strings.TrimSpace(os.Getenv("ADDR"))
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	sqlitePath := strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	botToken := strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	chatIDs := strings.TrimSpace(os.Getenv("ADMIN_CHAT_IDS"))
	mailerCode := strings.TrimSpace(os.Getenv("MAILER_CODE"))

	if admin == "" {
		fail("ADMIN_API_KEYS is empty (mutating routes will 403).")
	}
	if pub == "" {
		fail("PUBLIC_API_KEYS is empty (read routes will 401).")
	}

	for name, v := range map[string]string{"ADMIN_API_KEYS": admin, "PUBLIC_API_KEYS": pub} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	if addr == "" {
		warn("ADDR is empty; the default bind address will be used.")
	} else {
		ok("ADDR=" + addr)
	}

	switch {
	case db != "":
		ok("DATABASE_URL present")
	case sqlitePath != "":
		ok("SQLITE_PATH=" + sqlitePath)
	default:
		warn("no DATABASE_URL or SQLITE_PATH — resources and logs are lost on restart.")
	}

	if botToken == "" {
		warn("TELEGRAM_BOT_TOKEN empty — failure alerts will not be delivered.")
	} else if chatIDs == "" {
		warn("ADMIN_CHAT_IDS empty — there is nobody to alert.")
	} else {
		ok("telegram alerting configured")
	}

	if mailerCode == "" {
		warn("MAILER_CODE empty — mailer probes will post an empty verification code.")
	}

	ok("preflight passed")
}
