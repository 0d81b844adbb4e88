package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteCookieGuide writes step-by-step instructions for copying the
// browser Cookie header for x.com.
func WriteCookieGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	lines := []string{
		rule,
		"COOKIE EXTRACTION GUIDE",
		rule,
		"",
		"Media downloads need the Cookie header of a logged-in browser session.",
		"",
		"STEP 1: Open https://x.com and log in. Make sure your timeline loads.",
		"",
		"STEP 2: Open Developer Tools",
		"   Chrome/Edge/Brave/Firefox: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)",
		"   Safari: enable the Develop menu in Settings, then Cmd+Option+I",
		"",
		"STEP 3: Network tab",
		"   Refresh the page and click any request to x.com.",
		"",
		"STEP 4: Copy the Cookie request header",
		"   Under Request Headers, copy the whole value after 'cookie:'.",
		"   It must include at least:",
		"     auth_token   40 hex characters",
		"     ct0          the CSRF token, usually 160 hex characters",
		"",
		"TIPS:",
		"   Paste the header as-is: name=value pairs separated by semicolons.",
		"   Session cookies expire; run 'tweetvault auth login' again when",
		"   downloads start failing with 401 or 403.",
		"",
		"SECURITY WARNING:",
		"   These cookies grant full access to your account. Never share them.",
		"   tweetvault keeps them in the system keychain or an encrypted file.",
		rule,
		"",
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

// WriteQuickGuide writes the condensed version for experienced users
func WriteQuickGuide(w io.Writer) {
	fmt.Fprintln(w, "Quick guide: F12 -> Network -> refresh -> any x.com request -> Headers -> cookie")
	fmt.Fprintln(w, "   Need at least auth_token=... and ct0=...")
	fmt.Fprintln(w, "   Type 'help' for detailed instructions")
}
