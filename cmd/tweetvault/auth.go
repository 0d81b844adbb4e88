package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tweetvault/pkg/auth"
	"tweetvault/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the session cookie",
	Long: `Manage the stored session cookie used to fetch posts.

Cookies are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables TWEETVAULT_COOKIE or TWITTER_COOKIE (read only)

Never share your cookie or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [profile]",
	Short: "Store a session cookie securely",
	Long: `Store the Cookie header of a logged-in browser session.

The cookie is read without echo. It needs at least auth_token and ct0.`,
	Example: `  # Interactive login
  tweetvault auth login

  # Store a second session under its own profile
  tweetvault auth login alt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [profile]",
	Short: "Remove a stored session cookie",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List stored profiles with masked cookies",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
}

func profileArg(args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0])
	}
	return auth.DefaultProfile
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	profile := profileArg(args)
	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())

	auth.WriteCookieGuide(out)

	if _, err := manager.Retrieve(profile); err == nil {
		fmt.Fprintf(out, "\nProfile '%s' already has a cookie. Replace it? (y/N): ", profile)
		if !confirmed(reader) {
			return nil
		}
	}

	fmt.Fprint(out, "\nCookie header (input is hidden): ")
	cookie, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read cookie: %w", err)
	}
	if err := auth.ValidateCookie(cookie); err != nil {
		return err
	}

	p := ui.Printer{Out: out}
	if missing := auth.MissingSessionCookies(cookie); len(missing) > 0 {
		p.Warning("The cookie has no %s; downloads will likely be rejected", strings.Join(missing, " or "))
		fmt.Fprint(out, "Store it anyway? (y/N): ")
		if !confirmed(reader) {
			return nil
		}
	}

	fmt.Fprint(out, "User agent of that browser (Enter for default): ")
	userAgent, _ := reader.ReadString('\n')

	cred := &auth.Credential{
		Profile:   profile,
		Cookie:    cookie,
		UserAgent: strings.TrimSpace(userAgent),
	}
	if err := manager.Store(cred); err != nil {
		return fmt.Errorf("failed to store cookie: %w", err)
	}

	p.Success("Cookie stored for profile '%s': %s", profile, auth.MaskCookie(cookie))
	fmt.Fprintln(out, "\nStart downloading with 'tweetvault download'")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	profile := profileArg(args)
	if err := manager.Delete(profile); err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			return fmt.Errorf("no stored cookie for profile '%s'", profile)
		}
		return fmt.Errorf("failed to remove cookie: %w", err)
	}
	ui.Printer{Out: cmd.OutOrStdout(), Quiet: quiet}.Success("Cookie removed for profile '%s'", profile)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	creds, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}

	out := cmd.OutOrStdout()
	p := ui.Printer{Out: out}
	if len(creds) == 0 {
		p.Info("No stored cookie", "use 'tweetvault auth login' to add one")
		auth.WriteQuickGuide(out)
		return nil
	}

	p.Highlight("Stored Profiles")
	fmt.Fprintln(out)
	for i, cred := range creds {
		sanitized := auth.Sanitize(cred)
		fmt.Fprintf(out, "%d. Profile: %s\n", i+1, sanitized.Profile)
		fmt.Fprintf(out, "   Cookie: %s\n", sanitized.Cookie)
		if missing := auth.MissingSessionCookies(cred.Cookie); len(missing) > 0 {
			fmt.Fprintf(out, "   %s\n", ui.Yellow("Missing: "+strings.Join(missing, ", ")))
		}
		if sanitized.UserAgent != "" {
			fmt.Fprintf(out, "   User Agent: %s\n", sanitized.UserAgent)
		}
		if !sanitized.LastModified.IsZero() {
			fmt.Fprintf(out, "   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintln(out)
	}
	return nil
}

func confirmed(reader *bufio.Reader) bool {
	input, _ := reader.ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y")
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
