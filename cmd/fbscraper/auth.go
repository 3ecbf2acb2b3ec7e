package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fbscraper/pkg/auth"
	"fbscraper/pkg/ui"
)

var loginFile string

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored sessions",
	Long: `Manage the request data of browser sessions.

Sessions are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - The FBSCRAPER_REQUEST_DATA environment variable (read only)

The request data gives full access to your account. Never share it!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store a session's request data",
	Long: `Store the request data of a logged-in browser session under a name.

The data is read from --file when given. Otherwise you are prompted for the
cookie header and each form field; secret values are not echoed.`,
	Example: `  # Store the session copied into a file
  fbscraper auth login personal --file request_data.txt

  # Interactive login
  fbscraper auth login`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout <name>",
	Short: "Remove a stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return fmt.Errorf("failed to initialize credential manager: %w", err)
		}
		if err := manager.Delete(args[0]); err != nil {
			return err
		}
		ui.PrintSuccess("Account removed: " + args[0])
		return nil
	},
}

// authListCmd represents the auth list command
var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Args:  cobra.NoArgs,
	RunE:  runAuthList,
}

// authShowCmd represents the auth show command
var authShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a stored session with its secrets masked",
	Long:  `Show a stored session. Without a name the default session is shown.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthShow,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(authListCmd)
	authCmd.AddCommand(authShowCmd)

	loginCmd.Flags().StringVarP(&loginFile, "file", "f", "", "file holding the request data")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	name := "default"
	if len(args) > 0 {
		name = args[0]
	}

	var raw string
	if loginFile != "" {
		data, err := os.ReadFile(loginFile)
		if err != nil {
			return fmt.Errorf("failed to read request data: %w", err)
		}
		raw = string(data)
	} else {
		auth.ShowRequestDataGuide(os.Stdout)
		raw, err = promptRequestData(reader)
		if err != nil {
			return err
		}
	}

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("\nAccount '%s' already exists. Replace it? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	account := &auth.Account{Name: name, RequestData: raw}
	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	sanitized := auth.SanitizeAccount(account)
	ui.PrintSuccess(fmt.Sprintf("Account saved: %s (user %s)", name, sanitized.UserID))
	if auth.IsKeyringAvailable() {
		ui.PrintInfo("Stored in", "system keychain")
	} else {
		ui.PrintInfo("Stored in", "encrypted file")
	}
	return nil
}

// promptRequestData asks for each required field and returns them as
// "name: value" lines
func promptRequestData(reader *bufio.Reader) (string, error) {
	fields := []struct {
		name   string
		secret bool
	}{
		{"cookie", true},
		{"__user", false},
		{"__a", false},
		{"__dyn", false},
		{"__req", false},
		{"fb_dtsg", true},
		{"__rev", false},
	}

	var b strings.Builder
	for _, f := range fields {
		fmt.Printf("%s: ", f.name)
		var value string
		var err error
		if f.secret {
			value, err = readPassword(reader)
		} else {
			value, err = reader.ReadString('\n')
		}
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", f.name, err)
		}
		fmt.Fprintf(&b, "%s: %s\n", f.name, strings.TrimSpace(value))
	}
	return b.String(), nil
}

// readPassword reads a line from stdin without echoing when it is a terminal
func readPassword(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return string(password), nil
		}
	}
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'fbscraper auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Accounts")
	for i, account := range accounts {
		s := auth.SanitizeAccount(account)
		fmt.Printf("%d. %s (user %s, updated %s)\n", i+1, s.Name, s.UserID, s.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runAuthShow(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var account *auth.Account
	if len(args) > 0 {
		account, err = manager.Retrieve(args[0])
	} else {
		account, err = manager.RetrieveDefault()
	}
	if err != nil {
		return err
	}

	s := auth.SanitizeAccount(account)
	ui.PrintInfo("Name", s.Name)
	if !s.Valid {
		ui.PrintWarning("Stored request data is incomplete, run 'fbscraper auth login " + s.Name + "' again")
		return nil
	}
	ui.PrintInfo("User", s.UserID)
	ui.PrintInfo("Cookie", s.Cookie)
	ui.PrintInfo("fb_dtsg", s.DTSG)
	if !s.LastModified.IsZero() {
		ui.PrintInfo("Last modified", s.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}
