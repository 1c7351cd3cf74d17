package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"ceased/internal/app"
	"ceased/internal/config"
	"ceased/internal/drive"
	"ceased/internal/engine"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Push", "ChatSend").
func newApp(ctx context.Context, operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// openDrive creates an App and opens the drive selected by the --drive flag,
// prompting for the identity passphrase when the stored private key is
// protected. The caller must defer a.Close().
func openDrive(cmd *cobra.Command, operation string) (*app.App, *drive.Drive, error) {
	name, _ := cmd.Flags().GetString("drive")

	a, err := newApp(cmd.Context(), operation)
	if err != nil {
		return nil, nil, err
	}

	passphrase := ""
	protected, err := a.IdentityProtected()
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	if protected {
		passphrase, err = promptPassphrase("Identity passphrase: ")
		if err != nil {
			a.Close()
			return nil, nil, err
		}
	}

	d, err := a.OpenDrive(cmd.Context(), name, passphrase)
	if err != nil {
		a.Close()
		return nil, nil, fmt.Errorf("opening drive: %w", err)
	}

	return a, d, nil
}

// promptPassphrase reads a passphrase from the terminal without echo.
func promptPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:   "ceased",
	Short: "Encrypted directory sync over a remote object store",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		if username == "" {
			username = os.Getenv("USER")
		}
		if username == "" {
			return fmt.Errorf("no username given: pass --username")
		}

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(username, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Username: %s\n", username)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Username: %s\n", cfg.Username)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("Remote:   %s\n", cfg.Remote.Type)
		for _, dc := range cfg.Drives {
			fmt.Printf("Drive:    %s  %s -> %s\n", dc.Name, dc.LocalRoot, dc.RemoteRootID)
		}
		return nil
	},
}

// identity command
var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage the local identity key pair",
}

var identityInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate an identity key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "InitIdentity")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := promptPassphrase("Passphrase (empty for none): ")
		if err != nil {
			return err
		}
		if passphrase != "" {
			confirm, err := promptPassphrase("Confirm passphrase: ")
			if err != nil {
				return err
			}
			if confirm != passphrase {
				return fmt.Errorf("passphrases do not match")
			}
		}

		if err := a.InitIdentity(passphrase); err != nil {
			return fmt.Errorf("initializing identity: %w", err)
		}

		fmt.Println("Identity key pair ready.")
		return nil
	},
}

// push command
var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload local changes to the remote store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, d, err := openDrive(cmd, "Push")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := d.Push(cmd.Context())

		var pushErr *engine.PushError
		if errors.As(err, &pushErr) {
			for _, path := range sortedKeys(pushErr.Failures) {
				fmt.Fprintf(os.Stderr, "failed: %s: %v\n", path, pushErr.Failures[path])
			}
		} else if err != nil {
			return fmt.Errorf("push failed: %w", err)
		}

		fmt.Printf("Uploaded %d file(s), deleted %d\n", len(result.Transferred), len(result.Deleted))
		if pushErr != nil {
			return fmt.Errorf("%d file(s) failed", len(pushErr.Failures))
		}
		return nil
	},
}

// pull command
var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download remote changes into the local root",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, d, err := openDrive(cmd, "Pull")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := d.Pull(cmd.Context())
		if err != nil {
			return fmt.Errorf("pull failed: %w", err)
		}

		fmt.Printf("Downloaded %d file(s), deleted %d\n", len(result.Transferred), len(result.Deleted))
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View drive status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, d, err := openDrive(cmd, "Status")
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := d.Status(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Drive ID: %s\n", st.ID)
		if st.HasKey {
			fmt.Println("Key:      present")
		} else {
			fmt.Println("Key:      missing (use 'ceased key request')")
		}
		fmt.Printf("Users:    %s\n", strings.Join(st.Users, ", "))
		return nil
	},
}

// chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Exchange encrypted messages with collaborators",
}

var chatSendCmd = &cobra.Command{
	Use:   "send USER MESSAGE",
	Short: "Send a message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, d, err := openDrive(cmd, "ChatSend")
		if err != nil {
			return err
		}
		defer a.Close()

		content := strings.Join(args[1:], " ")
		if _, err := d.SendMessage(cmd.Context(), args[0], content); err != nil {
			return fmt.Errorf("sending message: %w", err)
		}

		fmt.Printf("Sent to %s\n", args[0])
		return nil
	},
}

var chatRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch new messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, d, err := openDrive(cmd, "ChatRefresh")
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := d.RefreshMessages(cmd.Context(), force); err != nil {
			return fmt.Errorf("refreshing messages: %w", err)
		}

		fmt.Println("Messages refreshed.")
		return nil
	},
}

var chatMessagesCmd = &cobra.Command{
	Use:   "messages USER",
	Short: "View the conversation with a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, d, err := openDrive(cmd, "ChatMessages")
		if err != nil {
			return err
		}
		defer a.Close()

		msgs, err := d.Messages(args[0])
		if err != nil {
			return err
		}

		if len(msgs) == 0 {
			fmt.Println("No messages.")
			return nil
		}

		for _, m := range msgs {
			ts := time.Unix(0, int64(m.Timestamp*1e9)).Format("2006-01-02 15:04:05")
			fmt.Printf("%s  %-12s  %s\n", ts, m.Sender, m.Content)
		}
		return nil
	},
}

// key command
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Exchange the drive encryption key",
}

var keyRequestCmd = &cobra.Command{
	Use:   "request USER",
	Short: "Ask a collaborator for the drive key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, d, err := openDrive(cmd, "KeyRequest")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := d.RequestKey(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("requesting key: %w", err)
		}

		fmt.Printf("Key request sent to %s\n", args[0])
		return nil
	},
}

var keySendCmd = &cobra.Command{
	Use:   "send USER",
	Short: "Send the drive key to a collaborator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, d, err := openDrive(cmd, "KeySend")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := d.SendKey(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("sending key: %w", err)
		}

		fmt.Printf("Key sent to %s\n", args[0])
		return nil
	},
}

func sortedKeys(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	rootCmd.PersistentFlags().String("drive", "", "Drive name (default: first configured)")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("username", "", "Username published to collaborators")
	configCmd.AddCommand(configListCmd)

	// identity subcommands
	identityCmd.AddCommand(identityInitCmd)

	// chat subcommands
	chatCmd.AddCommand(chatSendCmd)
	chatCmd.AddCommand(chatRefreshCmd)
	chatRefreshCmd.Flags().BoolP("force", "f", false, "Re-process already seen messages")
	chatCmd.AddCommand(chatMessagesCmd)

	// key subcommands
	keyCmd.AddCommand(keyRequestCmd)
	keyCmd.AddCommand(keySendCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(identityCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(keyCmd)
}
