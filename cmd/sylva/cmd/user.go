package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jdelmas/sylva/auth"
	"github.com/jdelmas/sylva/config"
	"github.com/jdelmas/sylva/session"
)

var (
	userEmail string
	userName  string
	userRole  string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		role := session.Role(userRole)
		if !role.Valid() {
			return fmt.Errorf("invalid role %q (want admin, supervisor or worker)", userRole)
		}
		if userEmail == "" || userName == "" {
			return errors.New("--email and --name are required")
		}

		password, err := readPassword()
		if err != nil {
			return err
		}

		cfg, err := config.Load(ctx)
		if err != nil {
			return err
		}
		_, users, closeStores, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStores()

		hasher, err := auth.NewHasher(auth.DefaultArgon2idParams())
		if err != nil {
			return err
		}
		hash, err := hasher.Hash(password)
		if err != nil {
			return err
		}

		u := session.User{
			ID:           uuid.NewString(),
			Email:        strings.ToLower(strings.TrimSpace(userEmail)),
			Name:         userName,
			PasswordHash: hash,
			Role:         role,
			CreatedAt:    time.Now().UTC(),
		}
		if err := users.SaveUser(ctx, u); err != nil {
			if errors.Is(err, session.ErrDuplicateEmail) {
				return fmt.Errorf("an account with email %s already exists", u.Email)
			}
			return err
		}

		fmt.Printf("created %s (%s, %s)\n", u.Email, u.ID, u.Role)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(ctx)
		if err != nil {
			return err
		}
		_, users, closeStores, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStores()

		all, err := users.ListUsers(ctx)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "EMAIL\tNAME\tROLE\tSTATUS\tID")
		for _, u := range all {
			status := "active"
			if u.Disabled {
				status = "disabled"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.Email, u.Name, u.Role, status, u.ID)
		}
		return tw.Flush()
	},
}

var userDisableCmd = &cobra.Command{
	Use:   "disable <email>",
	Short: "Disable an account and revoke its sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setDisabled(cmd, args[0], true)
	},
}

var userEnableCmd = &cobra.Command{
	Use:   "enable <email>",
	Short: "Re-enable a disabled account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setDisabled(cmd, args[0], false)
	},
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <email>",
	Short: "Reset an account's password and revoke its sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		password, err := readPassword()
		if err != nil {
			return err
		}

		cfg, err := config.Load(ctx)
		if err != nil {
			return err
		}
		sessStore, users, closeStores, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStores()

		u, err := users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(args[0])))
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return fmt.Errorf("no account with email %s", args[0])
			}
			return err
		}

		hasher, err := auth.NewHasher(auth.DefaultArgon2idParams())
		if err != nil {
			return err
		}
		u.PasswordHash, err = hasher.Hash(password)
		if err != nil {
			return err
		}
		if err := users.SaveUser(ctx, u); err != nil {
			return err
		}
		// Old sessions die with the old password.
		if err := sessStore.DeleteAllForUser(ctx, u.ID); err != nil {
			return err
		}

		fmt.Printf("password updated for %s\n", u.Email)
		return nil
	},
}

// setDisabled flips the disabled flag. Disabling revokes every live session
// immediately, so the account loses access without waiting for expiry.
func setDisabled(cmd *cobra.Command, email string, disabled bool) error {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	sessStore, users, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	u, err := users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return fmt.Errorf("no account with email %s", email)
		}
		return err
	}

	u.Disabled = disabled
	if err := users.SaveUser(ctx, u); err != nil {
		return err
	}

	if disabled {
		if err := sessStore.DeleteAllForUser(ctx, u.ID); err != nil {
			return err
		}
		fmt.Printf("disabled %s and revoked its sessions\n", u.Email)
	} else {
		fmt.Printf("enabled %s\n", u.Email)
	}
	return nil
}

// readPassword reads the password from SYLVA_PASSWORD or, failing that,
// from the first line of stdin.
func readPassword() (string, error) {
	if p := os.Getenv("SYLVA_PASSWORD"); p != "" {
		return p, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	return password, nil
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd, userListCmd, userDisableCmd, userEnableCmd, userPasswdCmd)

	userAddCmd.Flags().StringVar(&userEmail, "email", "", "Account email")
	userAddCmd.Flags().StringVar(&userName, "name", "", "Display name")
	userAddCmd.Flags().StringVar(&userRole, "role", "worker", "Role: admin, supervisor or worker")
}
