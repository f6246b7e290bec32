package main

import (
	"fmt"
	"io"
	"net/mail"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mark3labs/carepath/internal/auth"
	"github.com/mark3labs/carepath/internal/config"
	"github.com/spf13/cobra"
)

var signinFlags struct {
	name  string
	email string
	save  bool
}

var signinCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in and set the email submissions are attributed to",
	Long: `Sign in with an email and password. Any credentials sign in as the demo
member; the email is what submissions are attributed to.

Use --save to store the email in the global config.`,
	Args: cobra.NoArgs,
	RunE: runSignin,
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create a demo account",
	Long: `Create a demo account from a full name, email and password. Nothing is
stored remotely; the account is signed in for this run.

Use --save to store the email in the global config.`,
	Args: cobra.NoArgs,
	RunE: runSignup,
}

var signoutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Sign out and forget the saved email",
	Long: `Sign out. The email saved in the global config is reset, so later
submissions are attributed to the demo member.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return signOut(cmd.OutOrStdout(), cfg.UserEmail)
	},
}

func init() {
	signinCmd.Flags().StringVar(&signinFlags.email, "email", "", "Sign in without prompting")
	signinCmd.Flags().BoolVar(&signinFlags.save, "save", false, "Save the email to the global config")

	signupCmd.Flags().StringVar(&signinFlags.name, "name", "", "Full name; with --email, sign up without prompting")
	signupCmd.Flags().StringVar(&signinFlags.email, "email", "", "Email; with --name, sign up without prompting")
	signupCmd.Flags().BoolVar(&signinFlags.save, "save", false, "Save the email to the global config")
}

func runSignin(cmd *cobra.Command, args []string) error {
	email := signinFlags.email
	if email == "" {
		email = cfg.UserEmail
		var password string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Email").
					Placeholder(config.DefaultUserEmail).
					Value(&email).
					Validate(validateEmail),
				huh.NewInput().
					Title("Password").
					EchoMode(huh.EchoModePassword).
					Value(&password),
			),
		)
		if err := form.RunWithContext(cmd.Context()); err != nil {
			return fmt.Errorf("sign-in canceled: %w", err)
		}
	} else if err := validateEmail(email); err != nil {
		return err
	}

	session := &auth.Session{}
	user, err := session.SignIn(email, "")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Signed in as %s <%s> (%s)\n", user.FullName(), user.Email, user.CurrentRole)
	return finishSignin(out, user.Email, signinFlags.save)
}

func runSignup(cmd *cobra.Command, args []string) error {
	name, email := signinFlags.name, signinFlags.email
	if name == "" || email == "" {
		var password string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Full name").
					Value(&name).
					Validate(validateName),
				huh.NewInput().
					Title("Email").
					Placeholder(config.DefaultUserEmail).
					Value(&email).
					Validate(validateEmail),
				huh.NewInput().
					Title("Password").
					EchoMode(huh.EchoModePassword).
					Value(&password),
			),
		)
		if err := form.RunWithContext(cmd.Context()); err != nil {
			return fmt.Errorf("sign-up canceled: %w", err)
		}
	} else {
		if err := validateName(name); err != nil {
			return err
		}
		if err := validateEmail(email); err != nil {
			return err
		}
	}

	session := &auth.Session{}
	user, err := session.SignUp(name, email, "")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Account created for %s <%s>\n", user.FullName(), user.Email)
	return finishSignin(out, user.Email, signinFlags.save)
}

// finishSignin saves email when asked, and otherwise points at --save when
// no config file exists yet.
func finishSignin(w io.Writer, email string, save bool) error {
	if save {
		if err := saveUserEmail(email); err != nil {
			return err
		}
		fmt.Fprintf(w, "Saved to %s\n", config.GlobalPath())
		return nil
	}
	if !config.Exists() {
		fmt.Fprintln(w, "Not saved. Use --save or 'carepath setup --user-email' to keep this email.")
	}
	return nil
}

// saveUserEmail writes email into the global config file only.
func saveUserEmail(email string) error {
	global, err := config.LoadFile(config.GlobalPath())
	if err != nil {
		return err
	}
	global.UserEmail = email
	if err := config.WriteGlobal(global); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// signOut ends the session for current and resets a saved email in the
// global config.
func signOut(w io.Writer, current string) error {
	session := &auth.Session{}
	if _, err := session.SignIn(current, ""); err == nil {
		session.SignOut()
	}

	if fileExists(config.GlobalPath()) {
		global, err := config.LoadFile(config.GlobalPath())
		if err != nil {
			return err
		}
		if global.UserEmail != config.DefaultUserEmail {
			if err := saveUserEmail(config.DefaultUserEmail); err != nil {
				return err
			}
			fmt.Fprintf(w, "Removed %s from %s\n", global.UserEmail, config.GlobalPath())
		}
	}
	fmt.Fprintf(w, "Signed out. Submissions are attributed to %s\n", session.Submitter(config.DefaultUserEmail))
	return nil
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return auth.ErrEmailRequired
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("not a valid email address")
	}
	return nil
}

func validateName(s string) error {
	if strings.TrimSpace(s) == "" {
		return auth.ErrNameRequired
	}
	return nil
}
