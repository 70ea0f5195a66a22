package cli

import (
	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/rashomon-gh/proton-drive-sync/internal/auth"
)

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with Proton",
	}
	cmd.AddCommand(newAuthLoginCommand(), newAuthLogoutCommand())
	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate with Proton",
		RunE: func(cmd *cobra.Command, args []string) error {
			printfln("Proton Drive Authentication")
			printfln("============================")
			printfln("")

			var username string
			if err := survey.AskOne(&survey.Input{Message: "Email or username:"}, &username, survey.WithValidator(survey.Required)); err != nil {
				return err
			}

			var password string
			if err := survey.AskOne(&survey.Password{Message: "Password:"}, &password, survey.WithValidator(survey.Required)); err != nil {
				return err
			}

			printfln("")
			printfln("Authenticating...")

			session, err := auth.NewManager().Authenticate(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			printfln("✓ Authentication successful")

			if err := auth.SaveSession(session); err != nil {
				return err
			}
			printfln("✓ Credentials saved securely")

			// Initialize the state database so later commands find it.
			st, err := openStore(1)
			if err != nil {
				return err
			}
			closeStore(st)

			printfln("")
			printfln("Setup complete! Run 'proton-drive-sync setup' to configure sync directories.")
			return nil
		},
	}
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout and clear credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			printfln("Clearing Proton credentials...")
			if err := auth.DeleteSession(); err != nil {
				return err
			}
			printfln("✓ Credentials cleared")
			return nil
		},
	}
}
