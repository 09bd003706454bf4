package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/s0up4200/ptpapi/config"
	"github.com/s0up4200/ptpapi/ptp"
)

var (
	loginUsername  string
	inboxPage      int
	conversationID string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and report the authentication method used",
	Long: `Log in to PassThePopcorn with the configured credentials. With --username
the password is read from PTP_PASSWORD or prompted for, and password login
is used instead of the API key.`,
	RunE: runLogin,
}

var userCmd = &cobra.Command{
	Use:   "user [id]",
	Short: "Show your profile or another user's",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUser,
}

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List inbox messages or read a conversation",
	RunE:  runInbox,
}

func init() {
	rootCmd.AddCommand(loginCmd, userCmd, inboxCmd)

	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "log in with this username and a password")
	inboxCmd.Flags().IntVar(&inboxPage, "page", 1, "inbox page")
	inboxCmd.Flags().StringVar(&conversationID, "conversation", "", "show this conversation")
}

func runLogin(cmd *cobra.Command, args []string) error {
	client := ptpClient

	if loginUsername != "" {
		if err := usePasswordLogin(cmd); err != nil {
			return err
		}
		var err error
		client, err = ptp.NewClient(clientCfg, logger, ptp.WithTimeout(requestWait))
		if err != nil {
			return err
		}
	}

	strategy, err := ptp.SelectStrategy(clientCfg)
	if err != nil {
		return err
	}

	if _, err := withRetry(cmd.Context(), clientCfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, client.Login(ctx)
	}); err != nil {
		return err
	}

	session := client.Session()
	fmt.Printf("Logged in using %s authentication (%d cookies)\n", strategy.Kind, len(session.Cookies))
	return nil
}

// usePasswordLogin switches the configuration to password login, prompting
// for the password when none is configured.
func usePasswordLogin(cmd *cobra.Command) error {
	if err := clientCfg.Set(config.KeyUsername, loginUsername); err != nil {
		return err
	}

	if !clientCfg.Has(config.KeyPassword) {
		fmt.Fprint(os.Stderr, "Password: ")
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		if err := clientCfg.Set(config.KeyPassword, string(password)); err != nil {
			return err
		}
	}

	// API-key credentials take priority; clear them so the password is used.
	for _, key := range config.APIAuthKeys {
		if err := clientCfg.Set(key, ""); err != nil {
			return err
		}
	}

	return clientCfg.ValidatePasswordAuth()
}

func runUser(cmd *cobra.Command, args []string) error {
	user, err := withRetry(cmd.Context(), clientCfg, func(ctx context.Context) (*ptp.User, error) {
		if len(args) == 1 {
			return ptpClient.GetUser(ctx, args[0])
		}
		return ptpClient.GetCurrentUser(ctx)
	})
	if err != nil {
		return err
	}

	if done, err := renderStructured(os.Stdout, outputFormat, user); done {
		return err
	}

	rows := [][2]string{
		{"ID", string(user.ID)},
		{"Username", user.Username},
		{"Joined", user.JoinDate},
		{"Uploaded", string(user.Uploaded)},
		{"Downloaded", string(user.Downloaded)},
		{"Ratio", string(user.Ratio)},
		{"Required ratio", string(user.RequiredRatio)},
	}
	if user.Inbox != nil {
		rows = append(rows, [2]string{"New messages", strconv.Itoa(user.Inbox.NewMessages)})
	}
	renderProperties(os.Stdout, rows)
	return nil
}

func runInbox(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	user, err := withRetry(ctx, clientCfg, ptpClient.GetCurrentUser)
	if err != nil {
		return err
	}

	if conversationID != "" {
		conv, err := withRetry(ctx, clientCfg, func(ctx context.Context) (*ptp.Conversation, error) {
			return user.Inbox.Conversation(ctx, conversationID)
		})
		if err != nil {
			return err
		}
		if done, err := renderStructured(os.Stdout, outputFormat, conv); done {
			return err
		}

		fmt.Printf("%s\n\n", conv.Subject)
		for _, msg := range conv.Messages {
			fmt.Printf("From %s at %s\n%s\n\n", msg.SenderName, msg.Sent, msg.Body)
		}
		return nil
	}

	messages, err := withRetry(ctx, clientCfg, func(ctx context.Context) ([]ptp.Message, error) {
		return user.Inbox.Messages(ctx, inboxPage)
	})
	if err != nil {
		return err
	}

	if done, err := renderStructured(os.Stdout, outputFormat, messages); done {
		return err
	}

	if len(messages) == 0 {
		fmt.Println("No messages.")
		return nil
	}

	rows := make([][2]string, 0, len(messages))
	for _, msg := range messages {
		status := " "
		if !msg.Read {
			status = "*"
		}
		rows = append(rows, [2]string{
			fmt.Sprintf("%s %s", status, msg.ID),
			fmt.Sprintf("%s (%s, %s)", truncate(msg.Subject, 60), msg.SenderName, msg.Sent),
		})
	}
	renderProperties(os.Stdout, rows)
	fmt.Printf("%d new message(s)\n", user.Inbox.NewMessages)
	return nil
}
