package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/petal-labs/showroom/cli/keystore"
)

func (a *App) newKeysCommand() *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
		Long: `Manage API keys for config profiles. Keys are stored encrypted in
~/.showroom/keys.enc. Set SHOWROOM_MASTER_KEY to choose the encryption
secret; otherwise one is derived from this machine.`,
	}

	keysSetCmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Store an API key",
		Long:  `Store the API key for a profile (or its api_key_ref). The key is prompted without echo.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runKeysSet(args[0])
		},
	}

	keysListCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored API keys",
		Long:  `List all stored API keys. Only names are shown, never key values.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runKeysList()
		},
	}

	keysDeleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runKeysDelete(args[0])
		},
	}

	keysCmd.AddCommand(keysSetCmd, keysListCmd, keysDeleteCmd)
	return keysCmd
}

func (a *App) runKeysSet(name string) error {
	fmt.Fprintf(a.stderr, "Enter API key for %s: ", name)

	apiKey, err := a.readSecret()
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to read key: %w", err))
	}
	if apiKey == "" {
		return exitWithCode(ExitValidation, errors.New("API key cannot be empty"))
	}

	ks, err := a.newKeystore()
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to open keystore: %w", err))
	}
	if err := ks.Set(name, apiKey); err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to store key: %w", err))
	}

	fmt.Fprintf(a.stdout, "API key for %s stored successfully.\n", name)
	return nil
}

// readSecret reads a line from stdin, without echo when stdin is a
// terminal.
func (a *App) readSecret() (string, error) {
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		keyBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(keyBytes)), nil
	}

	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *App) runKeysList() error {
	ks, err := a.newKeystore()
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to open keystore: %w", err))
	}

	names, err := ks.List()
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to list keys: %w", err))
	}

	if a.jsonOutput {
		if names == nil {
			names = []string{}
		}
		return a.printJSON(map[string][]string{"keys": names})
	}
	if len(names) == 0 {
		fmt.Fprintln(a.stdout, "No API keys stored.")
		return nil
	}

	fmt.Fprintln(a.stdout, "Stored keys:")
	for _, name := range names {
		fmt.Fprintf(a.stdout, "  - %s\n", name)
	}
	return nil
}

func (a *App) runKeysDelete(name string) error {
	ks, err := a.newKeystore()
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to open keystore: %w", err))
	}

	if err := ks.Delete(name); err != nil {
		var notFound *keystore.ErrKeyNotFound
		if errors.As(err, &notFound) {
			return exitWithCode(ExitNotFound, fmt.Errorf("no key stored for %s", name))
		}
		return exitWithCode(ExitValidation, fmt.Errorf("failed to delete key: %w", err))
	}

	fmt.Fprintf(a.stdout, "API key for %s deleted.\n", name)
	return nil
}
