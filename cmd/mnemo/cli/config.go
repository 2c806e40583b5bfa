package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mnemo/internal/config"
	"github.com/felixgeelhaar/mnemo/internal/credential"
	"github.com/felixgeelhaar/mnemo/internal/store"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value (keys ending in .api_key are encrypted)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, keys, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := setConfig(st, keys, args[0], args[1]); err != nil {
			return fmt.Errorf("failed to set config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved: %s\n", args[0])
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		val, err := st.GetConfig(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), display(args[0], val))
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored configuration values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		return listConfig(st, cmd.OutOrStdout())
	},
}

var configDeleteCmd = &cobra.Command{
	Use:   "delete [key]",
	Short: "Delete a stored configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.DeleteConfig(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration deleted: %s\n", args[0])
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(dataDir, "config.yaml")
		if len(args) == 1 {
			path = args[0]
		}
		if fileExists(path) {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(args[0])
		if err != nil {
			return err
		}
		return report(cfg.Validate(), cmd.OutOrStdout())
	},
}

func init() {
	RootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd, configGetCmd, configListCmd, configDeleteCmd, configInitCmd, configValidateCmd)
}

func isSecret(key string) bool {
	return strings.HasSuffix(key, ".api_key")
}

func setConfig(st store.Storage, keys *credential.Keyring, key, value string) error {
	if isSecret(key) {
		return keys.Set(strings.TrimSuffix(key, ".api_key"), value)
	}
	return st.SetConfig(key, value)
}

// display never prints a sealed value.
func display(key, val string) string {
	switch {
	case val == "":
		return "(not set)"
	case isSecret(key) || credential.IsSealed(val):
		return "(encrypted)"
	}
	return val
}

func listConfig(st store.Storage, out io.Writer) error {
	all, err := st.ListConfig()
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Fprintln(out, "(no stored configuration)")
		return nil
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%s = %s\n", k, display(k, all[k]))
	}
	return nil
}

func report(res config.ValidationResult, out io.Writer) error {
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(out, "error: %s\n", e)
	}
	if !res.Valid {
		return fmt.Errorf("configuration has %d error(s)", len(res.Errors))
	}
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}
