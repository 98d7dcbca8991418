package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vibe-perm configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.vibe-perm.yaml.",
		Example: `  vibe-perm config                             # show effective config
  vibe-perm config set simulation.rounds 100000  # more rounds per test
  vibe-perm config set tests clustering,recurrence
  vibe-perm config get simulation.seed           # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout(), viper.GetViper())
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd.OutOrStdout(), viper.GetViper(), args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd.OutOrStdout(), viper.GetViper(), args[0])
		},
	}
}

func runConfigShow(out io.Writer, v *viper.Viper) error {
	settings := make(map[string]any, len(flagNames))
	for key := range flagNames {
		settings[key] = v.Get(key)
	}

	data, err := yaml.Marshal(nestKeys(settings))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if file := v.ConfigFileUsed(); file != "" {
		fmt.Fprintf(out, "# config file: %s\n", file)
	}
	_, err = out.Write(data)
	return err
}

// nestKeys turns dotted keys into nested maps for display.
func nestKeys(flat map[string]any) map[string]any {
	nested := make(map[string]any)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts := strings.Split(k, ".")
		m := nested
		for _, p := range parts[:len(parts)-1] {
			sub, ok := m[p].(map[string]any)
			if !ok {
				sub = make(map[string]any)
				m[p] = sub
			}
			m = sub
		}
		m[parts[len(parts)-1]] = flat[k]
	}
	return nested
}

// parseValue converts a command-line value to the type stored for key.
func parseValue(key, value string) (any, error) {
	switch key {
	case keyTests:
		return strings.Split(value, ","), nil
	case keySampling:
		return value, nil
	case keyMinRecFrac:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return f, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func runConfigSet(out io.Writer, v *viper.Viper, key, value string) error {
	if _, ok := flagNames[key]; !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	parsed, err := parseValue(key, value)
	if err != nil {
		return err
	}
	v.Set(key, parsed)

	if _, _, err := configFromViper(v); err != nil {
		return err
	}

	cfgFile := v.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".vibe-perm.yaml")
	}

	if err := v.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(out, "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(out io.Writer, v *viper.Viper, key string) error {
	val := v.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(out, val)
	return nil
}
