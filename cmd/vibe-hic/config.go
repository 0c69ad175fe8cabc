package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/inodb/vibe-hic/internal/contact"
	"github.com/inodb/vibe-hic/internal/interaction"
)

// Configuration keys
const (
	keyMinDistance     = "filters.min_distance"
	keyMaxDistance     = "filters.max_distance"
	keyMinStrength     = "filters.min_strength"
	keyMaxSignificance = "filters.max_significance"
	keyMinAbsolute     = "filters.min_absolute"
	keyCorrectLinkage  = "linkage.correct"
	keyMaxInteractions = "limits.max_interactions"
	keyWorkers         = "limits.workers"
	keyReadLength      = "contacts.read_length"
	keyContactMinDist  = "contacts.min_distance"
	keyIgnoreTrans     = "contacts.ignore_trans"
)

func setDefaults() {
	defaults := interaction.DefaultFilters()
	viper.SetDefault(keyMinDistance, defaults.MinDistance)
	viper.SetDefault(keyMaxDistance, defaults.MaxDistance)
	viper.SetDefault(keyMinStrength, defaults.MinStrength)
	viper.SetDefault(keyMaxSignificance, defaults.MaxSignificance)
	viper.SetDefault(keyMinAbsolute, defaults.MinAbsolute)
	viper.SetDefault(keyCorrectLinkage, true)
	viper.SetDefault(keyMaxInteractions, interaction.DefaultMaxInteractions)
	viper.SetDefault(keyWorkers, 0)
	viper.SetDefault(keyReadLength, contact.DefaultReadLength)
	viper.SetDefault(keyContactMinDist, 0)
	viper.SetDefault(keyIgnoreTrans, false)
}

// bindFlags binds command flags to configuration keys. Flags are bound when
// their command runs so commands sharing a key do not shadow each other.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// filtersFromConfig returns the filter bounds from flags, config and defaults.
func filtersFromConfig() interaction.Filters {
	return interaction.Filters{
		MinDistance:     viper.GetInt64(keyMinDistance),
		MaxDistance:     viper.GetInt64(keyMaxDistance),
		MinStrength:     viper.GetFloat64(keyMinStrength),
		MaxSignificance: viper.GetFloat64(keyMaxSignificance),
		MinAbsolute:     viper.GetInt(keyMinAbsolute),
	}
}

// storeOptionsFromConfig returns the contact import filters.
func storeOptionsFromConfig() contact.StoreOptions {
	return contact.StoreOptions{
		MinDistance: viper.GetInt64(keyContactMinDist),
		IgnoreTrans: viper.GetBool(keyIgnoreTrans),
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vibe-hic configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.vibe-hic.yaml.",
		Example: `  vibe-hic config                                  # show all config
  vibe-hic config set filters.max_significance 0.05  # default p-value ceiling
  vibe-hic config get linkage.correct                # get a value`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
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
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd, args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd, args[0])
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	settings := viper.AllSettings()
	if len(settings) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "# No configuration set. Config file: ~/.vibe-hic.yaml")
		return nil
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

func runConfigSet(cmd *cobra.Command, key, value string) error {
	// Parse boolean-like and numeric values
	switch value {
	case "true", "yes", "on":
		viper.Set(key, true)
	case "false", "no", "off":
		viper.Set(key, false)
	default:
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			viper.Set(key, n)
		} else if f, err := strconv.ParseFloat(value, 64); err == nil {
			viper.Set(key, f)
		} else {
			viper.Set(key, value)
		}
	}

	// Ensure config file exists
	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".vibe-hic.yaml")
	}

	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(cmd *cobra.Command, key string) error {
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), val)
	return nil
}
