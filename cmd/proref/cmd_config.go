package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/proref/config"
)

const redacted = "********"

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
		Long: "Configuration is read from defaults, ~/.config/proref/config.yaml, .proref.yaml\n" +
			"in the git root and PROREF_* environment variables, later sources winning.",
	}
	cmd.AddCommand(c.configGetCmd(), c.configSetCmd(), c.configUnsetCmd())
	return cmd
}

func (c *cli) configGetCmd() *cobra.Command {
	var showSecrets bool
	cmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Print resolved values and where they came from",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved := c.resolver(c.stderr).Resolve()
			show := func(key string) string {
				v := resolved.Get(key)
				if k, ok := config.LookupKey(key); ok && k.Secret && v != "" && !showSecrets {
					return redacted
				}
				return v
			}

			if len(args) == 1 {
				if _, ok := config.LookupKey(args[0]); !ok {
					return fmt.Errorf("%w: %s", config.ErrUnknownKey, args[0])
				}
				fmt.Fprintln(c.stdout, show(args[0]))
				return nil
			}

			tw := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE")
			for _, key := range resolved.Keys() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", key, show(key), resolved.Source(key))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print secret values instead of masking them")
	return cmd
}

func (c *cli) configSetCmd() *cobra.Command {
	var global bool
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Save a value in the project or global config file",
		Long: "Set writes to .proref.yaml in the git root, or to the global file with\n" +
			"--global. Secrets can only be saved globally.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			save := c.saveConfig()
			if global {
				if err := save.SaveGlobal(key, value); err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "Set %s in %s\n", key, save.GlobalPath)
				return nil
			}

			root := c.resolver(c.stderr).GitRoot()
			if root == "" {
				return fmt.Errorf("not inside a git repository; use --global to save %s for every project", key)
			}
			if err := save.SaveLocal(root, key, value); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Set %s in %s\n", key, config.LocalName)
			return nil
		},
	}
	cmd.Flags().BoolVar(&global, "global", false, "Save in the global config file")
	return cmd
}

func (c *cli) configUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a value from the global config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := config.LookupKey(args[0]); !ok {
				return fmt.Errorf("%w: %s", config.ErrUnknownKey, args[0])
			}
			return c.saveConfig().DeleteGlobalKey(args[0])
		},
	}
}
