package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/proref/config"
	"github.com/randalmurphal/proref/git"
	prerrors "github.com/randalmurphal/proref/errors"
)

// rootFlags are the persistent flags shared by every command.
type rootFlags struct {
	logFormat string
	verbose   bool
	tickets   []string
	force     bool
	workers   int
	database  string
}

// cli is one invocation of the command.
type cli struct {
	stdout io.Writer
	stderr io.Writer
	flags  rootFlags

	// resolver builds the config resolver. Tests point it at temporary
	// config files.
	resolver   func(errw io.Writer) *config.Resolver
	saveConfig func() config.SaveConfig

	// code is the exit code reported by the batch commands: the worst
	// status seen.
	code int
}

func newCLI(stdout, stderr io.Writer) *cli {
	return &cli{
		stdout: stdout,
		stderr: stderr,
		resolver: func(errw io.Writer) *config.Resolver {
			return config.NewResolver(config.ResolverConfig{
				EnvPrefix:  config.EnvPrefix,
				GlobalPath: config.GlobalPath(),
				LocalName:  config.LocalName,
				Keys:       config.Keys,
				ErrWriter:  errw,

				GitRootFinder: git.FindRoot,
			})
		},
		saveConfig: config.NewProrefSaveConfig,
	}
}

// record keeps the worst exit code: failure beats partial beats success.
func (c *cli) record(code int) {
	switch {
	case code == 1:
		c.code = 1
	case code == 2 && c.code == 0:
		c.code = 2
	}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "proref",
		Short: "Refine backlog tickets with generated questions and test cases",
		Long: "proref fetches backlog tickets, embeds and scores them, generates refinement\n" +
			"questions and test cases, and publishes them back as comments. Every derived\n" +
			"result is tied to the ticket content it was made from, so edited tickets are\n" +
			"picked up again automatically.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	f := root.PersistentFlags()
	f.StringVar(&c.flags.logFormat, "log-format", "", "Log format: text or json")
	f.BoolVar(&c.flags.verbose, "verbose", false, "Log debug detail")
	f.StringArrayVarP(&c.flags.tickets, "ticket", "t", nil, "Limit the command to this ticket (repeatable)")
	f.BoolVar(&c.flags.force, "force", false, "Reprocess tickets whose stage is already current")
	f.IntVar(&c.flags.workers, "workers", 0, "Tickets processed in parallel")
	f.StringVar(&c.flags.database, "database", "", "Path of the state database")

	root.AddCommand(
		c.fetchCmd(),
		c.embedCmd(),
		c.scoreCmd(),
		c.generateCmd(),
		c.publishCmd(),
		c.runCmd(),
		c.statusCmd(),
		c.relatedCmd(),
		c.matchCmd(),
		c.configCmd(),
	)
	return root
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := newCLI(stdout, stderr)
	return c.execute(ctx, args)
}

func (c *cli) execute(ctx context.Context, args []string) int {
	root := c.rootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", prerrors.Render(err))
		return 1
	}
	return c.code
}
