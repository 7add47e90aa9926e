package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/investly/adminportal/internal/roles"
)

// Opener connects to the role catalog. The returned func releases it.
type Opener func(ctx context.Context, envFile string) (*roles.Service, func(), error)

// JobsOpener connects to the job queue.
type JobsOpener func(envFile string) (*JobsCLI, error)

// Deps are the collaborators of the command tree.
type Deps struct {
	Open     Opener
	OpenJobs JobsOpener
	Stdout   io.Writer
	Stderr   io.Writer
}

type rootFlags struct {
	envFile string
	output  string
}

// NewRootCommand builds the rbacctl command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "rbacctl",
		Short:         "Inspect and adjust admin portal roles and permissions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if deps.Stdout != nil {
		cmd.SetOut(deps.Stdout)
	}
	if deps.Stderr != nil {
		cmd.SetErr(deps.Stderr)
	}
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	cmd.PersistentFlags().StringVarP(&flags.output, "output", "o", FormatTable, "output format: table, json or yaml")

	// withCatalog opens the catalog for one command run.
	withCatalog := func(run func(ctx context.Context, c *CatalogCLI, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			printer := Printer{Format: flags.output, Out: cmd.OutOrStdout()}
			if err := printer.Validate(); err != nil {
				return err
			}
			if deps.Open == nil {
				return errors.New("catalog not configured")
			}
			svc, closeFn, err := deps.Open(cmd.Context(), flags.envFile)
			if err != nil {
				return err
			}
			defer closeFn()
			return run(cmd.Context(), &CatalogCLI{Service: svc, Printer: printer}, args)
		}
	}

	var module string
	pagesCmd := &cobra.Command{
		Use:   "pages",
		Short: "List registered pages and their actions",
		Args:  cobra.NoArgs,
		RunE: withCatalog(func(_ context.Context, c *CatalogCLI, _ []string) error {
			return c.Pages(module)
		}),
	}
	pagesCmd.Flags().StringVar(&module, "module", "", "only pages of this module")

	var failDenied bool
	checkCmd := &cobra.Command{
		Use:   "check <role> <page> <action>",
		Short: "Answer whether a role may perform an action on a page",
		Args:  cobra.ExactArgs(3),
		RunE: withCatalog(func(ctx context.Context, c *CatalogCLI, args []string) error {
			return c.Check(ctx, args[0], args[1], args[2], failDenied)
		}),
	}
	checkCmd.Flags().BoolVar(&failDenied, "fail-denied", false, "exit non-zero when the permission is not granted")

	cmd.AddCommand(
		pagesCmd,
		&cobra.Command{
			Use:   "modules",
			Short: "List page modules",
			Args:  cobra.NoArgs,
			RunE: withCatalog(func(_ context.Context, c *CatalogCLI, _ []string) error {
				return c.Modules()
			}),
		},
		&cobra.Command{
			Use:   "roles",
			Short: "List roles",
			Args:  cobra.NoArgs,
			RunE: withCatalog(func(ctx context.Context, c *CatalogCLI, _ []string) error {
				return c.Roles(ctx)
			}),
		},
		&cobra.Command{
			Use:   "matrix <role>",
			Short: "Print the permission matrix of a role",
			Args:  cobra.ExactArgs(1),
			RunE: withCatalog(func(ctx context.Context, c *CatalogCLI, args []string) error {
				return c.Matrix(ctx, args[0])
			}),
		},
		checkCmd,
		&cobra.Command{
			Use:   "grant <role> <page> <action>",
			Short: "Enable one permission on a role",
			Args:  cobra.ExactArgs(3),
			RunE: withCatalog(func(ctx context.Context, c *CatalogCLI, args []string) error {
				return c.Set(ctx, args[0], args[1], args[2], true)
			}),
		},
		&cobra.Command{
			Use:   "revoke <role> <page> <action>",
			Short: "Disable one permission on a role",
			Args:  cobra.ExactArgs(3),
			RunE: withCatalog(func(ctx context.Context, c *CatalogCLI, args []string) error {
				return c.Set(ctx, args[0], args[1], args[2], false)
			}),
		},
		&cobra.Command{
			Use:   "seeds",
			Short: "Print the built-in seed roles",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				printer := Printer{Format: flags.output, Out: cmd.OutOrStdout()}
				if err := printer.Validate(); err != nil {
					return err
				}
				return (&CatalogCLI{Printer: printer}).Seeds()
			},
		},
		newJobsCommand(deps, flags),
	)
	return cmd
}

func newJobsCommand(deps Deps, flags *rootFlags) *cobra.Command {
	jobsCmd := &cobra.Command{Use: "jobs", Short: "Manage background jobs"}

	open := func() (*JobsCLI, error) {
		if deps.OpenJobs == nil {
			return nil, errors.New("job queue not configured")
		}
		return deps.OpenJobs(flags.envFile)
	}

	jobsCmd.AddCommand(
		&cobra.Command{
			Use:   "warm",
			Short: "Enqueue an immediate role cache warm-up",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				jc, err := open()
				if err != nil {
					return err
				}
				defer jc.Close()
				info, err := jc.Trigger(cmd.Context(), "warm")
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s\n", info.Type, info.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Show default queue statistics",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				printer := Printer{Format: flags.output, Out: cmd.OutOrStdout()}
				if err := printer.Validate(); err != nil {
					return err
				}
				jc, err := open()
				if err != nil {
					return err
				}
				defer jc.Close()
				stats, err := jc.InspectQueue(cmd.Context())
				if err != nil {
					return err
				}
				return printer.Print(stats, []string{"QUEUE", "PENDING", "ACTIVE", "SCHEDULED", "RETRY"}, [][]string{{
					stats.Queue, fmt.Sprint(stats.Pending), fmt.Sprint(stats.Active), fmt.Sprint(stats.Scheduled), fmt.Sprint(stats.Retry),
				}})
			},
		},
	)
	return jobsCmd
}
