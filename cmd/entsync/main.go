package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entsync/entsync/pkg/cache"
	"github.com/entsync/entsync/pkg/merge"
	"github.com/entsync/entsync/pkg/productdb"
	"github.com/entsync/entsync/pkg/syncer"
	"github.com/entsync/entsync/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "entsync",
	Short: "Entsync - entitlement state synchronization agent",
	Long: `Entsync keeps a machine's subscription state in agreement with its
entitlement server: the system purpose record is reconciled with a
three-way merge, locally-generated collections are pushed when they
drift, and server-owned data is mirrored with offline fallback.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Entsync version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&configPath, "config",
		"/etc/entsync/entsync.yaml", "Path to the configuration file")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(unregisterCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(unsetCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(productsCmd)
}

// withSession runs fn inside a sync session and flushes it afterwards,
// reporting every key the final reconciliation changed.
func withSession(fn func(s *syncer.Session) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	s, err := a.session(syncer.WithChangeFunc(printChange))
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	return s.Close(context.Background())
}

func printChange(c merge.DiffChange) {
	switch {
	case !c.InResult:
		fmt.Printf("  %s: unset (%s)\n", c.Key, c.Source)
	case !c.InBase:
		fmt.Printf("  %s: %v (%s)\n", c.Key, c.NewValue, c.Source)
	default:
		fmt.Printf("  %s: %v -> %v (%s)\n", c.Key, c.PreviousValue, c.NewValue, c.Source)
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register this system with the entitlement server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		owner, _ := cmd.Flags().GetString("owner")
		if name == "" {
			hostname, err := os.Hostname()
			if err != nil {
				return fmt.Errorf("no --name given and hostname unavailable: %w", err)
			}
			name = hostname
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		id, err := a.register(context.Background(), name, owner)
		if err != nil {
			return err
		}
		fmt.Printf("Registered as %s\n", id.ConsumerUUID)
		return nil
	},
}

var unregisterCmd = &cobra.Command{
	Use:   "unregister",
	Short: "Unregister this system and remove its local state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.unregister(context.Background()); err != nil {
			return err
		}
		fmt.Println("System unregistered")
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a system purpose attribute",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *syncer.Session) error {
			if !s.Set(args[0], args[1]) {
				fmt.Printf("%s is already %q\n", args[0], args[1])
			}
			return nil
		})
	},
}

var unsetCmd = &cobra.Command{
	Use:   "unset KEY",
	Short: "Clear a system purpose attribute",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *syncer.Session) error {
			s.Unset(args[0])
			return nil
		})
	},
}

var addCmd = &cobra.Command{
	Use:   "add KEY VALUE",
	Short: "Add a value to a list attribute",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *syncer.Session) error {
			if !s.Add(args[0], args[1]) {
				fmt.Printf("%s already contains %q\n", args[0], args[1])
			}
			return nil
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove KEY VALUE",
	Short: "Remove a value from a list attribute",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *syncer.Session) error {
			if !s.Remove(args[0], args[1]) {
				fmt.Printf("%s does not contain %q\n", args[0], args[1])
			}
			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the system purpose record",
	Long: `Show the system purpose record. By default the local file is shown;
--source selects the merge base from the last reconciliation (cached)
or the server's current view (remote) instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		snap, err := a.snapshot(context.Background(), types.Provenance(source))
		if err != nil {
			return err
		}
		return printJSON(snap.Data)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the system purpose record with the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		changes := 0
		s, err := a.session(syncer.WithChangeFunc(func(c merge.DiffChange) {
			changes++
			printChange(c)
		}))
		if err != nil {
			return err
		}

		if _, err := s.Sync(context.Background()); err != nil {
			return err
		}
		if changes == 0 {
			fmt.Println("Already in sync")
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the entitlement status reported by the server",
	Long: `Show the entitlement status, served from the local mirror when the
server is unreachable. With --full the system purpose compliance,
release setting, content overrides and entitlement pools are included.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		full, _ := cmd.Flags().GetBool("full")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := context.Background()
		uuid := a.consumerUUID()
		if uuid == "" {
			fmt.Println("This system is not registered")
			return nil
		}

		status := a.statusCache()
		rec := status.Read(ctx, uuid)
		if rec == nil {
			if err := status.LastError(); err != nil {
				return fmt.Errorf("unable to determine entitlement status: %w", err)
			}
			fmt.Println("No entitlement status available")
			return nil
		}
		if err := printJSON(rec); err != nil {
			return err
		}

		if full {
			if purpose := a.purposeStatusCache().Read(ctx, uuid); purpose != nil {
				fmt.Println("System purpose compliance:")
				if err := printJSON(purpose); err != nil {
					return err
				}
			}
			if release := a.releaseCache().Read(ctx, uuid); release != nil {
				fmt.Println("Release:")
				if err := printJSON(release); err != nil {
					return err
				}
			}
			if overrides := a.overridesCache().Read(ctx, uuid); overrides != nil {
				fmt.Println("Content overrides:")
				if err := printJSON(overrides); err != nil {
					return err
				}
			}
			if pools := a.poolsCache().Read(ctx, uuid); pools != nil {
				fmt.Println("Pools:")
				if err := printJSON(pools); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload changed system data to the server",
	Long: `Upload the package profile and installed product list when they have
changed since the last successful upload. Unchanged collections are
skipped unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := context.Background()
		uuid := a.consumerUUID()
		if uuid == "" {
			fmt.Println("This system is not registered")
			return nil
		}

		caches := []*cache.PushCache{a.productsCache()}
		if a.cfg.Sync.ReportPackageProfile {
			caches = append(caches, a.profileCache())
		}

		updated := 0
		for _, c := range caches {
			n, err := c.UpdateCheck(ctx, uuid, force)
			if err != nil {
				return err
			}
			updated += n
		}
		fmt.Printf("%d collection(s) updated\n", updated)
		return nil
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove all cached server data",
	Long: `Remove every cache artifact: mirrored server data and push snapshots.
The next command rebuilds them from the server. The registration
identity is kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.deleteCaches(); err != nil {
			return err
		}
		fmt.Println("Cache cleaned")
		return nil
	},
}

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Show installed products and the repositories providing them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		db, err := productdb.Open(a.cfg.Paths.ProductDB)
		if err != nil {
			return err
		}
		defer db.Close()

		all, err := db.All()
		if err != nil {
			return err
		}
		if len(all) == 0 {
			fmt.Println("No products recorded")
			return nil
		}
		return printJSON(all)
	},
}

func init() {
	registerCmd.Flags().String("name", "", "Consumer name (defaults to the hostname)")
	registerCmd.Flags().String("owner", "", "Owner the consumer belongs to")
	showCmd.Flags().String("source", "local", "Record copy to show: local, cached or remote")
	uploadCmd.Flags().Bool("force", false, "Upload even when nothing changed")
	statusCmd.Flags().Bool("full", false, "Include purpose compliance, release, overrides and pools")
}
