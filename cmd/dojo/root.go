package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hperssn/dojo/internal/config"
	"github.com/hperssn/dojo/internal/log"
	"github.com/hperssn/dojo/internal/storage"
)

var version = "dev"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	v       *viper.Viper
	cfgFile string
	user    string
	cfg     config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "dojo",
		Short:         "Interval timer service for karate training",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			log.Configure(log.Config{Level: cfg.Log.Level, Output: os.Stderr})
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default: ./dojo.yaml or ~/.config/dojo/dojo.yaml)")
	flags.StringVarP(&a.user, "user", "u", "dev-user", "user whose intervals and history are used")
	flags.String("storage", "", "storage backend: memory, file, sqlite, postgres, bolt, badger, redis")
	flags.String("data", "", "data directory for file based backends")
	flags.String("log-level", "", "log level")
	_ = a.v.BindPFlag("storage.backend", flags.Lookup("storage"))
	_ = a.v.BindPFlag("storage.path", flags.Lookup("data"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))

	root.AddCommand(newServeCmd(a), newTemplateCmd(a), newHistoryCmd(a))
	return root
}

// openUserStore opens the configured backend and scopes it to --user. The
// returned close func releases the backend.
func (a *app) openUserStore(ctx context.Context) (storage.Store, func() error, error) {
	if a.user == "" {
		return nil, nil, fmt.Errorf("--user must not be empty")
	}
	store, err := storage.Open(ctx, a.cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	return storage.Namespace(store, storage.UserNamespace(a.user)), store.Close, nil
}
