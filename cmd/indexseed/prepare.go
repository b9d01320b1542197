package main

import (
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/ethpandaops/indexseed/pkg/blobstore"
	"github.com/ethpandaops/indexseed/pkg/config"
	"github.com/ethpandaops/indexseed/pkg/credential"
	"github.com/ethpandaops/indexseed/pkg/docstore"
	"github.com/ethpandaops/indexseed/pkg/naming"
	"github.com/ethpandaops/indexseed/pkg/prepare"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func runPrepare(cmd *cobra.Command, args []string) error {
	fmt.Println("Note: Currently logged in user must be able to access the resources in the deployment rg network.")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if !cmd.Flags().Changed("log-level") {
		level, err := logrus.ParseLevel(cfg.Global.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Global.LogLevel, err)
		}

		log.SetLevel(level)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var cred azcore.TokenCredential

	if cfg.NeedsAzureCredential() {
		cred, err = credential.New(&cfg.Credential)
		if err != nil {
			return err
		}
	}

	blobs, err := blobstore.New(log, &cfg.Storage, cred)
	if err != nil {
		return fmt.Errorf("creating blob store: %w", err)
	}

	ctx := cmd.Context()

	if cfg.Database.Driver == config.DatabaseDriverCosmos {
		log.WithField("endpoint", cfg.Database.Cosmos.Endpoint).Info("Using Cosmos DB endpoint")
	}

	db, err := docstore.New(ctx, log, &cfg.Database, cred)
	if err != nil {
		return fmt.Errorf("opening document database: %w", err)
	}
	defer func() { _ = db.Close() }()

	p := prepare.New(log, blobs, db, naming.NewGenerator(), os.Stdout)

	summary, err := p.Run(ctx, prepare.Request{
		DataDir:  args[0],
		IndexDir: args[1],
		Prefix:   args[2],
	})
	if err != nil {
		return err
	}

	if summaryOut != "" {
		if err := summary.WriteYAML(summaryOut); err != nil {
			return err
		}

		log.WithField("path", summaryOut).Info("Summary written")
	}

	return nil
}
