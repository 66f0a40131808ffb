package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkrall/clerk/internal/config"
	"github.com/mkrall/clerk/internal/docs"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage the local reference library",
}

var docsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the configured documentation sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if len(cfg.Docs.Sources) == 0 {
			fmt.Println("no docs.sources configured")
			return nil
		}

		d := docs.NewDownloader(cfg.Docs.Dir)
		if cfg.Docs.Concurrency > 0 {
			d.Concurrency = cfg.Docs.Concurrency
		}
		if err := d.FetchAll(context.Background(), cfg.Docs.Sources); err != nil {
			return err
		}
		fmt.Printf("library at %s holds %d sources\n", cfg.Docs.Dir, len(cfg.Docs.Sources))
		return nil
	},
}

func init() {
	docsCmd.AddCommand(docsFetchCmd)
}
