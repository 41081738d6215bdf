package main

import (
	"github.com/spf13/cobra"

	srv "github.com/skyfield-labs/terralens/internal/server"
)

func serveCMD() *cobra.Command {
	var serveAddr string
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if serveAddr == "" {
				serveAddr = getenv("TERRALENS_HTTP_ADDR", "")
			}
			return srv.Run(serveAddr, cfgPath)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :10030)")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}
