package main

import (
	"github.com/spf13/cobra"

	"github.com/xhad/lawrag/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve POST /query, /ws and /health",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	asker, err := a.asker("")
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	s := server.New(server.Config{
		Addr:           addr,
		RequestTimeout: a.requestTimeout(),
		TopK:           cfg.Retrieval.TopK,
	}, asker, logger)

	return s.Run(cmd.Context())
}
