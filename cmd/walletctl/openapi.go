package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/wallet-engine/internal/http/routes"
)

func newOpenAPICmd() *cobra.Command {
	var (
		output  string
		asYAML  bool
		baseURL string
	)
	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Print the OpenAPI document",
		Long:  "Registers every route against stub handlers and prints the resulting document. No database or catalog is needed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api := humachi.New(chi.NewRouter(), routes.NewHumaConfig(baseURL))
			routes.Register(api, routes.StubHandlers())

			var data []byte
			var err error
			if asYAML {
				data, err = api.OpenAPI().YAML()
			} else {
				data, err = json.MarshalIndent(api.OpenAPI(), "", "  ")
			}
			if err != nil {
				return fmt.Errorf("failed to marshal OpenAPI document: %w", err)
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "OpenAPI document written to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Output as YAML instead of JSON")
	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8080", "Base URL for the API server")
	return cmd
}
