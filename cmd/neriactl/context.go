package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/neria/manager/internal/app"
	"github.com/neria/manager/internal/endpoint"
	"github.com/neria/manager/internal/repository"
	"github.com/spf13/cobra"
)

func newContextCmd(open dbOpener) *cobra.Command {
	var tenantID, serviceCode, previous string
	var showPrompt bool
	cmd := &cobra.Command{
		Use:   "context <message>",
		Short: "Preview the endpoint grounding for a chat message",
		Long: "Runs the endpoint context builder for a tenant service exactly as a chat turn would " +
			"and prints the outcome. No model is called and nothing is stored.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := open()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			catalog := repository.NewCatalogRepo(db)

			in := endpoint.Input{PreviousMessage: previous, Message: args[0]}
			svc, err := catalog.ServiceConfig(ctx, tenantID, serviceCode)
			switch {
			case errors.Is(err, repository.ErrNotFound):
			case err != nil:
				return err
			default:
				in.SystemPrompt = svc.SystemPrompt
				in.AllowedTopics = svc.AllowedTopics
				in.OutOfScopeResponse = svc.OutOfScopeResponse
				in.FallbackBaseURL = svc.APIBaseURL
			}
			if in.Endpoints, err = catalog.EnabledEndpoints(ctx, tenantID, serviceCode); err != nil {
				return err
			}

			outcome := endpoint.NewBuilder(&http.Client{}, app.EndpointConfig(cfg)).Build(ctx, in)
			printOutcome(cmd, in, outcome)
			if showPrompt && !outcome.Refuse {
				fmt.Fprintf(cmd.OutOrStdout(), "\n--- system prompt ---\n%s\n",
					endpoint.BuildSystemPrompt(in.SystemPrompt, serviceCode, in.FallbackBaseURL, outcome.Endpoints, outcome.Context))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&tenantID, "tenant", "t", "", "tenant id")
	cmd.Flags().StringVarP(&serviceCode, "service", "s", "", "service code")
	cmd.Flags().StringVar(&previous, "previous", "", "previous user message, for follow-up questions")
	cmd.Flags().BoolVar(&showPrompt, "prompt", false, "also print the assembled system prompt")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}

func printOutcome(cmd *cobra.Command, in endpoint.Input, o endpoint.Outcome) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "search:    %s\n", o.SearchText)
	fmt.Fprintf(out, "endpoints: %d enabled\n", len(o.Endpoints))
	if o.Refuse {
		fmt.Fprintf(out, "refused:   %s\n", o.Reason)
		reply := o.Suggestion
		if reply == "" {
			reply = in.Refusal()
		}
		fmt.Fprintf(out, "reply:     %s\n", reply)
		return
	}
	if o.Context == "" {
		fmt.Fprintln(out, "context:   (none)")
		return
	}
	fmt.Fprintf(out, "context:\n%s\n", o.Context)
}
