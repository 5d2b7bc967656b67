package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aslamsikder/VoiceRAG-Agent-System/api"
	"github.com/aslamsikder/VoiceRAG-Agent-System/app"
	"github.com/aslamsikder/VoiceRAG-Agent-System/mcpserver"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if err := a.LoadIndex(ctx); err != nil {
					return err
				}
				srv := api.New(a.Config, api.Deps{
					Agent:       a.Orchestrator,
					Transcriber: a.Transcriber,
					Indexer:     a,
				}, a.Logger.Named("api"))
				return srv.ListenAndServe(ctx)
			})
		},
	}
}

func newIngestCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build the document index from a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				res, err := a.Ingest(ctx, dir)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if !res.Built() {
					warning.Fprintln(out, "No documents found, index unchanged.")
					return nil
				}
				success.Fprintf(out, "Indexed %d chunks from %d documents (%d files).\n", res.Chunks, res.Documents, res.Files)
				for _, skipped := range res.Skipped {
					warning.Fprintf(out, "  skipped %s\n", skipped)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory containing documents (default from config)")
	return cmd
}

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question in text",
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				var err error
				question, err = prompt(cmd.InOrStdin(), cmd.OutOrStdout(), "Enter your question: ")
				if err != nil {
					return fmt.Errorf("read question: %w", err)
				}
			}
			if question == "" {
				return errors.New("question cannot be empty")
			}

			return withApp(func(ctx context.Context, a *app.App) error {
				res, err := a.Orchestrator.Process(ctx, question)
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
}

func newTranscribeCmd() *cobra.Command {
	var answer bool
	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file, optionally answering it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				text, err := a.Transcriber.Transcribe(ctx, args[0])
				if err != nil {
					return err
				}
				if text == "" {
					return errors.New("could not transcribe audio")
				}

				out := cmd.OutOrStdout()
				heading.Fprintln(out, "Transcript:")
				fmt.Fprintln(out, text)
				if !answer {
					return nil
				}

				fmt.Fprintln(out)
				res, err := a.Orchestrator.Process(ctx, text)
				if err != nil {
					return err
				}
				printResult(out, res)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&answer, "answer", false, "also answer the transcribed question")
	return cmd
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the agent to MCP clients over stdio",
		Long: `Runs VoiceRAG as an MCP (Model Context Protocol) server on stdio.

Exposes an "ask" tool plus the weather and stock tools. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				s, _, err := mcpserver.New(a.Orchestrator, a.Tools, a.Logger.Named("mcp"))
				if err != nil {
					return err
				}
				return mcpserver.Serve(ctx, s, a.Logger)
			})
		},
	}
}

func newClearCmd() *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the document index and its catalog mirror",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !confirmed {
				reply, err := prompt(cmd.InOrStdin(), out, "This will permanently delete the document index. Continue? [y/N]: ")
				if err != nil {
					return fmt.Errorf("read confirmation: %w", err)
				}
				reply = strings.ToLower(reply)
				if reply != "y" && reply != "yes" {
					warning.Fprintln(out, "clear aborted")
					return nil
				}
			}

			return withApp(func(ctx context.Context, a *app.App) error {
				if err := a.Clear(ctx); err != nil {
					return err
				}
				success.Fprintln(out, "Index removed.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirmed, "confirm", false, "skip confirmation prompt")
	return cmd
}
