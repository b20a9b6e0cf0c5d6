package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spigell/talent-screener/internal/api"
	"github.com/spigell/talent-screener/internal/logger"
	"github.com/spigell/talent-screener/internal/report"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "List screened candidates, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		listCandidates(cmd)
	},
}

var candidateCmd = &cobra.Command{
	Use:   "candidate <id>",
	Short: "Show the analysis of one candidate",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		showCandidate(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(candidatesCmd)
	rootCmd.AddCommand(candidateCmd)

	candidatesCmd.Flags().IntP("limit", "n", 0, "show only the newest n candidates")
	candidatesCmd.Flags().Bool("dump", false, "also dump the list to a temporary json file")
	candidateCmd.Flags().Bool("raw", false, "print the result as json")
}

func listCandidates(cmd *cobra.Command) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	log, config := bootstrap()

	client, err := newClient(config, log)
	if err != nil {
		log.Fatal("loading api token", zap.Error(err))
	}

	list, err := client.ListCandidates(ctx)
	if err != nil {
		log.Fatal("listing candidates", zap.Error(err))
	}

	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && limit < len(list) {
		list = list[:limit]
	}

	if err := report.Candidates(cmd.OutOrStdout(), list); err != nil {
		log.Fatal("printing candidates", zap.Error(err))
	}

	log.Info("listing candidates", zap.Int("count", len(list)))

	if dump, _ := cmd.Flags().GetBool("dump"); dump {
		filename, err := report.DumpToTmpFile(list)
		if err != nil {
			log.Fatal("dump candidates to file", zap.Error(err))
		}
		log.Info("dumping result to file", zap.String("filename", filename))
	}
}

func showCandidate(cmd *cobra.Command, id string) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	log, config := bootstrap()
	log = log.With(zap.String(logger.FieldCandidateID, id))

	client, err := newClient(config, log)
	if err != nil {
		log.Fatal("loading api token", zap.Error(err))
	}

	candidate, err := client.GetCandidate(ctx, id)
	if errors.Is(err, api.ErrNotReady) {
		log.Info("analysis is not available yet", zap.String("hint", "the job may still be running, or the id is unknown"))
		return
	}
	if err != nil {
		log.Fatal("getting candidate", zap.Error(err))
	}

	if asJSON, _ := cmd.Flags().GetBool("raw"); asJSON {
		pretty, err := jsonIndent(candidate)
		if err != nil {
			log.Fatal("encoding candidate", zap.Error(err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), pretty)
		return
	}

	if err := report.Candidate(cmd.OutOrStdout(), candidate); err != nil {
		log.Fatal("printing candidate", zap.Error(err))
	}
}

func jsonIndent(v any) (string, error) {
	pretty, err := json.MarshalIndent(v, "", "  ")
	return string(pretty), err
}
