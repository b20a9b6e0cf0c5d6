package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spigell/talent-screener/internal/cvfile"
	"github.com/spigell/talent-screener/internal/intake"
	"github.com/spigell/talent-screener/internal/logger"
	"github.com/spigell/talent-screener/internal/pipeline"
	"github.com/spigell/talent-screener/internal/queue"
	"github.com/spigell/talent-screener/internal/report"
	"github.com/spigell/talent-screener/internal/session"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const (
	PromptYes             = "Yes"
	PromptNo              = "No"
	PromptBack            = "back"
	PromptQuit            = "Quit"
	PromptReportByVerdict = "Report by verdict"
	PromptResultsToFile   = "Dump results to file"
	PromptRemoveItem      = "Remove an item from the queue"
	PromptClearQueue      = "Clear the queue"
	PromptShowQueue       = "Show the queue"
)

var errExit = errors.New("exit requested")

var confirmPrompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptYes, PromptNo},
}

var actionPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShowQueue, PromptReportByVerdict, PromptResultsToFile, PromptRemoveItem, PromptClearQueue, PromptQuit},
}

// selectItem asks the user to pick one of labels and returns its index.
var selectItem = func(label string, labels []string) (int, error) {
	itemPrompt := promptui.Select{
		Label: label,
		Items: labels,
	}

	idx, _, err := itemPrompt.Run()
	return idx, err
}

var screenCmd = &cobra.Command{
	Use:   "screen [files...]",
	Short: "Upload CV files for screening against a job description and wait for the analysis",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		screen(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(screenCmd)

	screenCmd.Flags().StringP("job-description", "m", "", "job description to screen against")
	screenCmd.Flags().String("job-description-file", "", "file with the job description")
	screenCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation and skip the action menu")
	screenCmd.Flags().Bool("rescreen", false, "screen files even when the history file says they were already screened")
	screenCmd.Flags().Bool("no-wait", false, "submit files and exit without waiting for the analysis")
}

func screen(cmd *cobra.Command, args []string) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	log, config := bootstrap()
	log.Info("starting the talent-screener", zap.String("version", version))

	autoApprove, _ := cmd.Flags().GetBool("yes")
	interactive := !autoApprove && term.IsTerminal(int(os.Stdin.Fd()))

	jobDescription, err := resolveJobDescription(cmd, interactive)
	if err != nil {
		log.Fatal("getting the job description", zap.Error(err),
			zap.String("hint", "pass --job-description or --job-description-file"),
		)
	}

	files := loadFiles(args, log)

	steps := prepareFilters(cmd, config)
	accepted, rejected, err := intake.Run(ctx, intake.Deps{Logger: log}, steps, files)
	if err != nil {
		log.Fatal("checking files", zap.Error(err))
	}

	for _, r := range rejected {
		log.Warn("file rejected",
			zap.String(logger.FieldFile, r.File.Name),
			zap.String("filter", r.Filter),
			zap.String("reason", r.Reason),
		)
	}

	if len(accepted) == 0 {
		log.Info("exiting", zap.String("reason", "no files left to screen"))
		return
	}

	client, err := newClient(config, log)
	if err != nil {
		log.Fatal("loading api token", zap.Error(err),
			zap.String("hint", "set SCREENER_TOKEN_FILE or the 'token-file' key, or unset both for an open backend"),
		)
	}

	sess, err := session.New(session.Options{
		Backend:       client,
		Logger:        log,
		Concurrency:   config.Concurrency,
		PollInterval:  config.Poll.Interval,
		MaxAttempts:   config.Poll.MaxAttempts,
		SubmitTimeout: config.SubmitTimeout,
	})
	if err != nil {
		log.Fatal("creating a session", zap.Error(err))
	}

	results := &screened{}
	sess.OnChange(logTransitions(log))
	sess.OnChange(results.observe)
	sess.Add(accepted...)

	log.Info("files queued", zap.Int("count", len(accepted)), zap.Int("rejected", len(rejected)))

	if interactive {
		_, answer, err := confirmPrompt.Run()
		if err != nil {
			log.Fatal("exiting", zap.Error(err))
		}
		if answer != PromptYes {
			log.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	summary, err := sess.Process(ctx, jobDescription)
	if err != nil {
		log.Fatal("processing the queue", zap.Error(err))
	}

	log.Info("files submitted",
		zap.Int("accepted", summary.Accepted),
		zap.Int("failed", summary.Failed),
	)

	if noWait, _ := cmd.Flags().GetBool("no-wait"); noWait {
		printQueue(cmd, sess.Items(), log)
		log.Info("not waiting for the analysis", zap.String("hint", "use 'talent-screener candidate <id>' later"))
		return
	}

	if interactive {
		// results keep arriving while the action menu is open
		stop := sess.StartPolling(ctx)
		runMenu(cmd, sess, log)
		stop()
	}

	waitForResults(ctx, sess, log)

	printQueue(cmd, sess.Items(), log)

	if err := recordHistory(config.Intake.HistoryFile, results.list()); err != nil {
		log.Warn("updating history file", zap.Error(err), zap.String("filename", config.Intake.HistoryFile))
	}
}

func runMenu(cmd *cobra.Command, sess *session.Session, log *zap.Logger) {
	for {
		_, action, err := actionPrompt.Run()
		if err != nil {
			log.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(cmd, action, sess, log); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			log.Fatal("exiting", zap.Error(err))
		}
	}
}

// waitForResults polls in the foreground until nothing is in flight.
func waitForResults(ctx context.Context, sess *session.Session, log *zap.Logger) {
	if !sess.Busy() {
		return
	}

	log.Info("waiting for the analysis", zap.Int("polling", sess.Counts()[queue.StatusPolling]))

	if err := sess.Poll(ctx); err != nil {
		log.Warn("stopped waiting for results", zap.Error(err))
	}
}

func handleAction(cmd *cobra.Command, action string, sess *session.Session, log *zap.Logger) error {
	switch action {
	case PromptQuit:
		log.Info("exiting", zap.String("reason", "quit from prompt"))
		return errExit
	case PromptShowQueue:
		printQueue(cmd, sess.Items(), log)
		return nil
	case PromptReportByVerdict:
		pretty, _ := jsonIndent(report.ByVerdict(sess.Items()))
		log.Info(pretty, zap.Int("items count", len(sess.Items())))
		return nil
	case PromptResultsToFile:
		filename, err := report.DumpToTmpFile(sess.Items())
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		log.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptRemoveItem:
		return removeItem(sess, log)
	case PromptClearQueue:
		return clearQueue(sess, log)
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func removeItem(sess *session.Session, log *zap.Logger) error {
	items := sess.Items()
	if len(items) == 0 {
		log.Info("queue is empty")
		return nil
	}

	labels := make([]string, 0, len(items)+1)
	for _, item := range items {
		labels = append(labels, fmt.Sprintf("%s %s / %s", item.ID, item.FileName(), item.Status))
	}

	idx, err := selectItem("Choose an item and press ENTER", append(labels, PromptBack))
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(items) {
		return nil
	}

	id := items[idx].ID
	if err := sess.Remove(id); err != nil {
		if errors.Is(err, queue.ErrInFlight) {
			log.Warn("item is still being processed", zap.String(logger.FieldItemID, id))
			return nil
		}
		return err
	}

	log.Info("item removed", zap.String(logger.FieldItemID, id), zap.String(logger.FieldFile, items[idx].FileName()))
	return nil
}

func clearQueue(sess *session.Session, log *zap.Logger) error {
	n, err := sess.Clear()
	if err != nil {
		if errors.Is(err, queue.ErrInFlight) {
			log.Warn("queue is still being processed", zap.Int("polling", sess.Counts()[queue.StatusPolling]))
			return nil
		}
		return err
	}

	log.Info("queue cleared", zap.Int("count", n))
	return nil
}

// resolveJobDescription reads the job description from flags, and when
// interactive falls back to a prompt.
func resolveJobDescription(cmd *cobra.Command, interactive bool) (string, error) {
	jd, _ := cmd.Flags().GetString("job-description")

	if path, _ := cmd.Flags().GetString("job-description-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading job description file: %w", err)
		}
		jd = string(data)
	}

	jd = strings.TrimSpace(jd)
	if jd != "" {
		return jd, nil
	}

	if !interactive {
		return "", pipeline.ErrMissingJobDescription
	}

	jdPrompt := promptui.Prompt{
		Label: "Job description",
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return pipeline.ErrMissingJobDescription
			}
			return nil
		},
	}

	jd, err := jdPrompt.Run()
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(jd), nil
}

func loadFiles(paths []string, log *zap.Logger) []*cvfile.File {
	files := make([]*cvfile.File, 0, len(paths))
	for _, path := range paths {
		f, err := cvfile.FromPath(path)
		if err != nil {
			log.Warn("skipping file", zap.String(logger.FieldFile, path), zap.Error(err))
			continue
		}
		files = append(files, f)
	}
	return files
}

func prepareFilters(cmd *cobra.Command, config *Config) []intake.Filter {
	steps := []intake.Filter{
		intake.NewContentType(config.Intake.AllowDOCX),
		intake.NewMaxSize(config.Intake.MaxFileSize),
		intake.NewPDFReadable(),
		intake.NewHistory(config.Intake.HistoryFile),
	}

	if rescreen, _ := cmd.Flags().GetBool("rescreen"); rescreen {
		intake.DisableByName(steps, "history", "disabled by --rescreen")
	}

	return steps
}

// logTransitions logs every queue change with the item fields.
func logTransitions(log *zap.Logger) func(queue.Event) {
	return func(e queue.Event) {
		fields := logger.ItemFields(e.Item.ID, e.Item.FileName(), string(e.Item.Status), e.Item.CandidateID)
		fields = append(fields, zap.String(logger.FieldMessage, e.Item.Message))

		switch {
		case e.Kind != queue.EventUpdated:
			log.Debug("queue "+string(e.Kind), fields...)
		case e.Item.Status == queue.StatusError:
			log.Warn("item failed", fields...)
		default:
			log.Info("item updated", fields...)
		}
	}
}

func printQueue(cmd *cobra.Command, items []queue.Item, log *zap.Logger) {
	if err := report.Table(cmd.OutOrStdout(), items); err != nil {
		log.Warn("printing the queue", zap.Error(err))
	}
	log.Info(report.Totals(items))
}

// screened collects items as they succeed, including ones later removed
// from the queue.
type screened struct {
	mu    sync.Mutex
	items []queue.Item
}

func (s *screened) observe(e queue.Event) {
	if e.Kind != queue.EventUpdated || e.Item.Status != queue.StatusSuccess || e.Item.Result == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e.Item)
}

func (s *screened) list() []queue.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// recordHistory appends successful items to the history file.
func recordHistory(path string, items []queue.Item) error {
	if path == "" {
		return nil
	}

	history, err := intake.LoadHistory(path)
	if err != nil {
		return err
	}

	added := 0
	for _, item := range items {
		if item.Status != queue.StatusSuccess || item.Result == nil {
			continue
		}

		digest, err := item.File.Digest()
		if err != nil {
			return err
		}
		if history.Find(digest) != nil {
			continue
		}

		history.Append(&intake.HistoryEntry{
			Digest:      digest,
			File:        item.FileName(),
			CandidateID: item.CandidateID,
			Score:       item.Result.Score,
			Verdict:     string(item.Result.Status),
			ScreenedAt:  time.Now().UTC(),
		})
		added++
	}

	if added == 0 {
		return nil
	}

	return history.ToFile(path)
}
