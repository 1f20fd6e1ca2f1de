package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/influence-explorer/explorer/internal/escalation"
	"github.com/influence-explorer/explorer/internal/gateway"
	"github.com/influence-explorer/explorer/internal/metrics"
	"github.com/influence-explorer/explorer/internal/tui"
	"github.com/influence-explorer/explorer/internal/workflow"
)

const (
	errMessageCreateGateway     = "create gateway"
	errMessageCreateWorkflow    = "create workflow"
	errMessageEncodeJSON        = "encode json"
	noResultsFormat             = "No users found matching %q.\n"
	manualAnalysisHintFormat    = "Run \"explorer analyze %s\" to analyze an account that is not in the dataset yet.\n"
	emptyHistoryMessage         = "No history recorded.\n"
	noFollowersMessage          = "No followers in the dataset.\n"
	keyValueFormat              = "%-22s %s\n"
	historyRowFormat            = "%s\t%.6f\t%.1f%%\n"
	sectionTopFollowersHeading  = "\nTop followers\n"
	sectionHistoryHeading       = "\nHistory (oldest first)\n"
	verifiedSuffix              = " (verified)"
	noRankPlaceholder           = "-"
	analyzingFormat             = "Analyzing %s...\n"
	stillAnalyzingFormat        = "Still analyzing %s. Collecting followers can take a while.\n"
	jsonIndent                  = "  "
	logMessageSearchCompleted   = "search completed"
	logMessageAccountLoaded     = "account loaded"
	logMessageHistoryLoaded     = "history loaded"
	logMessageAnalysisCompleted = "analysis completed"
	logFieldQuery               = "query"
	logFieldIdentifier          = "identifier"
	logFieldResultCount         = "results"
	logFieldPointCount          = "points"
	logFieldElapsed             = "elapsed"
	headerUsername              = "Username"
	headerUserID                = "User ID"
	headerFollowers             = "Followers"
	headerRank                  = "Rank"
)

// Backend is the gateway surface the explorer commands use.
type Backend interface {
	workflow.Gateway
	FetchProfile(ctx context.Context, identifier string) (gateway.Profile, error)
}

// ExplorerConfiguration carries the resolved command line and environment settings.
type ExplorerConfiguration struct {
	APIURL      string
	AnalyzePath string
	UserAgent   string
	QuickDelay  time.Duration
	LongDelay   time.Duration
	LogFile     string
	JSONOutput  bool
}

type ExplorerDependencies struct {
	NewBackend   func(gateway.Config) (Backend, error)
	RunInterface func(context.Context, tui.Workflow, *tui.Notifier) error
	Stdout       io.Writer
	Stderr       io.Writer
}

type ExplorerApplication struct {
	dependencies ExplorerDependencies
}

func NewExplorerApplication() ExplorerApplication {
	return NewExplorerApplicationWithDependencies(newDefaultExplorerDependencies())
}

func NewExplorerApplicationWithDependencies(dependencies ExplorerDependencies) ExplorerApplication {
	defaultDependencies := newDefaultExplorerDependencies()

	if dependencies.NewBackend == nil {
		dependencies.NewBackend = defaultDependencies.NewBackend
	}
	if dependencies.RunInterface == nil {
		dependencies.RunInterface = defaultDependencies.RunInterface
	}
	if dependencies.Stdout == nil {
		dependencies.Stdout = defaultDependencies.Stdout
	}
	if dependencies.Stderr == nil {
		dependencies.Stderr = defaultDependencies.Stderr
	}

	return ExplorerApplication{dependencies: dependencies}
}

// RunInteractive wires the workflow to the terminal interface and blocks until the user quits.
func (application ExplorerApplication) RunInteractive(executionContext context.Context, configuration ExplorerConfiguration, logger *zap.Logger) error {
	backend, err := application.newBackend(configuration, logger)
	if err != nil {
		return err
	}

	notifier := &tui.Notifier{}
	orchestrator, err := workflow.New(workflow.Config{
		Gateway: backend,
		Timer: escalation.NewTimer(escalation.Config{
			QuickDelay: configuration.QuickDelay,
			LongDelay:  configuration.LongDelay,
		}),
		Logger:   logger,
		OnChange: notifier.Notify,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", errMessageCreateWorkflow, err)
	}
	defer orchestrator.Close()

	if executionContext == nil {
		executionContext = context.Background()
	}
	return application.dependencies.RunInterface(executionContext, orchestrator, notifier)
}

func (application ExplorerApplication) RunSearch(command *cobra.Command, configuration ExplorerConfiguration, logger *zap.Logger, query string) error {
	backend, err := application.newBackend(configuration, logger)
	if err != nil {
		return err
	}
	started := time.Now()
	results, err := backend.SearchAccounts(commandContext(command), strings.TrimSpace(query))
	if err != nil {
		return err
	}
	logger.Info(logMessageSearchCompleted,
		zap.String(logFieldQuery, query),
		zap.Int(logFieldResultCount, len(results)),
		zap.Duration(logFieldElapsed, time.Since(started)),
	)

	if configuration.JSONOutput {
		return application.writeJSON(results)
	}
	output := application.dependencies.Stdout
	if len(results) == 0 {
		fmt.Fprintf(output, noResultsFormat, query)
		fmt.Fprintf(output, manualAnalysisHintFormat, strings.TrimSpace(query))
		return nil
	}
	fmt.Fprintln(output, renderSummaryTable(results))
	return nil
}

func (application ExplorerApplication) RunUser(command *cobra.Command, configuration ExplorerConfiguration, logger *zap.Logger, identifier string) error {
	backend, err := application.newBackend(configuration, logger)
	if err != nil {
		return err
	}
	detail, err := backend.FetchAccount(commandContext(command), strings.TrimSpace(identifier))
	if err != nil {
		return err
	}
	logger.Info(logMessageAccountLoaded, zap.String(logFieldIdentifier, identifier))

	if configuration.JSONOutput {
		return application.writeJSON(detail)
	}
	application.writeDetail(detail)
	return nil
}

func (application ExplorerApplication) RunHistory(command *cobra.Command, configuration ExplorerConfiguration, logger *zap.Logger, identifier string) error {
	backend, err := application.newBackend(configuration, logger)
	if err != nil {
		return err
	}
	history, err := backend.FetchHistory(commandContext(command), strings.TrimSpace(identifier))
	if err != nil {
		return err
	}
	logger.Info(logMessageHistoryLoaded, zap.String(logFieldIdentifier, identifier), zap.Int(logFieldPointCount, len(history.Points)))

	if configuration.JSONOutput {
		return application.writeJSON(history)
	}
	application.writeHistory(history.Points)
	return nil
}

// RunAnalyze calls the analysis endpoint once. The quick and long delays announce progress on stderr
// while the backend collects followers.
func (application ExplorerApplication) RunAnalyze(command *cobra.Command, configuration ExplorerConfiguration, logger *zap.Logger, username string) error {
	backend, err := application.newBackend(configuration, logger)
	if err != nil {
		return err
	}
	target := strings.TrimSpace(username)

	progress := &progressPrinter{output: application.dependencies.Stderr, target: target}
	progress.start(escalation.NewTimer(escalation.Config{QuickDelay: configuration.QuickDelay, LongDelay: configuration.LongDelay}))

	started := time.Now()
	detail, err := backend.AnalyzeAccount(commandContext(command), target)
	progress.settle()
	if err != nil {
		return err
	}
	logger.Info(logMessageAnalysisCompleted, zap.String(logFieldIdentifier, target), zap.Duration(logFieldElapsed, time.Since(started)))

	if configuration.JSONOutput {
		return application.writeJSON(detail)
	}
	application.writeDetail(detail)
	return nil
}

func (application ExplorerApplication) RunProfile(command *cobra.Command, configuration ExplorerConfiguration, logger *zap.Logger, identifier string) error {
	backend, err := application.newBackend(configuration, logger)
	if err != nil {
		return err
	}
	profile, err := backend.FetchProfile(commandContext(command), strings.TrimSpace(identifier))
	if err != nil {
		return err
	}
	logger.Info(logMessageAccountLoaded, zap.String(logFieldIdentifier, identifier), zap.Int(logFieldPointCount, len(profile.History.Points)))

	if configuration.JSONOutput {
		return application.writeJSON(profile)
	}
	application.writeDetail(profile.Detail)
	application.writeHistory(profile.History.Points)
	return nil
}

func (application ExplorerApplication) newBackend(configuration ExplorerConfiguration, logger *zap.Logger) (Backend, error) {
	backend, err := application.dependencies.NewBackend(gateway.Config{
		BaseURL:           configuration.APIURL,
		AnalyzePathFormat: configuration.AnalyzePath,
		UserAgent:         configuration.UserAgent,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errMessageCreateGateway, err)
	}
	return backend, nil
}

func (application ExplorerApplication) writeJSON(payload any) error {
	encoder := json.NewEncoder(application.dependencies.Stdout)
	encoder.SetIndent("", jsonIndent)
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("%s: %w", errMessageEncodeJSON, err)
	}
	return nil
}

func (application ExplorerApplication) writeDetail(detail gateway.AccountDetail) {
	output := application.dependencies.Stdout
	view := metrics.DeriveDetail(detail)

	heading := view.Username
	if view.Verified {
		heading += verifiedSuffix
	}
	fmt.Fprintln(output, heading)
	if view.Description != "" {
		fmt.Fprintln(output, view.Description)
	}
	fmt.Fprintln(output)
	for _, row := range [][2]string{
		{"Rank", view.RankLabel},
		{"Percentile", view.PercentileLabel},
		{"Followers", view.TotalFollowers},
		{"Following", view.TotalFollowing},
		{"Followers in dataset", view.FollowersInDataset},
		{"Following in dataset", view.FollowingInDataset},
		{"Reciprocal", view.ReciprocalConnections},
		{"Dataset coverage", view.CoverageLabel},
	} {
		fmt.Fprintf(output, keyValueFormat, row[0], row[1])
	}

	fmt.Fprint(output, sectionTopFollowersHeading)
	if len(detail.TopFollowers) == 0 {
		fmt.Fprint(output, noFollowersMessage)
		return
	}
	fmt.Fprintln(output, renderFollowerTable(view.TopFollowers))
}

func (application ExplorerApplication) writeHistory(points []gateway.HistoryPoint) {
	output := application.dependencies.Stdout
	fmt.Fprint(output, sectionHistoryHeading)
	views := metrics.Chronological(points)
	if len(views) == 0 {
		fmt.Fprint(output, emptyHistoryMessage)
		return
	}
	for _, view := range views {
		fmt.Fprintf(output, historyRowFormat, view.DateLabel, view.Score, view.Percentile)
	}
}

func renderSummaryTable(results []gateway.AccountSummary) string {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		view := metrics.DeriveSummary(result)
		rankLabel := noRankPlaceholder
		if view.HasRank {
			rankLabel = view.RankLabel
		}
		rows = append(rows, []string{view.Username, view.AccountID, view.Followers, rankLabel})
	}
	return newPlainTable().Headers(headerUsername, headerUserID, headerFollowers, headerRank).Rows(rows...).String()
}

func renderFollowerTable(followers []metrics.SummaryView) string {
	rows := make([][]string, 0, len(followers))
	for _, follower := range followers {
		rows = append(rows, []string{follower.Username, follower.Followers, follower.RankLabel})
	}
	return newPlainTable().Headers(headerUsername, headerFollowers, headerRank).Rows(rows...).String()
}

func newPlainTable() *table.Table {
	return table.New().Border(lipgloss.NormalBorder())
}

// progressPrinter announces an analysis on stderr and escalates once the long signal is raised.
type progressPrinter struct {
	mutex         sync.Mutex
	output        io.Writer
	target        string
	operation     *escalation.Operation
	longAnnounced bool
}

func (printer *progressPrinter) start(timer *escalation.Timer) {
	printer.mutex.Lock()
	defer printer.mutex.Unlock()
	fmt.Fprintf(printer.output, analyzingFormat, printer.target)
	printer.operation = timer.Start(escalation.QuickAndLong, printer.signalChanged)
}

func (printer *progressPrinter) signalChanged() {
	printer.mutex.Lock()
	defer printer.mutex.Unlock()
	if printer.longAnnounced || !printer.operation.Signals().Long {
		return
	}
	printer.longAnnounced = true
	fmt.Fprintf(printer.output, stillAnalyzingFormat, printer.target)
}

func (printer *progressPrinter) settle() {
	printer.mutex.Lock()
	defer printer.mutex.Unlock()
	printer.operation.Settle()
}

func commandContext(command *cobra.Command) context.Context {
	if command == nil || command.Context() == nil {
		return context.Background()
	}
	return command.Context()
}

func newDefaultExplorerDependencies() ExplorerDependencies {
	return ExplorerDependencies{
		NewBackend: func(configuration gateway.Config) (Backend, error) {
			client, err := gateway.NewClient(configuration)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		RunInterface: func(executionContext context.Context, explorer tui.Workflow, notifier *tui.Notifier) error {
			return tui.Run(executionContext, explorer, notifier)
		},
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}
