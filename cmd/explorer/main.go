package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/influence-explorer/explorer/internal/escalation"
	"github.com/influence-explorer/explorer/internal/gateway"
)

const (
	commandUse                   = "explorer"
	commandShortDescription      = "Explore network influence metrics of social accounts"
	searchCommandUse             = "search <query>"
	searchCommandShort           = "Search accounts by username"
	userCommandUse               = "user <identifier>"
	userCommandShort             = "Show the metrics of an account in the dataset"
	historyCommandUse            = "history <identifier>"
	historyCommandShort          = "Show the daily metric history of an account"
	analyzeCommandUse            = "analyze <username>"
	analyzeCommandShort          = "Analyze an account that is not in the dataset yet"
	profileCommandUse            = "profile <identifier>"
	profileCommandShort          = "Show the metrics and history of an account together"
	envPrefix                    = "INFLUENCE_EXPLORER"
	flagAPIURLName               = "api-url"
	flagAPIURLDescription        = "Base URL of the influence backend"
	flagAnalyzePathName          = "analyze-path"
	flagAnalyzePathDescription   = "Path format of the analysis endpoint; %s receives the username"
	flagUserAgentName            = "user-agent"
	flagUserAgentDescription     = "User-Agent header sent to the backend"
	flagQuickDelayName           = "quick-delay"
	flagQuickDelayDescription    = "How long the loading message stays visible"
	flagLongDelayName            = "long-delay"
	flagLongDelayDescription     = "How long an analysis runs before the still-working message appears"
	flagLogFileName              = "log-file"
	flagLogFileDescription       = "Write logs of the interactive explorer to this file"
	flagJSONName                 = "json"
	flagJSONDescription          = "Print raw backend payloads as JSON"
	errMessageLoggerCreate       = "create logger"
	logMessageExplorerStarting   = "starting interactive explorer"
	logMessageExplorerStopped    = "interactive explorer stopped"
	logFieldBaseURL              = "api_url"
	singleArgument               = 1
	exampleSearchInvocation      = "explorer search alice"
	exampleInteractiveInvocation = "explorer --api-url http://localhost:8080"
)

func main() {
	cobra.CheckErr(newExplorerCommand(NewExplorerApplication()).Execute())
}

func newExplorerCommand(application ExplorerApplication) *cobra.Command {
	command := &cobra.Command{
		Use:     commandUse,
		Short:   commandShortDescription,
		Example: strings.Join([]string{exampleInteractiveInvocation, exampleSearchInvocation}, "\n"),
		Args:    cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			configuration := loadConfiguration()
			logger, err := newInteractiveLogger(configuration.LogFile)
			if err != nil {
				return fmt.Errorf("%s: %w", errMessageLoggerCreate, err)
			}
			defer func() {
				_ = logger.Sync()
			}()
			logger.Info(logMessageExplorerStarting, zap.String(logFieldBaseURL, configuration.APIURL))
			defer logger.Info(logMessageExplorerStopped)
			return application.RunInteractive(command.Context(), configuration, logger)
		},
	}

	flags := command.PersistentFlags()
	flags.String(flagAPIURLName, gateway.DefaultBaseURL, flagAPIURLDescription)
	flags.String(flagAnalyzePathName, gateway.DefaultAnalyzePathFormat, flagAnalyzePathDescription)
	flags.String(flagUserAgentName, "", flagUserAgentDescription)
	flags.Duration(flagQuickDelayName, escalation.DefaultQuickDelay, flagQuickDelayDescription)
	flags.Duration(flagLongDelayName, escalation.DefaultLongDelay, flagLongDelayDescription)
	flags.String(flagLogFileName, "", flagLogFileDescription)
	flags.Bool(flagJSONName, false, flagJSONDescription)

	for _, flagName := range []string{flagAPIURLName, flagAnalyzePathName, flagUserAgentName, flagQuickDelayName, flagLongDelayName, flagLogFileName, flagJSONName} {
		bindFlagToViper(command, flagName)
	}

	command.AddCommand(
		newOneShotCommand(searchCommandUse, searchCommandShort, application.RunSearch),
		newOneShotCommand(userCommandUse, userCommandShort, application.RunUser),
		newOneShotCommand(historyCommandUse, historyCommandShort, application.RunHistory),
		newOneShotCommand(analyzeCommandUse, analyzeCommandShort, application.RunAnalyze),
		newOneShotCommand(profileCommandUse, profileCommandShort, application.RunProfile),
	)

	cobra.OnInitialize(configureEnvironment)

	return command
}

// oneShotRunner executes a single backend request and prints its outcome.
type oneShotRunner func(command *cobra.Command, configuration ExplorerConfiguration, logger *zap.Logger, argument string) error

func newOneShotCommand(use string, short string, run oneShotRunner) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(singleArgument),
		RunE: func(command *cobra.Command, arguments []string) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("%s: %w", errMessageLoggerCreate, err)
			}
			defer func() {
				_ = logger.Sync()
			}()
			return run(command, loadConfiguration(), logger, arguments[0])
		},
	}
}

func bindFlagToViper(command *cobra.Command, flagName string) {
	cobra.CheckErr(viper.BindPFlag(flagName, command.PersistentFlags().Lookup(flagName)))
}

func configureEnvironment() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func loadConfiguration() ExplorerConfiguration {
	return ExplorerConfiguration{
		APIURL:      viper.GetString(flagAPIURLName),
		AnalyzePath: viper.GetString(flagAnalyzePathName),
		UserAgent:   viper.GetString(flagUserAgentName),
		QuickDelay:  viper.GetDuration(flagQuickDelayName),
		LongDelay:   viper.GetDuration(flagLongDelayName),
		LogFile:     viper.GetString(flagLogFileName),
		JSONOutput:  viper.GetBool(flagJSONName),
	}
}

// newInteractiveLogger writes to the log file when one is configured. The terminal belongs to the
// explorer, so without a file nothing is logged.
func newInteractiveLogger(logFile string) (*zap.Logger, error) {
	trimmedPath := strings.TrimSpace(logFile)
	if trimmedPath == "" {
		return zap.NewNop(), nil
	}
	configuration := zap.NewProductionConfig()
	configuration.OutputPaths = []string{trimmedPath}
	configuration.ErrorOutputPaths = []string{trimmedPath}
	configuration.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	return configuration.Build()
}
