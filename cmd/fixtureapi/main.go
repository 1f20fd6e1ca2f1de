package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/influence-explorer/explorer/internal/fixtures"
)

const (
	commandUse                   = "fixtureapi"
	commandShortDescription      = "Serve a fixture dataset over the influence backend HTTP contract"
	envPrefix                    = "INFLUENCE_FIXTURES"
	flagHostName                 = "host"
	flagHostDescription          = "Host interface for the HTTP server"
	flagPortName                 = "port"
	flagPortDescription          = "Port for the HTTP server"
	flagDatasetName              = "dataset"
	flagDatasetDescription       = "Path to a JSON dataset; the embedded sample is served when empty"
	flagAnalysisDelayName        = "analysis-delay"
	flagAnalysisDelayDescription = "Delay applied to every analysis response"
	defaultHost                  = "127.0.0.1"
	defaultPort                  = 8080
	errMessageLoggerCreate       = "create logger"
	errMessageDatasetLoad        = "load dataset"
	errMessageListenAndServe     = "listen and serve"
	logMessageDatasetLoaded      = "fixture dataset loaded"
	logMessageStartingServer     = "starting HTTP server"
	logMessageServerStopped      = "server stopped"
	logMessageListenError        = "server listen failure"
	logFieldAddress              = "address"
	logFieldDataset              = "dataset"
	logFieldAccounts             = "accounts"
	logFieldExternalAccounts     = "external_accounts"
	embeddedDatasetName          = "embedded sample"
)

func main() {
	cobra.CheckErr(newFixtureAPICommand().Execute())
}

func newFixtureAPICommand() *cobra.Command {
	command := &cobra.Command{
		Use:   commandUse,
		Short: commandShortDescription,
		RunE:  runFixtureAPICommand,
	}

	command.Flags().String(flagHostName, defaultHost, flagHostDescription)
	command.Flags().Int(flagPortName, defaultPort, flagPortDescription)
	command.Flags().String(flagDatasetName, "", flagDatasetDescription)
	command.Flags().Duration(flagAnalysisDelayName, 0, flagAnalysisDelayDescription)

	bindFlagToViper(command, flagHostName)
	bindFlagToViper(command, flagPortName)
	bindFlagToViper(command, flagDatasetName)
	bindFlagToViper(command, flagAnalysisDelayName)

	cobra.OnInitialize(configureEnvironment)

	return command
}

func bindFlagToViper(command *cobra.Command, flagName string) {
	cobra.CheckErr(viper.BindPFlag(flagName, command.Flags().Lookup(flagName)))
}

func configureEnvironment() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func runFixtureAPICommand(*cobra.Command, []string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("%s: %w", errMessageLoggerCreate, err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	datasetPath := strings.TrimSpace(viper.GetString(flagDatasetName))
	dataset, err := loadDataset(datasetPath)
	if err != nil {
		return fmt.Errorf("%s: %w", errMessageDatasetLoad, err)
	}
	datasetName := datasetPath
	if datasetName == "" {
		datasetName = embeddedDatasetName
	}
	logger.Info(logMessageDatasetLoaded,
		zap.String(logFieldDataset, datasetName),
		zap.Int(logFieldAccounts, len(dataset.Accounts)),
		zap.Int(logFieldExternalAccounts, len(dataset.External)),
	)

	router, err := fixtures.NewRouter(fixtures.RouterConfig{
		Store:         fixtures.NewStore(dataset, time.Now),
		Logger:        logger,
		AnalysisDelay: viper.GetDuration(flagAnalysisDelayName),
	})
	if err != nil {
		return err
	}

	host := viper.GetString(flagHostName)
	port := viper.GetInt(flagPortName)
	address := fmt.Sprintf("%s:%d", host, port)
	logger.Info(logMessageStartingServer, zap.String(logFieldAddress, address))

	httpServer := &http.Server{Addr: address, Handler: router}
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(logMessageListenError, zap.Error(err))
		return fmt.Errorf("%s: %w", errMessageListenAndServe, err)
	}

	logger.Info(logMessageServerStopped)
	return nil
}

func loadDataset(path string) (fixtures.Dataset, error) {
	if path == "" {
		return fixtures.SampleDataset()
	}
	return fixtures.LoadDataset(path)
}
