package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-clone-service/internal/client"
	"github.com/book-expert/voice-clone-service/internal/synthesis"
)

// Flag descriptions.
const (
	flagServerDesc  = "Base URL of the voice-clone service"
	flagTextDesc    = "Text to convert to speech"
	flagVoiceDesc   = "Reference voice name (\".wav\" is optional)"
	flagUserDesc    = "User id the request is made for"
	flagOutputDesc  = "Download the generated file to this path (.wav)"
	flagUploadDesc  = "Upload this WAV file as a new reference voice and exit"
	flagHealthDesc  = "Check service health and exit"
	flagTimeoutDesc = "Request timeout"
)

// Flag names.
const (
	flagServer  = "server"
	flagText    = "text"
	flagVoice   = "voice"
	flagUser    = "user"
	flagOutput  = "output"
	flagUpload  = "upload"
	flagHealth  = "health"
	flagTimeout = "timeout"
)

// Error and log messages.
const (
	errFailedToInitLogger = "failed to initialize logger: %v"
	errHealthCheckFailed  = "Health check failed: %v"
	errServiceNotHealthy  = "Voice clone service is not healthy: %v\n"
	msgServiceHealthy     = "Voice clone service is healthy (model %s)\n"
	errFailedToSynthesize = "Synthesis failed: %v"
	errFailedToUpload     = "Upload failed: %v"
	errFailedToDownload   = "Download failed: %v"
	logSynthesizing       = "Synthesizing for user %d with voice %s"
	logGenerated          = "Generated: %s\n"
	logDownloaded         = "Saved to: %s\n"
	logUploaded           = "Uploaded voice: %s\n"
)

const (
	defaultServerURL = "http://127.0.0.1:8000"
	defaultTimeout   = 10 * time.Minute
	logFileName      = "tts-client.log"
)

// Validation errors.
var (
	ErrNothingToDo    = errors.New("one of --text, --upload or --health must be provided")
	ErrVoiceRequired  = errors.New("--voice is required with --text")
	ErrConflictingOps = errors.New("--text and --upload cannot be combined")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	server  string
	text    string
	voice   string
	output  string
	upload  string
	user    int64
	health  bool
	timeout time.Duration
}

func main() {
	err := run()
	if err != nil {
		// A logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flags := parseFlags(flag.CommandLine, os.Args[1:])

	err := validateFlags(flags)
	if err != nil {
		flag.Usage()

		return err
	}

	clientLog, err := logger.New(os.TempDir(), logFileName)
	if err != nil {
		return fmt.Errorf(errFailedToInitLogger, err)
	}
	defer clientLog.Close()

	ctx, cancel := context.WithTimeout(context.Background(), flags.timeout)
	defer cancel()

	serviceClient := client.New(flags.server, flags.timeout)

	switch {
	case flags.health:
		return handleHealthCheck(ctx, serviceClient, clientLog)
	case flags.upload != "":
		return handleUpload(ctx, serviceClient, clientLog, flags)
	default:
		return handleSynthesize(ctx, serviceClient, clientLog, flags)
	}
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags(flagSet *flag.FlagSet, args []string) appFlags {
	var flags appFlags

	flagSet.StringVar(&flags.server, flagServer, defaultServerURL, flagServerDesc)
	flagSet.StringVar(&flags.text, flagText, "", flagTextDesc)
	flagSet.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flagSet.Int64Var(&flags.user, flagUser, 0, flagUserDesc)
	flagSet.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flagSet.StringVar(&flags.upload, flagUpload, "", flagUploadDesc)
	flagSet.BoolVar(&flags.health, flagHealth, false, flagHealthDesc)
	flagSet.DurationVar(&flags.timeout, flagTimeout, defaultTimeout, flagTimeoutDesc)

	_ = flagSet.Parse(args)

	return flags
}

// validateFlags checks for required and conflicting arguments.
func validateFlags(flags appFlags) error {
	if flags.health {
		return nil
	}

	if flags.text == "" && flags.upload == "" {
		return ErrNothingToDo
	}

	if flags.text != "" && flags.upload != "" {
		return ErrConflictingOps
	}

	if flags.text != "" && flags.voice == "" {
		return ErrVoiceRequired
	}

	return nil
}

func handleHealthCheck(ctx context.Context, serviceClient *client.Client, clientLog *logger.Logger) error {
	health, err := serviceClient.HealthCheck(ctx)
	if err != nil {
		clientLog.Error(errHealthCheckFailed, err)
		fmt.Printf(errServiceNotHealthy, err)

		return err
	}

	fmt.Printf(msgServiceHealthy, health.ModelID)

	return nil
}

func handleUpload(ctx context.Context, serviceClient *client.Client, clientLog *logger.Logger, flags appFlags) error {
	voice, err := serviceClient.UploadVoice(ctx, flags.user, flags.upload)
	if err != nil {
		clientLog.Error(errFailedToUpload, err)

		return fmt.Errorf(errFailedToUpload, err)
	}

	fmt.Printf(logUploaded, voice.Name)

	return nil
}

func handleSynthesize(ctx context.Context, serviceClient *client.Client, clientLog *logger.Logger, flags appFlags) error {
	clientLog.Info(logSynthesizing, flags.user, flags.voice)

	result, err := serviceClient.Synthesize(ctx, synthesis.Request{
		Text:       flags.text,
		SpeakerWav: flags.voice,
		UserID:     flags.user,
	})
	if err != nil {
		clientLog.Error(errFailedToSynthesize, err)

		return fmt.Errorf(errFailedToSynthesize, err)
	}

	fmt.Printf(logGenerated, result.Filename)

	if flags.output == "" {
		return nil
	}

	err = serviceClient.Download(ctx, result.Filename, flags.output)
	if err != nil {
		clientLog.Error(errFailedToDownload, err)

		return fmt.Errorf(errFailedToDownload, err)
	}

	fmt.Printf(logDownloaded, flags.output)

	return nil
}
