package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/apresai/voicebox/internal/config"
	"github.com/apresai/voicebox/internal/ingest"
	"github.com/apresai/voicebox/internal/observability"
	"github.com/apresai/voicebox/internal/playback"
	"github.com/apresai/voicebox/internal/progress"
	"github.com/apresai/voicebox/internal/secrets"
	"github.com/apresai/voicebox/internal/storage"
	"github.com/apresai/voicebox/internal/studio"
	"github.com/apresai/voicebox/internal/tts"
	"github.com/apresai/voicebox/internal/voices"
)

var Version = "dev"

// Preselected voice types for the two transcript speakers.
const (
	defaultSpeaker1 = voices.DefaultDescriptor
	defaultSpeaker2 = voices.DefaultSpeaker2Descriptor
)

// errRejected marks input that was refused with a warning before any
// synthesis request. Execute does not print it again.
var errRejected = errors.New("input rejected")

var warnStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#FFB86C")).
	Bold(true)

var rootCmd = &cobra.Command{
	Use:           "voicebox",
	Short:         "Turn text into spoken audio with one or two AI voices",
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd, args)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("voicebox %s\n", Version)
	},
}

var singleCmd = &cobra.Command{
	Use:   "single",
	Short: "Read text aloud with one voice",
	Args:  cobra.NoArgs,
	RunE:  runSingle,
}

var multiCmd = &cobra.Command{
	Use:   "multi",
	Short: "Perform a Speaker 1 / Speaker 2 transcript with two voices",
	Args:  cobra.NoArgs,
	RunE:  runMulti,
}

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List available voice types",
	RunE:  runVoices,
}

var (
	flagText       string
	flagTranscript string
	flagInput      string
	flagVoice      string
	flagSpeaker1   string
	flagSpeaker2   string
	flagOutputDir  string
	flagPlay       bool
	flagProvider   string
	flagModel      string
	flagAPIKey     string
	flagVerbose    bool
)

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(singleCmd)
	rootCmd.AddCommand(multiCmd)
	rootCmd.AddCommand(voicesCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagOutputDir, "output-dir", "o", "", "Directory for the WAV file (default $VOICEBOX_OUTPUT_DIR or .)")
	pf.BoolVarP(&flagPlay, "play", "P", false, "Play the audio after saving")
	pf.StringVarP(&flagProvider, "provider", "T", "", "TTS backend: "+strings.Join(tts.ProviderNames, ", ")+" (default $VOICEBOX_PROVIDER or gemini)")
	pf.StringVarP(&flagModel, "model", "m", "", "TTS model ID (e.g. gemini-2.5-pro-preview-tts)")
	pf.StringVar(&flagAPIKey, "api-key", "", "API key (overrides GEMINI_API_KEY env var)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable detailed logging")

	singleCmd.Flags().StringVarP(&flagText, "text", "t", "", "Text to read aloud")
	singleCmd.Flags().StringVarP(&flagInput, "input", "i", "", "Read text from a file, PDF, URL, or - for stdin")
	singleCmd.Flags().StringVarP(&flagVoice, "voice", "s", voices.DefaultDescriptor, "Voice type (see 'voicebox voices')")
	singleCmd.MarkFlagsMutuallyExclusive("text", "input")

	multiCmd.Flags().StringVarP(&flagTranscript, "transcript", "t", "", "Transcript with 'Speaker 1:' and 'Speaker 2:' lines")
	multiCmd.Flags().StringVarP(&flagInput, "input", "i", "", "Read the transcript from a file, PDF, URL, or - for stdin")
	multiCmd.Flags().StringVarP(&flagSpeaker1, "speaker1", "1", defaultSpeaker1, "Voice type for Speaker 1")
	multiCmd.Flags().StringVarP(&flagSpeaker2, "speaker2", "2", defaultSpeaker2, "Voice type for Speaker 2")
	multiCmd.MarkFlagsMutuallyExclusive("transcript", "input")
}

// Execute runs the root command and prints any error that was not already
// reported as a warning.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errRejected) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func runSingle(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	text, err := loadText(ctx, flagText, cmd.Flags().Changed("text"), flagInput, "--text")
	if err != nil {
		return err
	}
	in := studio.Input{Mode: tts.ModeSingle, Text: text, Voice: flagVoice}
	return runAction(ctx, in, actionOptions{OutputDir: flagOutputDir, Play: flagPlay})
}

func runMulti(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	text, err := loadText(ctx, flagTranscript, cmd.Flags().Changed("transcript"), flagInput, "--transcript")
	if err != nil {
		return err
	}
	in := studio.Input{
		Mode:          tts.ModeMulti,
		Text:          text,
		Speaker1Voice: flagSpeaker1,
		Speaker2Voice: flagSpeaker2,
	}
	return runAction(ctx, in, actionOptions{OutputDir: flagOutputDir, Play: flagPlay})
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// loadText returns the inline text, or the content of input. An explicitly
// empty inline value is passed through so validation can reject it.
func loadText(ctx context.Context, inline string, inlineSet bool, input, inlineFlag string) (string, error) {
	if inlineSet || input == "" {
		if !inlineSet {
			return "", fmt.Errorf("either %s or --input (-i) is required", inlineFlag)
		}
		return inline, nil
	}
	content, err := ingest.Load(ctx, input)
	if err != nil {
		return "", fmt.Errorf("load input: %w", err)
	}
	return content.Text, nil
}

type actionOptions struct {
	OutputDir string
	Play      bool
}

// runAction validates the input, configures the backend, and produces one
// WAV file. Invalid input is reported before credentials are looked up.
func runAction(ctx context.Context, in studio.Input, opts actionOptions) error {
	if _, err := studio.Build(voices.Default, in); err != nil {
		return warn(os.Stderr, err)
	}

	logger := newLogger()
	b, err := resolveBackend(ctx, logger)
	if err != nil {
		return err
	}
	return execute(ctx, b, logger, in, opts)
}

// backend is a validated configuration and its resolved API key.
type backend struct {
	cfg *config.Config
	key string
}

// resolveBackend reads the configuration and the API key. A missing
// credential is a *config.ConfigError returned before any request.
func resolveBackend(ctx context.Context, logger *slog.Logger) (*backend, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	key, err := secrets.NewResolver(cfg, logger).APIKey(ctx, cfg.Provider, flagAPIKey, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return &backend{cfg: cfg, key: key}, nil
}

// execute runs one validated input against a resolved backend.
func execute(ctx context.Context, b *backend, logger *slog.Logger, in studio.Input, opts actionOptions) error {
	var cb progress.Callback
	if !flagVerbose {
		r := progress.NewBarRenderer(os.Stdout)
		defer r.Finish()
		cb = r.Handle
	}
	if opts.OutputDir == "" {
		opts.OutputDir = b.cfg.OutputDir
	}

	gen, closeFn, err := newGenerator(ctx, b, logger, cb)
	if err != nil {
		return err
	}
	defer closeFn()

	a := &action{gen: gen, player: playback.New(), out: os.Stdout, opts: opts}
	if b.cfg.S3Bucket != "" {
		up, err := storage.NewFromRegion(ctx, b.cfg.AWSRegion, b.cfg.S3Bucket, b.cfg.S3Prefix, b.cfg.PublicBaseURL)
		if err != nil {
			return err
		}
		a.uploader = up
	}
	return a.run(ctx, in)
}

// player is satisfied by *playback.Player.
type player interface {
	Play(ctx context.Context, container []byte) error
}

// uploader is satisfied by *storage.S3.
type uploader interface {
	Upload(ctx context.Context, name, contentType string, data []byte) (key, url string, err error)
}

type action struct {
	gen      *studio.Generator
	player   player
	uploader uploader // optional
	out      io.Writer
	opts     actionOptions
}

func (a *action) run(ctx context.Context, in studio.Input) error {
	res, err := a.gen.Generate(ctx, in)
	if err != nil {
		var ve *tts.ValidationError
		if errors.As(err, &ve) {
			return warn(os.Stderr, err)
		}
		return err
	}
	if _, err := a.gen.Save(ctx, a.opts.OutputDir, res); err != nil {
		return err
	}
	if a.uploader != nil {
		_, url, err := a.uploader.Upload(ctx, res.FileName, res.MIMEType, res.Audio)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Uploaded to %s\n", url)
	}
	if a.opts.Play {
		if err := a.player.Play(ctx, res.Audio); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("play audio: %w", err)
		}
	}
	return nil
}

// warn prints a validation problem and returns errRejected.
func warn(w io.Writer, err error) error {
	var ve *tts.ValidationError
	msg := err.Error()
	if errors.As(err, &ve) {
		msg = ve.Error()
	}
	fmt.Fprintln(w, warnStyle.Render("Warning: ")+msg)
	return errRejected
}

func newLogger() *slog.Logger {
	if flagVerbose {
		return observability.InitLogger(os.Stderr, slog.LevelDebug)
	}
	return slog.New(slog.DiscardHandler)
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagProvider != "" {
		cfg.Provider = flagProvider
	}
	if flagModel != "" {
		cfg.Model = flagModel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newGenerator builds the synthesis stack for a resolved backend.
func newGenerator(ctx context.Context, b *backend, logger *slog.Logger, cb progress.Callback) (*studio.Generator, func() error, error) {
	provider, err := tts.NewProvider(ctx, b.cfg.Provider, b.cfg.ProviderConfig(b.key, logger))
	if err != nil {
		return nil, nil, err
	}
	svc := tts.NewService(provider, logger)

	gen, err := studio.New(svc, studio.Options{
		Provider: b.cfg.Provider,
		Logger:   logger,
		Progress: cb,
	})
	if err != nil {
		svc.Close()
		return nil, nil, err
	}
	return gen, svc.Close, nil
}

func runVoices(cmd *cobra.Command, args []string) error {
	printVoices(cmd.OutOrStdout(), voices.Default)
	return nil
}

func printVoices(w io.Writer, catalog *voices.Catalog) {
	fmt.Fprintln(w, "\nAvailable voices:")
	fmt.Fprintf(w, "\n  %-16s %s\n", "VOICE TYPE", "VOICE")
	fmt.Fprintf(w, "  %s\n", strings.Repeat("─", 40))
	for _, p := range catalog.Personas() {
		def := ""
		switch p.Descriptor {
		case voices.DefaultDescriptor:
			def = " (default)"
		case defaultSpeaker2:
			def = " (default Speaker 2)"
		}
		fmt.Fprintf(w, "  %-16s %s%s\n", p.Descriptor, p.ID, def)
	}
	fmt.Fprintln(w)
}
