package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/voicebox/internal/config"
	"github.com/apresai/voicebox/internal/studio"
	"github.com/apresai/voicebox/internal/tts"
	"github.com/apresai/voicebox/internal/voices"
	"github.com/apresai/voicebox/internal/wav"
)

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keySave  = tea.KeyMsg{Type: tea.KeyCtrlS}
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, m tuiModel, msgs ...tea.KeyMsg) tuiModel {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(tuiModel)
	}
	return m
}

func fields(items []menuItem) []field {
	out := make([]field, len(items))
	for i, it := range items {
		out[i] = it.field
	}
	return out
}

func TestBuildMenuItems(t *testing.T) {
	single := buildMenuItems(voices.Default, tts.ModeSingle, nil)
	assert.Equal(t, []field{fieldMode, fieldText, fieldVoice, fieldOutputDir, fieldPlay, fieldGenerate}, fields(single))
	assert.Equal(t, voices.DefaultDescriptor, single[2].value)
	assert.Len(t, single[2].options, voices.Default.Len())
	assert.Equal(t, "Bright (Zephyr)", single[2].options[0].label)

	multi := buildMenuItems(voices.Default, tts.ModeMulti, map[field]string{fieldSpeaker2: "Warm"})
	assert.Equal(t, []field{fieldMode, fieldText, fieldSpeaker1, fieldSpeaker2, fieldOutputDir, fieldPlay, fieldGenerate}, fields(multi))
	assert.Equal(t, "Transcript", multi[1].label)
	assert.Equal(t, defaultSpeaker1, multi[2].value)
	assert.Equal(t, "Warm", multi[3].value)
	assert.Equal(t, voices.Default.Len()-1, multi[3].cursor, "cursor follows the preselected voice")
}

func TestTUI_SwitchModeKeepsText(t *testing.T) {
	m := initialTUIModel(voices.Default, nil)
	m.items[m.indexOf(fieldText)].value = "Speaker 1: Hi\nSpeaker 2: Hello"

	// open the mode picker, move to "Two speakers", select
	m = send(t, m, keyEnter, keyDown, keyEnter)

	assert.Equal(t, stateMenu, m.state)
	assert.Equal(t, string(tts.ModeMulti), m.value(fieldMode))
	assert.Equal(t, "Speaker 1: Hi\nSpeaker 2: Hello", m.value(fieldText))
	assert.Equal(t, -1, m.indexOf(fieldVoice))
	assert.Equal(t, "Firm", m.value(fieldSpeaker2))
	assert.Equal(t, m.indexOf(fieldText), m.cursor, "cursor advances past the mode row")

	in := m.input()
	assert.Equal(t, tts.ModeMulti, in.Mode)
	assert.Equal(t, "Bright", in.Speaker1Voice)
	assert.Equal(t, "Firm", in.Speaker2Voice)
}

func TestTUI_EditText(t *testing.T) {
	m := initialTUIModel(voices.Default, nil)
	m = send(t, m, keyDown, keyEnter)
	require.Equal(t, stateEditing, m.state)

	m = send(t, m, runes("Hello"), keySave)
	assert.Equal(t, stateMenu, m.state)
	assert.Equal(t, "Hello", m.value(fieldText))
	assert.Equal(t, m.indexOf(fieldVoice), m.cursor)
}

func TestTUI_EscDiscardsEdit(t *testing.T) {
	m := initialTUIModel(voices.Default, map[field]string{fieldText: "keep"})
	m = send(t, m, keyDown, keyEnter, runes(" more"), keyEsc)
	assert.Equal(t, "keep", m.value(fieldText))
	assert.Equal(t, m.indexOf(fieldText), m.cursor)
}

func TestTUI_EditOutputDir(t *testing.T) {
	m := initialTUIModel(voices.Default, nil)
	m.cursor = m.indexOf(fieldOutputDir)
	m = send(t, m, keyEnter, runes("out/audio"), keyEnter)
	assert.Equal(t, "out/audio", m.value(fieldOutputDir))
	assert.Equal(t, "out/audio", m.actionOptions().OutputDir)
}

func TestTUI_GenerateRequiresText(t *testing.T) {
	m := initialTUIModel(voices.Default, nil)
	m.cursor = m.generateIdx()
	m = send(t, m, keyEnter)

	assert.False(t, m.confirmed)
	var ve *tts.ValidationError
	require.ErrorAs(t, m.err, &ve)
	assert.ErrorIs(t, m.err, tts.ErrEmptyInput)
	assert.Contains(t, m.View(), "Error:")
}

func TestTUI_GenerateConfirms(t *testing.T) {
	m := initialTUIModel(voices.Default, map[field]string{fieldText: "Hello there", fieldPlay: "yes"})
	m.cursor = m.generateIdx()
	next, cmd := m.Update(keyEnter)
	m = next.(tuiModel)

	assert.True(t, m.confirmed)
	require.NotNil(t, cmd)
	assert.Equal(t, studio.Input{Mode: tts.ModeSingle, Text: "Hello there", Voice: "Bright"}, m.input())
	assert.True(t, m.actionOptions().Play)
}

func TestTUI_Quit(t *testing.T) {
	m := initialTUIModel(voices.Default, nil)
	m = send(t, m, runes("q"))
	assert.True(t, m.cancelled)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("  short  ", 10))
	assert.Equal(t, "Speaker 1: Hi ...", preview("Speaker 1: Hi\nSpeaker 2: Hello", 40))
	assert.Equal(t, "abcde...", preview("abcdefgh", 5))
}

func TestLoadText(t *testing.T) {
	ctx := context.Background()

	got, err := loadText(ctx, "inline", true, "", "--text")
	require.NoError(t, err)
	assert.Equal(t, "inline", got)

	got, err = loadText(ctx, "", true, "", "--text")
	require.NoError(t, err, "explicitly empty text is left to validation")
	assert.Empty(t, got)

	_, err = loadText(ctx, "", false, "", "--transcript")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--transcript")

	path := filepath.Join(t.TempDir(), "script.txt")
	require.NoError(t, os.WriteFile(path, []byte("Speaker 1: Hi\nSpeaker 2: Hello\n"), 0o644))
	got, err = loadText(ctx, "", false, path, "--transcript")
	require.NoError(t, err)
	assert.Equal(t, "Speaker 1: Hi\nSpeaker 2: Hello\n", got)

	_, err = loadText(ctx, "", false, filepath.Join(t.TempDir(), "missing.txt"), "--text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load input")
}

type fakeSynth struct {
	calls int
	err   error
}

func (f *fakeSynth) Synthesize(context.Context, tts.Request) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return make([]byte, 4800), nil
}

type fakePlayer struct {
	played [][]byte
	err    error
}

func (f *fakePlayer) Play(_ context.Context, container []byte) error {
	f.played = append(f.played, container)
	return f.err
}

func newTestAction(t *testing.T, synth *fakeSynth, play bool) (*action, *fakePlayer, string) {
	t.Helper()
	gen, err := studio.New(synth, studio.Options{Logger: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)
	dir := filepath.Join(t.TempDir(), "out")
	p := &fakePlayer{}
	return &action{gen: gen, player: p, out: io.Discard, opts: actionOptions{OutputDir: dir, Play: play}}, p, dir
}

type fakeUploader struct {
	names []string
	data  [][]byte
}

func (f *fakeUploader) Upload(_ context.Context, name, contentType string, data []byte) (string, string, error) {
	f.names = append(f.names, name)
	f.data = append(f.data, data)
	return name, "s3://bucket/" + name, nil
}

func TestAction_Uploads(t *testing.T) {
	a, _, dir := newTestAction(t, &fakeSynth{}, false)
	up := &fakeUploader{}
	var out bytes.Buffer
	a.uploader = up
	a.out = &out

	require.NoError(t, a.run(context.Background(), studio.Input{Text: "Hi", Voice: "Bright"}))

	saved, err := os.ReadFile(filepath.Join(dir, studio.SingleSpeakerFile))
	require.NoError(t, err)
	assert.Equal(t, []string{studio.SingleSpeakerFile}, up.names)
	assert.Equal(t, saved, up.data[0])
	assert.Contains(t, out.String(), "Uploaded to s3://bucket/"+studio.SingleSpeakerFile)
}

func TestAction_SavesAndPlays(t *testing.T) {
	synth := &fakeSynth{}
	a, p, dir := newTestAction(t, synth, true)

	err := a.run(context.Background(), studio.Input{
		Mode:          tts.ModeMulti,
		Text:          "Speaker 1: Hi\nSpeaker 2: Hello",
		Speaker1Voice: "Bright",
		Speaker2Voice: "Firm",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, synth.calls)

	data, err := os.ReadFile(filepath.Join(dir, studio.MultiSpeakerFile))
	require.NoError(t, err)
	require.Len(t, p.played, 1)
	assert.Equal(t, data, p.played[0])

	format, pcm, err := wav.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, wav.Standard, format)
	assert.Len(t, pcm, 4800)
}

func TestAction_NoPlayback(t *testing.T) {
	a, p, dir := newTestAction(t, &fakeSynth{}, false)
	require.NoError(t, a.run(context.Background(), studio.Input{Mode: tts.ModeSingle, Text: "Hi", Voice: "Warm"}))
	assert.FileExists(t, filepath.Join(dir, studio.SingleSpeakerFile))
	assert.Empty(t, p.played)
}

func TestAction_ValidationIsRejected(t *testing.T) {
	synth := &fakeSynth{}
	a, _, dir := newTestAction(t, synth, true)

	err := a.run(context.Background(), studio.Input{Mode: tts.ModeSingle, Text: "Hi", Voice: "Nope"})
	assert.ErrorIs(t, err, errRejected)
	assert.Zero(t, synth.calls)
	assert.NoDirExists(t, dir)
}

func TestAction_ServiceFailure(t *testing.T) {
	synth := &fakeSynth{err: &tts.ServiceError{Provider: "gemini", StatusCode: 500, Body: "boom"}}
	a, p, dir := newTestAction(t, synth, true)

	err := a.run(context.Background(), studio.Input{Mode: tts.ModeSingle, Text: "Hi", Voice: "Bright"})
	var se *tts.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 500, se.StatusCode)
	assert.Empty(t, p.played)
	assert.NoFileExists(t, filepath.Join(dir, studio.SingleSpeakerFile))
}

func TestAction_PlaybackCancelledIsNotAnError(t *testing.T) {
	a, p, _ := newTestAction(t, &fakeSynth{}, true)
	p.err = context.Canceled
	require.NoError(t, a.run(context.Background(), studio.Input{Text: "Hi", Voice: "Bright"}))

	p.err = errors.New("no audio device")
	err := a.run(context.Background(), studio.Input{Text: "Hi", Voice: "Bright"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "play audio")
}

// stubInteractive clears credentials and replaces the menu for one test.
func stubInteractive(t *testing.T, setup func() (studio.Input, actionOptions, error)) {
	t.Helper()
	for _, name := range []string{"VOICEBOX_API_KEY", "VOICEBOX_SECRET_ID", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		t.Setenv(name, "")
	}
	t.Setenv("VOICEBOX_PROVIDER", "gemini")
	prevSetup, prevKey, prevProvider := interactiveSetup, flagAPIKey, flagProvider
	interactiveSetup, flagAPIKey, flagProvider = setup, "", ""
	t.Cleanup(func() {
		interactiveSetup, flagAPIKey, flagProvider = prevSetup, prevKey, prevProvider
	})
}

func TestRunInteractive_MissingKeyBeforeMenu(t *testing.T) {
	shown := false
	stubInteractive(t, func() (studio.Input, actionOptions, error) {
		shown = true
		return studio.Input{}, actionOptions{}, errCancelled
	})

	err := runInteractive(&cobra.Command{}, nil)
	var ce *config.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "api key", ce.Field)
	assert.False(t, shown, "menu must not open without a key")
}

func TestRunInteractive_ShowsMenuWithKey(t *testing.T) {
	shown := false
	stubInteractive(t, func() (studio.Input, actionOptions, error) {
		shown = true
		return studio.Input{}, actionOptions{}, errCancelled
	})
	t.Setenv("GEMINI_API_KEY", "test-key")

	err := runInteractive(&cobra.Command{}, nil)
	assert.ErrorIs(t, err, errCancelled)
	assert.True(t, shown)
}

func TestWarn(t *testing.T) {
	var buf bytes.Buffer
	err := warn(&buf, &studio.StageError{
		Stage:   studio.StageValidate,
		Message: "invalid input",
		Err:     &tts.ValidationError{Field: "voice", Err: &voices.UnknownPersonaError{Descriptor: "Nope"}},
	})
	assert.ErrorIs(t, err, errRejected)
	assert.Contains(t, buf.String(), "Warning: ")
	assert.Contains(t, buf.String(), `unknown voice type "Nope"`)
}

func TestPrintVoices(t *testing.T) {
	var buf bytes.Buffer
	printVoices(&buf, voices.Default)
	out := buf.String()

	lines := strings.Split(out, "\n")
	var rows []string
	for _, l := range lines {
		if strings.HasPrefix(l, "  ") && !strings.Contains(l, "VOICE TYPE") && !strings.Contains(l, "─") {
			rows = append(rows, l)
		}
	}
	require.Len(t, rows, voices.Default.Len())
	assert.Contains(t, rows[0], "Bright")
	assert.Contains(t, rows[0], "Zephyr (default)")
	assert.Contains(t, out, fmt.Sprintf("  %-16s %s", "Firm", "Kore (default Speaker 2)"))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"single", "multi", "voices", "version"} {
		assert.True(t, names[want], want)
	}
	for _, flag := range []string{"output-dir", "play", "provider", "model", "api-key", "verbose"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), flag)
	}
	assert.Equal(t, voices.DefaultDescriptor, singleCmd.Flags().Lookup("voice").DefValue)
	assert.Equal(t, "Firm", multiCmd.Flags().Lookup("speaker2").DefValue)
}
