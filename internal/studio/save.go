package studio

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/apresai/voicebox/internal/observability"
	"github.com/apresai/voicebox/internal/progress"
	"github.com/apresai/voicebox/internal/wav"
)

// Save writes the container to dir under its fixed file name, replacing any
// previous file of that name. The bytes go to a temporary file that is
// renamed into place only after a successful close, so a failed save never
// leaves a partial file behind.
func (g *Generator) Save(ctx context.Context, dir string, res *Result) (string, error) {
	start := time.Now()
	g.progress(progress.NewEvent(progress.StageSave, "Saving "+res.FileName, 0.95, start))

	path, err := writeFile(dir, res.FileName, res.Audio)
	if err != nil {
		observability.RecordError(StageSave)
		e := progress.NewEvent(progress.StageSave, "Failed", 0.95, start)
		e.Error = err
		g.progress(e)
		return "", &StageError{Stage: StageSave, Message: "failed to save audio", Err: err}
	}

	g.log.InfoContext(ctx, "Saved audio", "path", path, "bytes", len(res.Audio), "id", res.ID.String())

	e := progress.NewEvent(progress.StageComplete, "Audio saved", 1, start)
	e.OutputFile = path
	e.Duration = progress.FormatElapsed(res.Duration)
	e.SizeKB = float64(len(res.Audio)) / 1024
	e.Cached = res.Cached
	g.progress(e)
	return path, nil
}

// writeFile reports storage failures as *wav.WriteError.
func writeFile(dir, name string, data []byte) (path string, err error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &wav.WriteError{Op: "create directory", Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+name+"-*.tmp")
	if err != nil {
		return "", &wav.WriteError{Op: "create " + name, Err: err}
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return "", &wav.WriteError{Op: "write " + name, Err: err}
	}
	if err = tmp.Chmod(0o644); err != nil {
		return "", &wav.WriteError{Op: "chmod " + name, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return "", &wav.WriteError{Op: "close " + name, Err: err}
	}

	path = filepath.Join(dir, name)
	if err = os.Rename(tmp.Name(), path); err != nil {
		return "", &wav.WriteError{Op: "rename " + name, Err: err}
	}
	return path, nil
}
