package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/director/internal/credentials"
)

// ffmpegCompile is the Compilation adapter, grounded on the teacher's
// FFmpegService.ConcatenateClips (services/ffmpeg.go) — same concat-list,
// stream-copy ffmpeg invocation. The teacher calls ConcatenateClips
// synchronously from inside its worker loop; here Submit launches it on a
// goroutine and returns a handle immediately, with Poll reading a status
// file keyed by that handle, so the Orchestrator's phase loop never
// blocks on ffmpeg (spec §4.1, §9 REDESIGN FLAGS).
//
// The Orchestrator reconstructs adapters fresh on every resume (spec §9:
// "adapters reconstructed on each resume; never persist live handler
// objects"), so Submit cannot hand completion state to Poll through an
// in-memory map — a reconstructed adapter would never see it. The status
// file is the durable handoff: Submit's goroutine writes it on
// completion, and any ffmpegCompile instance, built on any resume, can
// read it back by handle.
type ffmpegCompile struct {
	tempDir    string
	httpClient *http.Client
}

// compileStatus is the on-disk shape of a compile handle's outcome.
type compileStatus struct {
	Done  bool   `json:"done"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

func newFFmpegCompile(_ credentials.Credentials) *ffmpegCompile {
	return &ffmpegCompile{
		tempDir:    os.TempDir(),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *ffmpegCompile) statusPath(handle string) string {
	return filepath.Join(c.tempDir, "compile-"+handle+".status.json")
}

// writeStatus persists status via a temp-file-then-rename so a concurrent
// Poll reading statusPath never observes a partially written file.
func (c *ffmpegCompile) writeStatus(handle string, status compileStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	path := c.statusPath(handle)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (c *ffmpegCompile) Submit(ctx context.Context, orderedClipURLs []string, opts CompileOptions) (string, error) {
	if len(orderedClipURLs) == 0 {
		return "", &ProviderError{Retryable: false, Message: "no clips to compile"}
	}

	handle := uuid.New().String()

	go func() {
		url, err := c.runConcat(context.Background(), handle, orderedClipURLs)
		status := compileStatus{Done: true, URL: url}
		if err != nil {
			status.Error = err.Error()
		}
		if writeErr := c.writeStatus(handle, status); writeErr != nil {
			// Nothing can observe this failure but a stuck Poll; the
			// Orchestrator's poll-attempt ceiling (spec §9) still bounds
			// how long a job waits on a handle whose status never lands.
			return
		}
	}()

	return handle, nil
}

func (c *ffmpegCompile) Poll(ctx context.Context, handle string) (CompilePollResult, error) {
	data, err := os.ReadFile(c.statusPath(handle))
	if errors.Is(err, os.ErrNotExist) {
		return CompilePollResult{Status: VideoRunning}, nil
	}
	if err != nil {
		return CompilePollResult{}, fmt.Errorf("read compile status %q: %w", handle, err)
	}

	var status compileStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return CompilePollResult{}, fmt.Errorf("decode compile status %q: %w", handle, err)
	}
	if !status.Done {
		return CompilePollResult{Status: VideoRunning}, nil
	}
	if status.Error != "" {
		return CompilePollResult{Status: VideoFailed, Error: status.Error}, nil
	}
	return CompilePollResult{Status: VideoDone, URL: status.URL}, nil
}

func (c *ffmpegCompile) runConcat(ctx context.Context, handle string, clipURLs []string) (string, error) {
	workDir := filepath.Join(c.tempDir, "compile-"+handle)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	localPaths := make([]string, len(clipURLs))
	for i, clipURL := range clipURLs {
		path := filepath.Join(workDir, fmt.Sprintf("clip-%03d.mp4", i))
		if err := c.downloadClip(ctx, clipURL, path); err != nil {
			return "", fmt.Errorf("download clip %d: %w", i, err)
		}
		localPaths[i] = path
	}

	listPath := filepath.Join(workDir, "concat_list.txt")
	f, err := os.Create(listPath)
	if err != nil {
		return "", fmt.Errorf("create concat list: %w", err)
	}
	for _, p := range localPaths {
		fmt.Fprintf(f, "file '%s'\n", p)
	}
	f.Close()

	outputPath := filepath.Join(workDir, "final.mp4")
	args := []string{"-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", "-y", outputPath}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg concatenate failed: %w (%s)", err, string(out))
	}

	finalPath := filepath.Join(c.tempDir, "compiled-"+handle+".mp4")
	if err := os.Rename(outputPath, finalPath); err != nil {
		return "", fmt.Errorf("persist compiled output: %w", err)
	}
	return "file://" + finalPath, nil
}

func (c *ffmpegCompile) downloadClip(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}

func (c *ffmpegCompile) EstimateCostUSD() float64 {
	return 0.0
}
