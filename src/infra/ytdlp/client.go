package ytdlp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/contre95/soulfetch/src/features/acquisition"
)

// Options configures the yt-dlp client.
type Options struct {
	Binary          string
	BaseURL         string
	AudioFormat     string
	AudioQuality    string
	SearchTimeout   time.Duration
	ListTimeout     time.Duration
	DownloadTimeout time.Duration
	MaxOutputBytes  int
}

// Client builds and runs the yt-dlp invocations used to search, list
// formats and download audio. It implements acquisition.Searcher and
// acquisition.Downloader.
type Client struct {
	runner *Runner
	opts   Options
}

// NewClient creates a yt-dlp client.
func NewClient(opts Options) *Client {
	if opts.Binary == "" {
		opts.Binary = "yt-dlp"
	}
	if opts.AudioFormat == "" {
		opts.AudioFormat = "mp3"
	}
	return &Client{runner: NewRunner(opts.Binary, opts.MaxOutputBytes), opts: opts}
}

// AudioFormat returns the final audio container extension.
func (c *Client) AudioFormat() string {
	return c.opts.AudioFormat
}

// VideoURL returns the watch URL for a remote id.
func (c *Client) VideoURL(remoteID string) string {
	return c.opts.BaseURL + remoteID
}

// SearchArgs returns the arguments of a single-result metadata search.
// extra is appended after the base arguments.
func (c *Client) SearchArgs(query string, extra ...string) []string {
	args := []string{
		"ytsearch1:" + query,
		"--format", "bestaudio",
		"--extract-audio",
		"--audio-format", c.opts.AudioFormat,
		"--no-download",
		"--dump-json",
	}
	return append(args, extra...)
}

// Search runs a metadata-only search. Stdout holds the JSON record, or is
// empty when nothing matched.
func (c *Client) Search(ctx context.Context, query string, extra ...string) (acquisition.ToolOutput, error) {
	return c.runner.Output(ctx, c.opts.SearchTimeout, c.SearchArgs(query, extra...)...)
}

// ListFormats returns the numeric format codes the platform offers for url,
// in listing order.
func (c *Client) ListFormats(ctx context.Context, url string) ([]string, acquisition.ToolOutput, error) {
	res, err := c.runner.Output(ctx, c.opts.ListTimeout, "--list-formats", url)
	if err != nil {
		return nil, res, err
	}
	return ParseFormats(string(res.Stdout)), res, nil
}

// DownloadArgs returns the arguments that download url in the given format
// selector and transcode it to the configured audio format at output. The
// output is a template to the tool, so literal percent signs are doubled.
func (c *Client) DownloadArgs(url, output, format string) []string {
	args := []string{
		"-f", format,
		"--extract-audio",
		"--audio-format", c.opts.AudioFormat,
	}
	if c.opts.AudioQuality != "" {
		args = append(args, "--audio-quality", c.opts.AudioQuality)
	}
	return append(args,
		"--add-metadata",
		"--embed-thumbnail",
		"-o", strings.ReplaceAll(output, "%", "%%"),
		url,
	)
}

// DownloadBest downloads the best audio stream. Every stdout line is passed
// to onLine while the process runs.
func (c *Client) DownloadBest(ctx context.Context, url, output string, onLine func(string)) (acquisition.ToolOutput, error) {
	return c.runner.Stream(ctx, c.opts.DownloadTimeout, onLine, c.DownloadArgs(url, output, "bestaudio")...)
}

// DownloadFormat downloads one specific format code.
func (c *Client) DownloadFormat(ctx context.Context, url, output, format string) (acquisition.ToolOutput, error) {
	if format == "" {
		return acquisition.ToolOutput{ExitCode: -1}, fmt.Errorf("empty format code")
	}
	return c.runner.Output(ctx, c.opts.DownloadTimeout, c.DownloadArgs(url, output, format)...)
}

// CommandLine renders an invocation for logs and the failure ledger.
func (c *Client) CommandLine(args ...string) string {
	return c.runner.CommandLine(args...)
}
