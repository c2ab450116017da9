package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"icsjson/internal/icsdoc"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	extICS  = ".ics"
	extJSON = ".json"
)

// ErrStrict marks a file that produced diagnostics while strict mode was on.
var ErrStrict = errors.New("diagnostics raised in strict mode")

// Options controls a conversion run.
type Options struct {
	// Revert converts .json documents back to .ics text instead of the
	// default .ics to .json direction.
	Revert bool
	// Wrap encloses reverted text in BEGIN:VCALENDAR / END:VCALENDAR. A
	// promoted single event is put back into a VEVENT.
	Wrap bool
	// Strict fails a file, without writing it, when any diagnostic is raised.
	Strict bool
	// DryRun converts but does not write outputs.
	DryRun bool
	// Jobs bounds concurrent conversions; zero means runtime.NumCPU().
	Jobs int
}

// Converter orchestrates file conversions between .ics and .json.
type Converter struct {
	logger  *slog.Logger
	grammar *icsdoc.Grammar
	opts    Options
}

// New creates a new Converter.
func New(logger *slog.Logger, opts Options) *Converter {
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.NumCPU()
	}
	return &Converter{
		logger:  logger,
		grammar: icsdoc.DefaultGrammar(),
		opts:    opts,
	}
}

// job is one resolved input file.
type job struct {
	input  string
	output string
	revert bool
}

// Run converts every eligible path. Paths that do not exist, are not regular
// files or have the wrong extension are skipped. A failing file is recorded in
// the report and does not stop the others.
func (c *Converter) Run(ctx context.Context, paths []string) (*Report, error) {
	report := newReport()
	c.logger.Info("Starting conversion run.", "runID", report.RunID, "paths", len(paths), "revert", c.opts.Revert)

	jobs := c.resolve(paths)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Jobs)
	for _, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := c.convertFile(gctx, j)
			mu.Lock()
			report.add(res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	report.finish()

	c.logger.Info("Conversion run finished.", "runID", report.RunID, "converted", report.Converted(), "failed", report.Failed())
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("conversion run interrupted: %w", err)
	}
	return report, nil
}

func (c *Converter) resolve(paths []string) []job {
	var jobs []job
	for _, p := range paths {
		j, ok := c.resolveOne(p)
		if ok {
			jobs = append(jobs, j)
		}
	}
	return jobs
}

func (c *Converter) resolveOne(p string) (job, bool) {
	abs, err := filepath.Abs(p)
	if err != nil {
		c.logger.Debug("Could not resolve path, skipping.", "path", p, "error", err)
		return job{}, false
	}
	info, err := os.Stat(abs)
	if err != nil {
		c.logger.Debug("Path not found, skipping.", "path", abs)
		return job{}, false
	}
	if !info.Mode().IsRegular() {
		c.logger.Debug("Not a regular file, skipping.", "path", abs)
		return job{}, false
	}

	ext := filepath.Ext(abs)
	switch {
	case !c.opts.Revert && strings.EqualFold(ext, extICS):
		return job{input: abs, output: strings.TrimSuffix(abs, ext) + extJSON}, true
	case c.opts.Revert && strings.EqualFold(ext, extJSON):
		return job{input: abs, output: strings.TrimSuffix(abs, ext) + extICS, revert: true}, true
	default:
		c.logger.Debug("Extension does not match direction, skipping.", "path", abs, "revert", c.opts.Revert)
		return job{}, false
	}
}

// convertFile handles a single file end to end.
func (c *Converter) convertFile(ctx context.Context, j job) (res FileResult) {
	res = FileResult{Input: j.input, Output: j.output}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		res.Error = err.Error()
		return res
	}

	data, err := os.ReadFile(j.input)
	if err != nil {
		c.logger.Error("Failed to read input", "path", j.input, "error", err)
		res.Error = fmt.Errorf("failed to read input: %w", err).Error()
		return res
	}

	var out []byte
	var diags icsdoc.Diagnostics
	if j.revert {
		out, diags, err = c.revert(j.input, data)
	} else {
		out, diags, err = c.convert(j.input, data)
	}
	res.Diagnostics = len(diags)
	if err == nil && c.opts.Strict && len(diags) > 0 {
		err = fmt.Errorf("%w: %w", ErrStrict, diags.Err())
	}
	if err != nil {
		c.logger.Error("Failed to convert file", "path", j.input, "error", err)
		res.Error = err.Error()
		return res
	}

	if c.opts.DryRun {
		c.logger.Info("[DRY RUN] Would write output", "path", j.output, "bytes", len(out))
		res.OK = true
		return res
	}
	if err := os.WriteFile(j.output, out, 0644); err != nil {
		c.logger.Error("Failed to write output", "path", j.output, "error", err)
		res.Error = fmt.Errorf("failed to write output: %w", err).Error()
		return res
	}

	c.logger.Info("Converted file.", "input", j.input, "output", j.output, "diagnostics", len(diags))
	res.OK = true
	return res
}

// convert parses .ics text into an indented JSON document.
func (c *Converter) convert(path string, data []byte) ([]byte, icsdoc.Diagnostics, error) {
	parser := icsdoc.NewParser(c.grammar, icsdoc.WithReporter(icsdoc.NewLogReporter(c.logger, "path", path)))
	res := parser.Parse(string(data))
	out, err := icsdoc.MarshalIndent(res.Document)
	if err != nil {
		return nil, res.Diagnostics, fmt.Errorf("failed to encode document: %w", err)
	}
	return out, res.Diagnostics, nil
}

// revert serializes a JSON document back into .ics text.
func (c *Converter) revert(path string, data []byte) ([]byte, icsdoc.Diagnostics, error) {
	reporter := icsdoc.NewLogReporter(c.logger, "path", path)
	var decoded icsdoc.Collector
	doc, err := icsdoc.DecodeJSON(data, c.grammar, icsdoc.WithDecodeReporter(icsdoc.MultiReporter(&decoded, reporter)))
	if err != nil {
		return nil, decoded.Diagnostics, fmt.Errorf("failed to decode document: %w", err)
	}
	serializer := icsdoc.NewSerializer(c.grammar, icsdoc.WithSerializerReporter(reporter))
	var res *icsdoc.Output
	if c.opts.Wrap {
		res = serializer.SerializeCalendar(doc)
	} else {
		res = serializer.Serialize(doc)
	}
	c.logger.Debug("Serialized document.", "path", path, "bytes", len(res.Text))
	return []byte(res.Text), append(decoded.Diagnostics, res.Diagnostics...), nil
}

func newRunID() string {
	return uuid.NewString()
}
