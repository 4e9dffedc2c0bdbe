// Package fixer orchestrates one fix request: it gathers the failure report
// through the analyzer tools, relays it to the completion model, and
// optionally posts the suggestion to a notification channel.
package fixer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/olegiv/bugfixer-ai-go/internal/ai"
	"github.com/olegiv/bugfixer-ai-go/internal/analyzer"
	"github.com/olegiv/bugfixer-ai-go/internal/diff"
	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
	"github.com/olegiv/bugfixer-ai-go/internal/logging"
	"github.com/olegiv/bugfixer-ai-go/internal/notification"
	"github.com/olegiv/bugfixer-ai-go/internal/prompt"
	"github.com/olegiv/bugfixer-ai-go/internal/toolserver"
)

// NoDataMessage is the correction returned when neither the logs nor the
// diff carry anything to analyze. No completion is requested in that case.
const NoDataMessage = "No data to analyze."

// ToolCaller invokes an analyzer tool and decodes its JSON result into out.
// Implemented by toolclient.Client.
type ToolCaller interface {
	Call(ctx context.Context, tool string, args map[string]any, out any) error
}

// Notifier receives every produced suggestion.
// Implemented by notification.TelegramClient.
type Notifier interface {
	Notify(ctx context.Context, s notification.Suggestion) error
}

// FixRequest carries caller-supplied build output and commit JSON.
type FixRequest struct {
	JenkinsLogs string
	DiffJSON    string
	ChunkIndex  int
}

// CommitFixRequest identifies a failed build and the commit that broke it.
type CommitFixRequest struct {
	JobName     string
	BuildNumber string
	RepoOwner   string
	RepoName    string
	CommitSHA   string
	ChunkIndex  int
}

// FixResult is the suggested correction and the diff chunk it covers.
type FixResult struct {
	Correction string
	Chunk      int
	Total      int
	IsLast     bool
	Model      string
	Stats      *ai.Stats
}

// Options configures a Fixer.
type Options struct {
	Tools     ToolCaller
	Completer ai.Completer
	Prompts   *prompt.Builder
	// Notifier is optional.
	Notifier Notifier
	// APIKeyName names the completion credential in errors, e.g. OPENROUTER_API_KEY.
	APIKeyName string
	// HasAPIKey reports whether the completion credential is configured.
	HasAPIKey bool
	Logger    *logging.SecureLogger
}

// Fixer turns failure reports into correction suggestions.
type Fixer struct {
	tools      ToolCaller
	completer  ai.Completer
	prompts    *prompt.Builder
	notifier   Notifier
	apiKeyName string
	hasAPIKey  bool
	log        *logging.SecureLogger
}

// New creates a Fixer.
func New(opts Options) *Fixer {
	f := &Fixer{
		tools:      opts.Tools,
		completer:  opts.Completer,
		prompts:    opts.Prompts,
		notifier:   opts.Notifier,
		apiKeyName: opts.APIKeyName,
		hasAPIKey:  opts.HasAPIKey,
		log:        opts.Logger,
	}
	if f.prompts == nil {
		f.prompts = prompt.NewBuilder("")
	}
	if f.apiKeyName == "" {
		f.apiKeyName = "OPENROUTER_API_KEY"
	}
	if f.log == nil {
		f.log = logging.Nop()
	}
	return f
}

// Fix analyzes caller-supplied logs and commit JSON and returns the model's
// correction.
func (f *Fixer) Fix(ctx context.Context, req FixRequest) (*FixResult, error) {
	if err := f.checkKey(); err != nil {
		return nil, err
	}

	var analysis analyzer.Analysis
	err := f.tools.Call(ctx, toolserver.ToolAnalyzeFailed, map[string]any{
		"jenkins_logs": req.JenkinsLogs,
		"diff_json":    req.DiffJSON,
		"chunk_index":  req.ChunkIndex,
	}, &analysis)
	if err != nil {
		return nil, err
	}

	result := &FixResult{
		Chunk:  analysis.Chunk,
		Total:  analysis.Total,
		IsLast: analysis.IsLast,
	}
	if analysis.FormattedPrompt == "" {
		f.log.Info().Msg("No data to analyze, skipping completion")
		result.Correction = NoDataMessage
		return result, nil
	}

	f.log.Info().Int("error_lines", analysis.ErrorCount).Int("files", analysis.FileCount).
		Int("estimated_tokens", analysis.EstimatedTokens).Msg("Failure report received")

	if err := f.complete(ctx, analysis.FormattedPrompt, result); err != nil {
		return nil, err
	}

	f.notify(ctx, notification.Suggestion{
		Source:     "caller-supplied logs",
		ErrorCount: analysis.ErrorCount,
		FileCount:  analysis.FileCount,
	}, result)

	return result, nil
}

// FixCommit fetches the build's error lines and the commit diff concurrently,
// formats the report for the requested chunk and returns the model's
// correction.
func (f *Fixer) FixCommit(ctx context.Context, req CommitFixRequest) (*FixResult, error) {
	if err := f.checkKey(); err != nil {
		return nil, err
	}
	if req.ChunkIndex < 0 {
		return nil, internalerrors.Range("fixer.commit", "chunk_index %d must not be negative", req.ChunkIndex)
	}

	var (
		logs analyzer.LogReport
		push analyzer.DiffReport
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return f.tools.Call(gctx, toolserver.ToolJenkinsLogs, map[string]any{
			"job_name":     req.JobName,
			"build_number": req.BuildNumber,
		}, &logs)
	})
	g.Go(func() error {
		return f.tools.Call(gctx, toolserver.ToolDiffPush, map[string]any{
			"repo_owner":  req.RepoOwner,
			"repo_name":   req.RepoName,
			"commit_sha":  req.CommitSHA,
			"chunk_index": req.ChunkIndex,
		}, &push)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &FixResult{
		Chunk:  push.Chunk,
		Total:  push.Total,
		IsLast: push.IsLast,
	}
	if len(logs.ErrorLines) == 0 && push.Diff == "" {
		f.log.Info().Str("job", req.JobName).Msg("No data to analyze, skipping completion")
		result.Correction = NoDataMessage
		return result, nil
	}

	chunk := diff.Chunk{Index: push.Chunk, Text: push.Diff, Total: push.Total, IsLast: push.IsLast}
	userPrompt := f.prompts.FormatChunk(logs.ErrorLines, chunk, len(logs.ErrorLines), push.FileCount)

	f.log.Info().Str("job", req.JobName).Str("build", req.BuildNumber).
		Int("error_lines", len(logs.ErrorLines)).Int("files", push.FileCount).
		Int("estimated_tokens", analyzer.EstimateTokens(userPrompt)).Msg("Failure report assembled")

	if err := f.complete(ctx, userPrompt, result); err != nil {
		return nil, err
	}

	f.notify(ctx, notification.Suggestion{
		Source:     fmt.Sprintf("%s #%s, %s/%s@%s", req.JobName, req.BuildNumber, req.RepoOwner, req.RepoName, diff.ShortSHA(req.CommitSHA)),
		ErrorCount: len(logs.ErrorLines),
		FileCount:  push.FileCount,
	}, result)

	return result, nil
}

func (f *Fixer) checkKey() error {
	if !f.hasAPIKey {
		return internalerrors.Config("fixer", "%s is not configured", f.apiKeyName)
	}
	return nil
}

// complete relays the report to the model and stores the answer in result.
func (f *Fixer) complete(ctx context.Context, userPrompt string, result *FixResult) error {
	start := time.Now()
	completion, err := f.completer.Complete(ctx, f.prompts.SystemPrompt(), userPrompt)
	if err != nil {
		f.log.Error().Str("provider", f.completer.GetProviderName()).Bool("rate_limited", ai.IsRateLimited(err)).
			Dur("elapsed", time.Since(start)).Err(err).Msg("Completion failed")
		return err
	}

	result.Correction = completion.Text
	result.Model = completion.Model
	result.Stats = completion.Stats

	event := f.log.Info().Str("provider", f.completer.GetProviderName()).Str("model", completion.Model).
		Dur("elapsed", time.Since(start))
	if completion.Stats != nil {
		event = event.Int("input_tokens", completion.Stats.InputTokens).
			Int("output_tokens", completion.Stats.OutputTokens).
			Float64("duration_seconds", completion.Stats.DurationSeconds)
	}
	event.Msg("Correction received")
	return nil
}

// notify posts the suggestion when a notifier is configured. Failures are
// logged and never returned to the caller.
func (f *Fixer) notify(ctx context.Context, s notification.Suggestion, result *FixResult) {
	if f.notifier == nil {
		return
	}

	s.Chunk = result.Chunk
	s.Total = result.Total
	s.Model = result.Model
	s.Correction = result.Correction
	if result.Stats != nil {
		s.DurationSeconds = result.Stats.DurationSeconds
		s.CostUSD = result.Stats.CostUSD
	}

	if err := f.notifier.Notify(ctx, s); err != nil {
		f.log.Warn().Err(err).Msg("Failed to send notification")
	}
}
