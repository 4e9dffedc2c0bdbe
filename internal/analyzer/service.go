package analyzer

import (
	"context"
	"unicode/utf8"

	"github.com/olegiv/bugfixer-ai-go/internal/buildlog"
	"github.com/olegiv/bugfixer-ai-go/internal/diff"
	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
	"github.com/olegiv/bugfixer-ai-go/internal/logging"
	"github.com/olegiv/bugfixer-ai-go/internal/prompt"
)

// Report statuses.
const (
	StatusRetrieved = "retrieved"
	StatusAnalyzed  = "analyzed"
	StatusNoData    = "no_data"
)

// LogReport is the result of JenkinsLogs.
type LogReport struct {
	JobName     string   `json:"job_name"`
	BuildNumber string   `json:"build_number"`
	ErrorLines  []string `json:"error_lines"`
	Status      string   `json:"status"`
}

// DiffReport is one chunk of a commit's rendered diff.
type DiffReport struct {
	Diff      string `json:"diff"`
	Chunk     int    `json:"chunk"`
	Total     int    `json:"total"`
	IsLast    bool   `json:"is_last"`
	FileCount int    `json:"file_count"`
	Status    string `json:"status"`
}

// Analysis is the failure report built from caller-supplied logs and diff.
// FormattedPrompt is empty when neither input carried anything to analyze.
type Analysis struct {
	FormattedPrompt string `json:"formatted_prompt"`
	ErrorCount      int    `json:"error_count"`
	FileCount       int    `json:"file_count"`
	Chunk           int    `json:"chunk"`
	Total           int    `json:"total"`
	IsLast          bool   `json:"is_last"`
	EstimatedTokens int    `json:"estimated_tokens"`
	Status          string `json:"status"`
}

// Options configures a Service. Nil collaborators fall back to defaults
// where one exists; Logs and Diffs are required only by the operations
// that fetch.
type Options struct {
	Logs            BuildLogSource
	Diffs           DiffSource
	Filter          LogFilter
	Chunker         *diff.Chunker
	Prompts         *prompt.Builder
	MaxLinesPerFile int
	Logger          *logging.SecureLogger
}

// Service runs the analyzer operations. It holds no per-request state.
type Service struct {
	logs            BuildLogSource
	diffs           DiffSource
	filter          LogFilter
	chunker         *diff.Chunker
	prompts         *prompt.Builder
	maxLinesPerFile int
	log             *logging.SecureLogger
}

// New creates a Service.
func New(opts Options) *Service {
	s := &Service{
		logs:            opts.Logs,
		diffs:           opts.Diffs,
		filter:          opts.Filter,
		chunker:         opts.Chunker,
		prompts:         opts.Prompts,
		maxLinesPerFile: opts.MaxLinesPerFile,
		log:             opts.Logger,
	}
	if s.filter == nil {
		s.filter = buildlog.NewFilter(nil)
	}
	if s.chunker == nil {
		s.chunker = diff.NewChunker(diff.DefaultMaxChars)
	}
	if s.prompts == nil {
		s.prompts = prompt.NewBuilder("")
	}
	if s.maxLinesPerFile <= 0 {
		s.maxLinesPerFile = diff.DefaultMaxLinesPerFile
		if s.diffs != nil {
			s.maxLinesPerFile = s.diffs.MaxLinesPerFile()
		}
	}
	if s.log == nil {
		s.log = logging.Nop()
	}
	return s
}

// JenkinsLogs fetches a build's console output and keeps its error lines.
func (s *Service) JenkinsLogs(ctx context.Context, jobName, buildNumber string) (*LogReport, error) {
	if s.logs == nil {
		return nil, internalerrors.Config("analyzer.jenkins_logs", "JENKINS_URL is not configured")
	}

	s.log.Info().Str("job", jobName).Str("build", buildNumber).Msg("Fetching Jenkins console log")

	raw, err := s.logs.ConsoleText(ctx, jobName, buildNumber)
	if err != nil {
		return nil, err
	}

	lines := s.filter.ErrorLines(raw)
	s.log.Info().Int("error_lines", len(lines)).Msg("Error lines detected")

	return &LogReport{
		JobName:     jobName,
		BuildNumber: buildNumber,
		ErrorLines:  lines,
		Status:      StatusRetrieved,
	}, nil
}

// DiffPush fetches a commit and returns chunk chunkIndex of its rendered diff.
func (s *Service) DiffPush(ctx context.Context, owner, repo, sha string, chunkIndex int) (*DiffReport, error) {
	if chunkIndex < 0 {
		return nil, internalerrors.Range("analyzer.diff_push", "chunk_index %d must not be negative", chunkIndex)
	}
	if s.diffs == nil {
		return nil, internalerrors.Config("analyzer.diff_push", "GITHUB_API_URL is not configured")
	}

	s.log.Info().Str("repo", owner+"/"+repo).Str("commit", diff.ShortSHA(sha)).Int("chunk", chunkIndex).
		Msg("Fetching commit diff")

	patches, err := s.diffs.FetchDiff(ctx, owner, repo, sha)
	if err != nil {
		return nil, err
	}

	chunk, err := s.chunker.Chunk(diff.Render(patches), chunkIndex)
	if err != nil {
		return nil, err
	}
	if chunk.Total > 0 {
		s.log.Info().Int("chunk", chunk.Index+1).Int("total", chunk.Total).Int("chars", utf8.RuneCountInString(chunk.Text)).
			Msg("Diff chunk selected")
	}

	return &DiffReport{
		Diff:      chunk.Text,
		Chunk:     chunk.Index,
		Total:     chunk.Total,
		IsLast:    chunk.IsLast,
		FileCount: len(patches),
		Status:    StatusRetrieved,
	}, nil
}

// AnalyzeBuildFailure filters rawLogs, extracts the patches of diffJSON,
// selects chunk chunkIndex and formats the failure report.
func (s *Service) AnalyzeBuildFailure(rawLogs, diffJSON string, chunkIndex int) (*Analysis, error) {
	if chunkIndex < 0 {
		return nil, internalerrors.Range("analyzer.analyze", "chunk_index %d must not be negative", chunkIndex)
	}

	files, err := diff.ParseCommitJSON(diffJSON)
	if err != nil {
		return nil, err
	}
	patches := diff.ExtractPatches(files, s.maxLinesPerFile)
	lines := s.filter.ErrorLines(rawLogs)

	chunk, err := s.chunker.Chunk(diff.Render(patches), chunkIndex)
	if err != nil {
		return nil, err
	}

	analysis := &Analysis{
		ErrorCount: len(lines),
		FileCount:  len(patches),
		Chunk:      chunk.Index,
		Total:      chunk.Total,
		IsLast:     chunk.IsLast,
		Status:     StatusNoData,
	}
	if len(lines) == 0 && len(patches) == 0 {
		s.log.Info().Msg("Nothing to analyze: no error lines and no diff")
		return analysis, nil
	}

	analysis.FormattedPrompt = s.prompts.FormatChunk(lines, chunk, len(lines), len(patches))
	analysis.EstimatedTokens = EstimateTokens(analysis.FormattedPrompt)
	analysis.Status = StatusAnalyzed

	s.log.Info().
		Int("error_lines", analysis.ErrorCount).
		Int("files", analysis.FileCount).
		Int("estimated_tokens", analysis.EstimatedTokens).
		Msg("Failure report formatted")

	return analysis, nil
}
