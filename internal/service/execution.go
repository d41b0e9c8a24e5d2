package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/config"
	"github.com/sakif/codecraft/internal/entitlement"
	"github.com/sakif/codecraft/internal/executor"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
)

// NoLanguage is reported as the favourite language when there is nothing
// to rank.
const NoLanguage = "N/A"

// RecordInput describes a run the client already performed.
type RecordInput struct {
	Language string
	Code     string
	Output   *string
	Error    *string
}

// RunResult is what Run hands back: the stored record and the raw sandbox
// result it was derived from.
type RunResult struct {
	Execution *model.Execution         `json:"execution"`
	Result    *executor.ExecutionResult `json:"result"`
}

// ExecutionService gates code execution on the caller's tier and keeps the
// append-only execution history.
type ExecutionService struct {
	executions repository.ExecutionRepository
	users      repository.UserRepository
	stars      repository.StarRepository
	snippets   repository.SnippetRepository
	policy     entitlement.Policy
	languages  *config.Catalogue
	sandbox    executor.Executor
	logger     *slog.Logger
	now        func() time.Time
}

// ExecutionDeps groups the collaborators of ExecutionService.
type ExecutionDeps struct {
	Executions repository.ExecutionRepository
	Users      repository.UserRepository
	Stars      repository.StarRepository
	Snippets   repository.SnippetRepository
	Policy     entitlement.Policy
	Languages  *config.Catalogue
	// Sandbox may be nil; Run then reports the sandbox as unavailable.
	Sandbox executor.Executor
}

func NewExecutionService(deps ExecutionDeps, logger *slog.Logger) *ExecutionService {
	return &ExecutionService{
		executions: deps.Executions,
		users:      deps.Users,
		stars:      deps.Stars,
		snippets:   deps.Snippets,
		policy:     deps.Policy,
		languages:  deps.Languages,
		sandbox:    deps.Sandbox,
		logger:     logger,
		now:        time.Now,
	}
}

// Record appends one execution for caller after checking the caller may
// use the language. The tier is always read from the store, never taken
// from the client.
func (s *ExecutionService) Record(ctx context.Context, caller string, in RecordInput) (*model.Execution, error) {
	user, language, err := s.authorize(ctx, caller, in.Language, in.Code)
	if err != nil {
		return nil, err
	}
	return s.appendRecord(ctx, user, language, in)
}

func (s *ExecutionService) appendRecord(ctx context.Context, user *model.User, language string, in RecordInput) (*model.Execution, error) {
	caller := user.Identity
	exec := &model.Execution{
		OwnerIdentity: user.Identity,
		Language:      language,
		Code:          in.Code,
		Output:        in.Output,
		Error:         in.Error,
	}
	if err := s.executions.CreateExecution(ctx, exec); err != nil {
		s.logger.Error("failed to record execution",
			slog.String("owner", caller),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("recording execution: %w", err)
	}

	s.logger.Info("execution recorded",
		slog.String("id", exec.ID),
		slog.String("owner", caller),
		slog.String("language", language),
		slog.Bool("failed", exec.Error != nil),
	)
	return exec, nil
}

// Run executes code in the sandbox and records the outcome.
//
// The entitlement check happens before the sandbox is contacted, so a
// free-tier user never spends sandbox time on a pro language. A sandbox
// that cannot be reached yields apperror.ErrUnavailable and no record.
func (s *ExecutionService) Run(ctx context.Context, caller, language, code string) (*RunResult, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	lang, ok := s.languages.Lookup(language)
	if !ok {
		return nil, apperror.ValidationFailed("language",
			fmt.Sprintf("%q is not a supported language", language))
	}

	user, language, err := s.authorize(ctx, caller, language, code)
	if err != nil {
		return nil, err
	}
	if s.sandbox == nil {
		return nil, apperror.Unavailable("sandbox", errors.New("no sandbox configured"))
	}

	result, err := s.sandbox.Execute(ctx, executor.ExecutionRequest{
		Language: lang.Runtime.Language,
		Version:  lang.Runtime.Version,
		Code:     code,
	})
	if err != nil {
		if errors.Is(err, apperror.ErrUnavailable) || errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		return nil, apperror.Unavailable("sandbox", err)
	}

	in := RecordInput{Language: language, Code: code}
	output, errText := result.Outcome()
	if errText != "" {
		in.Error = &errText
	}
	if output != "" {
		in.Output = &output
	}

	exec, err := s.appendRecord(ctx, user, language, in)
	if err != nil {
		return nil, err
	}
	return &RunResult{Execution: exec, Result: result}, nil
}

// authorize runs the checks shared by Record and Run and returns the
// caller's record and the normalised language tag.
func (s *ExecutionService) authorize(ctx context.Context, caller, language, code string) (*model.User, string, error) {
	if caller == "" {
		return nil, "", apperror.Unauthenticated()
	}
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return nil, "", apperror.ValidationFailed("language", "language is required")
	}
	if len(code) > MaxCodeLength {
		return nil, "", apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}

	user, err := s.users.GetUserByIdentity(ctx, caller)
	if err != nil {
		return nil, "", err
	}
	if err := s.policy.Check(user, language); err != nil {
		s.logger.Info("execution denied by entitlement",
			slog.String("owner", caller),
			slog.String("language", language),
		)
		return nil, "", err
	}
	return user, language, nil
}

// List pages the caller's executions newest first.
func (s *ExecutionService) List(ctx context.Context, caller string, limit, offset int) ([]model.Execution, error) {
	if caller == "" {
		return nil, apperror.Unauthenticated()
	}
	limit, offset = clampPage(limit, offset)
	return s.executions.ListExecutions(ctx, caller, repository.ListOptions{Limit: limit, Offset: offset})
}

// Stats recomputes a user's statistics from the full history on every call.
// An identity with no history gets zero counts and "N/A" favourites.
func (s *ExecutionService) Stats(ctx context.Context, identity string) (*model.UserStats, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, apperror.ValidationFailed("identity", "identity is required")
	}

	execs, err := s.executions.AllExecutions(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("loading executions: %w", err)
	}

	ids, err := s.stars.StarredSnippetIDs(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("loading starred ids: %w", err)
	}
	starred, err := s.snippets.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading starred snippets: %w", err)
	}

	return computeStats(execs, starred, s.now()), nil
}

// computeStats is the pure part of Stats. execs must be in creation order:
// ties for favourite go to the language seen first.
func computeStats(execs []model.Execution, starred []model.Snippet, now time.Time) *model.UserStats {
	stats := &model.UserStats{
		TotalExecutions: len(execs),
		Languages:       []string{},
		LanguageStats:   map[string]int{},
		TotalStarred:    len(starred),
	}

	cutoff := now.Add(-24 * time.Hour)
	langs := make([]string, 0, len(execs))
	for _, e := range execs {
		langs = append(langs, e.Language)
		if e.CreatedAt.After(cutoff) {
			stats.Last24Hours++
		}
	}
	stats.FavoriteLanguage, stats.Languages, stats.LanguageStats = rankLanguages(langs)
	stats.LanguagesCount = len(stats.Languages)

	starredLangs := make([]string, 0, len(starred))
	for _, sn := range starred {
		starredLangs = append(starredLangs, sn.Language)
	}
	stats.MostStarredLanguage, _, _ = rankLanguages(starredLangs)

	return stats
}

// rankLanguages counts tags and picks the most frequent one. Only a strictly
// higher count displaces the current leader.
func rankLanguages(tags []string) (top string, distinct []string, counts map[string]int) {
	counts = make(map[string]int)
	distinct = []string{}
	for _, t := range tags {
		if counts[t] == 0 {
			distinct = append(distinct, t)
		}
		counts[t]++
	}

	top = NoLanguage
	best := 0
	for _, t := range distinct {
		if counts[t] > best {
			top, best = t, counts[t]
		}
	}
	return top, distinct, counts
}
