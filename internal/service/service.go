package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MimeLyc/philby/internal/config"
	"github.com/MimeLyc/philby/internal/cycle"
	"github.com/MimeLyc/philby/internal/dispatch"
	"github.com/MimeLyc/philby/internal/httpapi"
	"github.com/MimeLyc/philby/internal/human"
	"github.com/MimeLyc/philby/internal/llm"
	"github.com/MimeLyc/philby/internal/persistence"
	"github.com/MimeLyc/philby/internal/prompt"
	"github.com/MimeLyc/philby/internal/snapshot"
	"github.com/MimeLyc/philby/internal/tools"
	"github.com/MimeLyc/philby/internal/workspace"
	"github.com/MimeLyc/philby/pkg/log"
)

// AgentService wires the workspace, audit log, tools and operator channel
// behind the operator commands.
type AgentService struct {
	cfg      config.Config
	ws       *workspace.Workspace
	store    *persistence.SQLiteStore
	registry *tools.Registry
	operator human.Channel
}

// NewAgentService opens the configured workspace and its audit log
func NewAgentService(cfg config.Config, operator human.Channel) (*AgentService, error) {
	ws, err := workspace.Open(cfg.Agent.Workspace)
	if err != nil {
		return nil, WrapError(err, ErrWorkspace, "open workspace")
	}

	store, err := persistence.NewSQLiteStore(ws.DBPath())
	if err != nil {
		return nil, WrapError(err, ErrPersistence, "open audit log")
	}

	registry, err := tools.NewBuiltinRegistry(tools.BuiltinOptions{
		Root:           ws.Root(),
		CommandTimeout: time.Duration(cfg.Agent.CommandTimeout) * time.Second,
		SearchAPIKey:   cfg.Search.APIKey,
		SearchAPIURL:   cfg.Search.APIURL,
	})
	if err != nil {
		_ = store.Close()
		return nil, WrapError(err, ErrConfig, "register tools")
	}

	return &AgentService{
		cfg:      cfg,
		ws:       ws,
		store:    store,
		registry: registry,
		operator: operator,
	}, nil
}

func (s *AgentService) Close() error {
	return s.store.Close()
}

func (s *AgentService) Workspace() *workspace.Workspace { return s.ws }

func (s *AgentService) Registry() *tools.Registry { return s.registry }

// StatusServer exposes the workspace state and audit log over HTTP
func (s *AgentService) StatusServer() *httpapi.Server {
	return httpapi.NewServer(s.ws, s.store, httpapi.WithSettingsFile(s.cfg.System.SettingsFile))
}

// RunOptions override the configured loop settings for one run
type RunOptions struct {
	// Mode overrides PHILBY_CONTINUE_MODE when set
	Mode cycle.ContinueMode
	// MaxCycles overrides PHILBY_MAX_CYCLES when not nil
	MaxCycles *int
	// Script replays canned model replies from a file instead of calling the LLM
	Script string
	// Model replaces the configured model entirely, used by tests
	Model cycle.Model
}

// Run executes the decision loop once to a halt. A fatal halt is returned
// both in the Result and as a *PhilbyError.
func (s *AgentService) Run(ctx context.Context, opts RunOptions) (cycle.Result, error) {
	ctrl, err := s.controller(ctx, opts)
	if err != nil {
		return cycle.Result{}, err
	}

	lock, err := s.ws.Lock()
	if err != nil {
		if errors.Is(err, workspace.ErrLocked) {
			return cycle.Result{}, WrapError(err, ErrLocked, "workspace is busy")
		}
		return cycle.Result{}, WrapError(err, ErrWorkspace, "lock workspace")
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn("Could not release workspace lock: %v", err)
		}
	}()

	task, err := s.ws.Task()
	if err != nil {
		return cycle.Result{}, WrapError(err, ErrWorkspace, "read task")
	}

	run := &persistence.Run{Task: task, ContinueMode: string(ctrl.Mode)}
	if err := s.store.StartRun(ctx, run); err != nil {
		log.Warn("Could not record run start: %v", err)
	}
	ctrl.RunID = run.ID

	res, err := ctrl.Run(ctx)
	if err != nil {
		return cycle.Result{}, WrapError(err, ErrWorkspace, "start run")
	}

	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}
	if run.ID != "" {
		if err := s.store.FinishRun(context.WithoutCancel(ctx), run.ID, res.Reason.String(), res.Cycles, errText); err != nil {
			log.Warn("Could not record run end: %v", err)
		}
	}
	return res, HaltError(res)
}

func (s *AgentService) controller(ctx context.Context, opts RunOptions) (*cycle.Controller, error) {
	mode := opts.Mode
	if mode == "" {
		parsed, err := cycle.ParseContinueMode(s.cfg.Agent.ContinueMode)
		if err != nil {
			return nil, WrapError(err, ErrConfig, "continue mode")
		}
		mode = parsed
	}
	maxCycles := s.cfg.Agent.MaxCycles
	if opts.MaxCycles != nil {
		maxCycles = *opts.MaxCycles
	}
	if maxCycles < 0 {
		return nil, NewError(ErrValidation, "max cycles must not be negative")
	}

	model, err := s.model(opts)
	if err != nil {
		return nil, err
	}

	builder := prompt.NewBuilder(s.registry, s.cfg.Agent.HistoryTurns)
	if path := s.cfg.Agent.SystemPromptFile; path != "" {
		if builder.SystemPrompt, err = prompt.LoadSystemPrompt(path); err != nil {
			return nil, WrapError(err, ErrConfig, "system prompt")
		}
	}

	dispatcher := dispatch.New(s.registry, s.operator)
	if s.cfg.Agent.MaxOutcomeBytes > 0 {
		dispatcher.MaxOutcomeBytes = s.cfg.Agent.MaxOutcomeBytes
	}

	var snap snapshot.Snapshotter = snapshot.Noop{}
	if s.cfg.Agent.Snapshot {
		git, err := snapshot.NewGit(ctx, s.ws.Root())
		if err != nil {
			log.Warn("Snapshots disabled: %v", err)
		} else {
			snap = git
		}
	}

	return &cycle.Controller{
		Workspace:   s.ws,
		Model:       model,
		Prompt:      builder,
		Dispatcher:  dispatcher,
		Store:       s.store,
		Snapshotter: snap,
		Confirmer:   s.operator,
		Mode:        mode,
		MaxCycles:   maxCycles,
	}, nil
}

func (s *AgentService) model(opts RunOptions) (cycle.Model, error) {
	if opts.Model != nil {
		return opts.Model, nil
	}
	if opts.Script != "" {
		scripted, err := llm.LoadScript(opts.Script)
		if err != nil {
			return nil, WrapError(err, ErrConfig, "load dry-run script")
		}
		log.Info("Dry run: replaying %d scripted replies from %s", scripted.Remaining(), opts.Script)
		return scripted, nil
	}

	if err := s.cfg.RequireLLM(); err != nil {
		return nil, WrapError(err, ErrConfig, "llm")
	}
	client, err := llm.NewClient(&llm.Config{
		APIKey:      s.cfg.LLM.APIKey,
		APIURL:      s.cfg.LLM.APIURL,
		Model:       s.cfg.LLM.Model,
		MaxTokens:   s.cfg.LLM.MaxTokens,
		Temperature: s.cfg.LLM.Temperature,
		Timeout:     s.cfg.LLM.Timeout,
		SiteURL:     s.cfg.LLM.SiteURL,
		AppName:     s.cfg.LLM.AppName,
	})
	if err != nil {
		return nil, WrapError(err, ErrConfig, "create LLM client")
	}
	log.Info("Using model %s at %s", client.Model(), s.cfg.LLM.APIURL)
	return client, nil
}

// StartTask replaces the task and resets the cycle state
func (s *AgentService) StartTask(task string) error {
	if err := s.ws.StartTask(task); err != nil {
		return WrapError(err, ErrValidation, "start task")
	}
	log.Info("New task set in %s", s.ws.Root())
	return nil
}

// SetPurpose replaces the standing purpose; blank clears it
func (s *AgentService) SetPurpose(purpose string) error {
	if err := s.ws.SetPurpose(purpose); err != nil {
		return WrapError(err, ErrWorkspace, "set purpose")
	}
	return nil
}

// RequestStop drops the termination marker picked up after the current cycle
func (s *AgentService) RequestStop() error {
	if err := s.ws.RequestStop(); err != nil {
		return WrapError(err, ErrWorkspace, "request stop")
	}
	return nil
}

// History returns the last n audit entries, oldest first
func (s *AgentService) History(ctx context.Context, n int) ([]persistence.CycleEntry, error) {
	entries, err := s.store.RecentCycles(ctx, n)
	if err != nil {
		return nil, WrapError(err, ErrPersistence, "read history")
	}
	return entries, nil
}

// Runs returns the last n runs, newest first
func (s *AgentService) Runs(ctx context.Context, n int) ([]persistence.Run, error) {
	runs, err := s.store.RecentRuns(ctx, n)
	if err != nil {
		return nil, WrapError(err, ErrPersistence, "read runs")
	}
	return runs, nil
}

// Describe summarises the workspace for the status line of `philby history`
func (s *AgentService) Describe() string {
	task, err := s.ws.Task()
	if err != nil {
		task = "(none)"
	}
	return fmt.Sprintf("workspace %s, task: %s, stop requested: %t", s.ws.Root(), firstLine(task), s.ws.StopRequested())
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
