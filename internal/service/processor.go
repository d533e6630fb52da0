package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/evekb/killfeed/internal/domain/job"
	"github.com/evekb/killfeed/internal/domain/model"
	"github.com/evekb/killfeed/internal/ports"
	"github.com/evekb/killfeed/internal/queue"
)

// ProcessorOptions groups the dependencies of the Processor.
type ProcessorOptions struct {
	Queue     *queue.Queue
	Accounts  ports.AccountStore
	Killmails ports.KillmailStore
	Entities  ports.EntityStore
	Tokens    ports.TokenService
	Source    ports.KillmailSource

	// RefreshWindow limits refresh jobs to accounts whose token expires
	// within the window. Zero or negative refreshes every account.
	RefreshWindow time.Duration

	Logger *slog.Logger
}

// Processor is the single consumer of the job queue. It dequeues one job at
// a time in strict FIFO order and dispatches it by kind. A failure inside one
// job's handling never prevents subsequent jobs from being processed.
type Processor struct {
	queue         *queue.Queue
	accounts      ports.AccountStore
	killmails     ports.KillmailStore
	entities      ports.EntityStore
	tokens        ports.TokenService
	source        ports.KillmailSource
	refreshWindow time.Duration
	logger        *slog.Logger
}

// NewProcessor constructs a Processor.
func NewProcessor(opts ProcessorOptions) *Processor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		queue:         opts.Queue,
		accounts:      opts.Accounts,
		killmails:     opts.Killmails,
		entities:      opts.Entities,
		tokens:        opts.Tokens,
		source:        opts.Source,
		refreshWindow: opts.RefreshWindow,
		logger:        logger,
	}
}

// Run consumes jobs until a stop job arrives or the context is canceled.
// Shutdown via the stop sentinel guarantees any job already dequeued
// finishes before the loop exits.
func (p *Processor) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "processor started", "queue_capacity", p.queue.Cap())
	for {
		j, ok := p.queue.Dequeue(ctx)
		if !ok {
			return ctx.Err()
		}
		if j.Kind == job.KindStop {
			p.logger.InfoContext(ctx, "processor stopping")
			return nil
		}
		p.dispatch(ctx, j)
	}
}

// dispatch routes a job to its handler. Handlers log their own failures and
// never return errors; per-job isolation is absolute.
func (p *Processor) dispatch(ctx context.Context, j job.Job) {
	switch j.Kind {
	case job.KindRefresh:
		p.handleRefresh(ctx)
	case job.KindFetchKillmails:
		p.handleFetchKillmails(ctx)
	case job.KindResolveKillmails:
		p.handleResolveKillmails(ctx)
	case job.KindSaveAccount:
		p.handleSaveAccount(ctx, *j.Account)
	case job.KindSaveKillmail:
		p.handleSaveKillmail(ctx, *j.Killmail)
	case job.KindSaveEntity:
		p.handleSaveEntity(ctx, *j.Entity)
	case job.KindStop:
		// handled by Run
	default:
		p.logger.WarnContext(ctx, "unknown job kind", "kind", j.Kind)
	}
}

func (p *Processor) handleRefresh(ctx context.Context) {
	var (
		accounts []model.Account
		err      error
	)
	if p.refreshWindow > 0 {
		accounts, err = p.accounts.ListExpiringWithin(ctx, p.refreshWindow)
	} else {
		accounts, err = p.accounts.ListAll(ctx)
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "query accounts for refresh failed", "error", err)
		return
	}
	if len(accounts) == 0 {
		return
	}
	p.tokens.Refresh(ctx, accounts)
}

func (p *Processor) handleFetchKillmails(ctx context.Context) {
	accounts, err := p.accounts.ListAll(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "query accounts for killmail fetch failed", "error", err)
		return
	}

	p.logger.DebugContext(ctx, "fetching killmails", "accounts", len(accounts))

	// One task per account, all launched together. Tasks always return nil
	// so a failing account never cancels its siblings; Wait is join-all.
	var g errgroup.Group
	for _, account := range accounts {
		g.Go(func() error {
			p.fetchAccountKillmails(ctx, account)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Processor) fetchAccountKillmails(ctx context.Context, account model.Account) {
	refs, err := p.source.RecentKillmails(ctx, account)
	if err != nil {
		p.logger.ErrorContext(ctx, "fetch killmails for account failed",
			"character_id", account.CharacterID, "error", err)
		return
	}

	for _, ref := range refs {
		if enqueueErr := p.queue.Enqueue(ctx, job.SaveKillmail(ref.KillmailID, ref.KillmailHash)); enqueueErr != nil {
			p.logger.ErrorContext(ctx, "enqueue killmail save failed",
				"character_id", account.CharacterID,
				"killmail_id", ref.KillmailID,
				"error", enqueueErr)
		}
	}

	if touchErr := p.accounts.SetLastFetched(ctx, account.CharacterID, time.Now().UTC()); touchErr != nil {
		p.logger.ErrorContext(ctx, "record last fetch failed",
			"character_id", account.CharacterID, "error", touchErr)
	}
}

func (p *Processor) handleResolveKillmails(ctx context.Context) {
	pending, err := p.killmails.ListPending(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "query pending killmails failed", "error", err)
		return
	}

	p.logger.DebugContext(ctx, "resolving killmails", "pending", len(pending))

	var g errgroup.Group
	for _, ref := range pending {
		g.Go(func() error {
			p.resolveKillmail(ctx, ref)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Processor) resolveKillmail(ctx context.Context, ref model.KillmailRef) {
	doc, err := p.source.KillmailDetail(ctx, ref.KillmailID, ref.KillmailHash)
	if err != nil {
		p.logger.ErrorContext(ctx, "resolve killmail failed",
			"killmail_id", ref.KillmailID, "error", err)
		p.setKillmailStatus(ctx, ref.KillmailID, model.KillmailStatusFailed)
		return
	}

	if doc.SolarSystemID == nil {
		// Data-quality anomaly, not an error: the sentinel system entity is
		// filtered out below and the killmail still resolves.
		p.logger.WarnContext(ctx, "killmail missing solar_system_id", "killmail_id", ref.KillmailID)
	}

	entities := PersistableEntities(ExtractEntities(doc))
	p.logger.DebugContext(ctx, "entities extracted",
		"killmail_id", ref.KillmailID, "count", len(entities))

	for _, entity := range entities {
		if enqueueErr := p.queue.Enqueue(ctx, job.SaveEntity(entity)); enqueueErr != nil {
			p.logger.ErrorContext(ctx, "enqueue entity save failed",
				"killmail_id", ref.KillmailID,
				"entity_id", entity.ID,
				"error", enqueueErr)
		}
	}

	p.setKillmailStatus(ctx, ref.KillmailID, model.KillmailStatusResolved)
}

func (p *Processor) setKillmailStatus(ctx context.Context, killmailID int64, status model.KillmailStatus) {
	if _, err := p.killmails.UpdateStatus(ctx, killmailID, status); err != nil {
		p.logger.ErrorContext(ctx, "update killmail status failed",
			"killmail_id", killmailID, "status", status, "error", err)
	}
}

func (p *Processor) handleSaveAccount(ctx context.Context, account model.Account) {
	if _, err := p.accounts.Upsert(ctx, account); err != nil {
		p.logger.ErrorContext(ctx, "save account failed",
			"character_id", account.CharacterID, "error", err)
	}
}

func (p *Processor) handleSaveKillmail(ctx context.Context, ref model.KillmailRef) {
	if _, err := p.killmails.InsertIfAbsent(ctx, ref); err != nil {
		p.logger.ErrorContext(ctx, "save killmail failed",
			"killmail_id", ref.KillmailID, "error", err)
	}
}

func (p *Processor) handleSaveEntity(ctx context.Context, entity model.Entity) {
	if _, err := p.entities.InsertIfAbsent(ctx, entity); err != nil {
		p.logger.ErrorContext(ctx, "save entity failed",
			"entity_id", entity.ID, "entity_type", entity.Type, "error", err)
	}
}
