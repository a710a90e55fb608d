package rostersync

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/roster"
	"github.com/trezcool/ushauri/core/syncrun"
	"github.com/trezcool/ushauri/core/user"
)

const (
	DefaultSecretName = "MYJKKN_API_KEY"
	DefaultPageSize   = 100

	// entity type of the errors not scoped to an entity kind
	runEntityType = "sync"
)

var ErrNoKinds = errors.New("no entity kind to sync")

// SecretStore provides the roster API key.
type SecretStore interface {
	Secret(ctx context.Context, name string) (string, error)
}

// Metrics observes sync runs.
type Metrics interface {
	PageFetched(kind roster.Kind, err error, elapsed time.Duration)
	RecordsWritten(kind roster.Kind, res BatchResult)
	RunFinished(status syncrun.Status, elapsed time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) PageFetched(roster.Kind, error, time.Duration) {}
func (nopMetrics) RecordsWritten(roster.Kind, BatchResult) {}
func (nopMetrics) RunFinished(syncrun.Status, time.Duration) {}

type Deps struct {
	Secrets SecretStore
	// Connect binds the API key of the run to the roster source.
	Connect func(apiKey string) roster.Source
	Roster  roster.Repository
	Users   user.Repository
	Runs    syncrun.Repository
	Mailer  core.EmailService // optional: no welcome emails when nil
	Logger  core.Logger
	Metrics Metrics // optional
	Clock   core.Clock

	Policy     RetryPolicy
	PageSize   int
	SecretName string
}

// Options of one run.
type Options struct {
	SyncType    string
	Kinds       []roster.Kind // synced in roster.SyncOrder regardless of this order
	TriggeredBy string
}

// KindResult is the outcome of one entity kind.
type KindResult struct {
	BatchResult
	Skipped int   // inactive upstream records
	Err     error // kind-level fatal error
}

// Result of a run: the persisted ledger entry & the per-kind details.
type Result struct {
	Run   syncrun.SyncRun
	Kinds map[roster.Kind]*KindResult
}

// Persons sums up the staff & student results.
func (r Result) Persons() BatchResult {
	var res BatchResult
	for _, kind := range []roster.Kind{roster.KindStaff, roster.KindStudent} {
		if kr, ok := r.Kinds[kind]; ok {
			res.add(kr.BatchResult)
		}
	}
	return res
}

type (
	Service interface {
		// Run executes one sync run. The error is non-nil only when the run could not be recorded in the ledger:
		// sync failures end up in the run status & errors.
		Run(ctx context.Context, opts Options) (Result, error)
	}

	service struct {
		Deps
		sleep func(ctx context.Context, d time.Duration) error // mockable
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Clock == nil {
		deps.Clock = core.RealClock{}
	}
	if deps.PageSize <= 0 {
		deps.PageSize = DefaultPageSize
	}
	if deps.SecretName == "" {
		deps.SecretName = DefaultSecretName
	}
	if deps.Policy.MaxAttempts <= 0 {
		deps.Policy = DefaultRetryPolicy()
	}
	return &service{Deps: deps, sleep: sleepCtx}
}

func (svc *service) Run(ctx context.Context, opts Options) (Result, error) {
	kinds := orderedKinds(opts.Kinds)
	if len(kinds) == 0 {
		return Result{}, ErrNoKinds
	}

	start := svc.Clock.Now()
	run, err := svc.Runs.CreateRun(ctx, syncrun.SyncRun{
		ID:          core.NewID(),
		SyncType:    opts.SyncType,
		Status:      syncrun.StatusInProgress,
		Errors:      []syncrun.ErrorEntry{},
		TriggeredBy: opts.TriggeredBy,
		StartedAt:   start,
	})
	if err != nil {
		return Result{}, errors.Wrap(err, "creating sync run")
	}
	svc.Logger.Info("sync run started", map[string]interface{}{"run": run.ID, "type": run.SyncType, "kinds": kinds})

	res := Result{Run: run, Kinds: make(map[roster.Kind]*KindResult, len(kinds))}
	fatal := svc.execute(ctx, &res, kinds)

	for _, kind := range kinds {
		kr, ok := res.Kinds[kind]
		if !ok {
			continue
		}
		res.Run.ProcessedCount += kr.Processed()
		res.Run.CreatedCount += kr.Created
		res.Run.UpdatedCount += kr.Updated
	}
	res.Run.Finalize(fatal, svc.Clock.Now())

	// the ledger is written with a fresh context: a cancelled run is still finalized
	finished, err := svc.Runs.FinishRun(context.Background(), res.Run)
	if err != nil {
		if errors.Cause(err) == syncrun.ErrRunFinalized {
			// someone else wrote this run's ledger row
			err = core.NewShutdownError("sync run " + res.Run.ID + " was finalized twice")
		}
		return res, errors.Wrap(err, "finishing sync run")
	}
	res.Run = finished
	svc.Metrics.RunFinished(finished.Status, finished.CompletedAt.Sub(start))

	logArgs := map[string]interface{}{
		"run":       finished.ID,
		"status":    finished.Status,
		"processed": finished.ProcessedCount,
		"created":   finished.CreatedCount,
		"updated":   finished.UpdatedCount,
		"errors":    len(finished.Errors),
	}
	if finished.Status == syncrun.StatusFailed {
		svc.Logger.Error("sync run failed", logArgs)
	} else {
		svc.Logger.Info("sync run finished", logArgs)
	}
	return res, nil
}

// execute runs the entity kinds in order, reporting whether a fatal error occurred.
func (svc *service) execute(ctx context.Context, res *Result, kinds []roster.Kind) (fatal bool) {
	apiKey, err := svc.Secrets.Secret(ctx, svc.SecretName)
	if err != nil {
		res.addError(runEntityType, "", errors.Wrapf(err, "retrieving secret %s", svc.SecretName))
		return true
	}
	src := svc.Connect(apiKey)

	var writer *Writer
	for _, kind := range kinds {
		if writer == nil || (kind.IsPerson() && writer.prov == nil) {
			var prov Provisioner
			if kind.IsPerson() {
				// loaded once per run, right before the first person kind
				p, err := user.NewProvisioner(ctx, svc.Users, svc.Mailer, svc.Clock)
				if err != nil {
					res.addError(runEntityType, "", err)
					return true
				}
				prov = p
			}
			writer = NewWriter(svc.Roster, prov, svc.Clock)
		}

		kr := svc.syncKind(ctx, src, writer, kind)
		res.Kinds[kind] = kr
		for _, f := range kr.Failed {
			res.addError(string(kind), f.Record.Key(), f.Err)
		}
		if kr.Err == nil {
			continue
		}

		fatal = true
		res.addError(string(kind), "", kr.Err)
		if roster.ClassOf(kr.Err) == roster.ClassAuthorization || ctx.Err() != nil {
			svc.Logger.Error("sync run aborted", kr.Err, map[string]interface{}{"run": res.Run.ID, "kind": kind})
			return true
		}
		svc.Logger.Warn("entity kind skipped", kr.Err, map[string]interface{}{"run": res.Run.ID, "kind": kind})
	}
	return fatal
}

// syncKind fetches, normalizes & writes all pages of `kind`, sequentially.
func (svc *service) syncKind(ctx context.Context, src roster.Source, writer *Writer, kind roster.Kind) *KindResult {
	kr := new(KindResult)
	for pageNum := 1; ; pageNum++ {
		page, err := svc.fetchPage(ctx, src, kind, pageNum)
		if err != nil {
			kr.Err = errors.Wrapf(err, "fetching %s page %d", kind, pageNum)
			return kr
		}

		records := make([]roster.Record, 0, len(page.Records))
		for _, raw := range page.Records {
			rec, active := roster.Normalize(kind, raw)
			if !active {
				kr.Skipped++
				continue
			}
			records = append(records, rec)
		}
		batch := writer.Upsert(ctx, kind, records)
		svc.Metrics.RecordsWritten(kind, batch)
		kr.add(batch)

		if !page.HasMorePages {
			return kr
		}
	}
}

// fetchPage retries transient failures of one page fetch according to the retry policy.
func (svc *service) fetchPage(ctx context.Context, src roster.Source, kind roster.Kind, pageNum int) (roster.Page, error) {
	for attempt := 1; ; attempt++ {
		start := time.Now()
		page, err := src.FetchPage(ctx, kind, pageNum, svc.PageSize)
		svc.Metrics.PageFetched(kind, err, time.Since(start))
		if err == nil {
			return page, nil
		}
		if !roster.IsRetryable(err) {
			return roster.Page{}, err
		}

		decision := svc.Policy.Decide(attempt)
		if !decision.Retry {
			return roster.Page{}, errors.Wrapf(err, "giving up after %d attempts", attempt)
		}
		svc.Logger.Warn("retrying page fetch", err, map[string]interface{}{"kind": kind, "page": pageNum, "attempt": attempt, "delay": decision.Delay})
		if err = svc.sleep(ctx, decision.Delay); err != nil {
			return roster.Page{}, err
		}
	}
}

func (r *Result) addError(entityType, externalID string, err error) {
	r.Run.Errors = append(r.Run.Errors, syncrun.ErrorEntry{EntityType: entityType, ExternalID: externalID, Message: err.Error()})
}

// orderedKinds dedups `kinds` & sorts them in roster.SyncOrder.
func orderedKinds(kinds []roster.Kind) []roster.Kind {
	ordered := make([]roster.Kind, 0, len(roster.SyncOrder))
	for _, k := range roster.SyncOrder {
		for _, want := range kinds {
			if k == want {
				ordered = append(ordered, k)
				break
			}
		}
	}
	return ordered
}
