package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/lite-site-auditor/internal/clock/system"
	iduuid "github.com/JakeFAU/lite-site-auditor/internal/id/uuid"
	"github.com/JakeFAU/lite-site-auditor/internal/metrics"
	"github.com/JakeFAU/lite-site-auditor/internal/progress"
)

const (
	tracerName            = "github.com/JakeFAU/lite-site-auditor/internal/audit"
	defaultPersistTimeout = 10 * time.Second
	archiveContentType    = "application/json"
)

// Config controls one Auditor.
type Config struct {
	Limits         Limits
	UserAgent      string
	RespectRobots  bool
	Topic          string
	ArchivePrefix  string
	PersistTimeout time.Duration
}

// Deps are the collaborators of an Auditor. Fetcher and Prober are required;
// everything else is optional.
type Deps struct {
	Fetcher   Fetcher
	Prober    Prober
	Store     ReportStore
	Archive   BlobStore
	Publisher Publisher
	Clock     Clock
	IDs       IDGenerator
	Progress  progress.Emitter
	Tracer    trace.Tracer
	Logger    *zap.Logger
}

// Auditor runs lite audits. It holds no per-audit state and is safe for
// concurrent use; each Run owns its own crawl session.
type Auditor struct {
	cfg       Config
	fetcher   Fetcher
	prober    Prober
	store     ReportStore
	archive   BlobStore
	publisher Publisher
	clock     Clock
	ids       IDGenerator
	progress  progress.Emitter
	tracer    trace.Tracer
	logger    *zap.Logger
}

// New wires an Auditor.
func New(cfg Config, deps Deps) (*Auditor, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("audit: fetcher is required")
	}
	if deps.Prober == nil {
		return nil, errors.New("audit: prober is required")
	}
	cfg.Limits = cfg.Limits.withDefaults()
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaultPersistTimeout
	}
	a := &Auditor{
		cfg:       cfg,
		fetcher:   deps.Fetcher,
		prober:    deps.Prober,
		store:     deps.Store,
		archive:   deps.Archive,
		publisher: deps.Publisher,
		clock:     deps.Clock,
		ids:       deps.IDs,
		progress:  deps.Progress,
		tracer:    deps.Tracer,
		logger:    deps.Logger,
	}
	if a.clock == nil {
		a.clock = system.New()
	}
	if a.ids == nil {
		a.ids = iduuid.New()
	}
	if a.tracer == nil {
		a.tracer = otel.Tracer(tracerName)
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	return a, nil
}

// Run audits the site behind rawURL. Invalid input fails with ErrInvalidURL
// before any network call. Per-page failures are recorded in the report and
// never fail the audit. If ctx is canceled mid-crawl the pages fetched so far
// are reported.
func (a *Auditor) Run(ctx context.Context, rawURL string) (Record, error) {
	seed, err := NormalizeSeed(rawURL)
	if err != nil {
		metrics.ObserveAudit(metrics.AuditInvalid, 0)
		return Record{}, err
	}
	id, err := a.ids.NewID()
	if err != nil {
		return Record{}, fmt.Errorf("generate audit id: %w", err)
	}
	start := a.clock.Now()
	ctx, span := a.tracer.Start(ctx, "audit.Run", trace.WithAttributes(
		attribute.String("audit.id", id),
		attribute.String("audit.seed", seed),
	))
	defer span.End()

	logger := a.logger.With(zap.String("audit_id", id), zap.String("seed", seed))
	run := &runState{
		seed:    seed,
		site:    siteOf(seed),
		eventID: eventID(id),
		logger:  logger,
	}
	a.emit(progress.Event{AuditID: run.eventID, TS: start, Stage: progress.StageAuditStart, Site: run.site, URL: seed})
	logger.Info("audit started")

	probes := a.probe(ctx, seed)
	s := a.crawl(ctx, run)
	findings := Aggregate(s.pages, s.redirects)
	report := Assemble(s.pages, findings, probes, a.cfg.Limits)
	rec := Record{ID: id, SeedURL: seed, CreatedAt: start, Report: report}

	elapsed := a.clock.Now().Sub(start)
	done := progress.Event{AuditID: run.eventID, TS: a.clock.Now(), Stage: progress.StageAuditDone, Site: run.site, Dur: elapsed}
	outcome := metrics.AuditCompleted
	if ctxErr := ctx.Err(); ctxErr != nil {
		outcome = metrics.AuditCanceled
		done.Stage = progress.StageAuditError
		done.Note = ctxErr.Error()
		span.SetStatus(codes.Error, ctxErr.Error())
	}
	a.emit(done)
	metrics.ObserveAudit(outcome, elapsed)
	span.SetAttributes(
		attribute.Int("audit.pages", report.Stats.TotalPages),
		attribute.Int("audit.failed", report.Stats.Failed),
	)
	logger.Info("audit finished",
		zap.String("outcome", outcome),
		zap.Int("pages", report.Stats.TotalPages),
		zap.Int("failed", report.Stats.Failed),
		zap.Int("pending", s.frontier.pending()),
		zap.Duration("elapsed", elapsed),
	)

	a.persist(ctx, rec, logger)
	return rec, nil
}

type runState struct {
	seed    string
	site    string
	eventID [16]byte
	logger  *zap.Logger
}

// session is the in-memory crawl state of one audit.
type session struct {
	frontier  *frontier
	pages     []Page
	redirects []RedirectEdge
}

// pageOutcome is the result of one fetch: a response, or the error that
// prevented one.
type pageOutcome struct {
	url    string
	result FetchResult
	err    error
}

func (a *Auditor) probe(ctx context.Context, seed string) Probes {
	u, err := url.Parse(seed)
	if err != nil {
		return Probes{}
	}
	base := origin(u)
	return Probes{
		Robots:  a.probeOne(ctx, base+"/robots.txt", "robots"),
		Sitemap: a.probeOne(ctx, base+"/sitemap.xml", "sitemap"),
	}
}

func (a *Auditor) probeOne(ctx context.Context, target, kind string) bool {
	ok, err := a.prober.Probe(ctx, target)
	if err != nil {
		a.logger.Debug("probe failed", zap.String("url", target), zap.Error(err))
		ok = false
	}
	metrics.ObserveProbe(kind, ok)
	return ok
}

func (a *Auditor) crawl(ctx context.Context, run *runState) *session {
	s := &session{frontier: newFrontier(run.seed)}
	seedURL, err := url.Parse(run.seed)
	if err != nil {
		return s
	}
	seedOrigin := origin(seedURL)
	var robots RobotsPolicy = allowAllPolicy{}
	if a.cfg.RespectRobots {
		robots = LoadRobots(ctx, a.fetcher, run.seed, a.cfg.UserAgent, run.logger)
	}

	for len(s.pages) < a.cfg.Limits.MaxPages {
		if ctx.Err() != nil {
			run.logger.Warn("audit interrupted", zap.Error(ctx.Err()), zap.Int("pages", len(s.pages)))
			break
		}
		current, ok := s.frontier.pop()
		if !ok {
			break
		}
		if !s.frontier.visit(current) {
			continue
		}
		outcome := a.fetchPage(ctx, current, run)
		page, links := a.record(s, outcome, seedOrigin)
		s.pages = append(s.pages, page)
		if len(s.pages) >= a.cfg.Limits.MaxPages {
			continue
		}
		for _, link := range links {
			if !robots.Allowed(ctx, link) {
				run.logger.Debug("robots disallowed link", zap.String("url", link))
				continue
			}
			s.frontier.push(link)
		}
	}
	return s
}

func (a *Auditor) fetchPage(ctx context.Context, target string, run *runState) pageOutcome {
	ctx, span := a.tracer.Start(ctx, "audit.fetch", trace.WithAttributes(attribute.String("url.full", target)))
	defer span.End()

	res, err := a.fetcher.Fetch(ctx, target)
	out := pageOutcome{url: target, result: res, err: err}
	evt := progress.Event{
		AuditID: run.eventID,
		TS:      a.clock.Now(),
		Stage:   progress.StageFetchDone,
		Site:    run.site,
		URL:     target,
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		evt.StatusClass = progress.StatusOther
		evt.Note = err.Error()
		run.logger.Debug("fetch failed", zap.String("url", target), zap.Error(err))
	} else {
		span.SetAttributes(attribute.Int("http.response.status_code", res.StatusCode))
		evt.StatusClass = progress.ClassifyStatus(res.StatusCode)
		evt.Bytes = int64(len(res.Body))
		evt.Dur = res.Duration
		run.logger.Debug("fetch done",
			zap.String("url", target),
			zap.Int("status", res.StatusCode),
			zap.Duration("duration", res.Duration),
		)
	}
	a.emit(evt)
	metrics.ObservePage(run.site, string(evt.StatusClass))
	return out
}

// record turns an outcome into a Page, notes any redirect, and returns the
// same-origin links the page contributes to the frontier.
func (a *Auditor) record(s *session, out pageOutcome, seedOrigin string) (Page, []string) {
	if out.err != nil {
		return Page{URL: out.url, StatusCode: 0, Issues: []string{IssueFetchFailed}}, nil
	}
	res := out.result
	page := Page{
		URL:        out.url,
		StatusCode: res.StatusCode,
		LoadTime:   res.Duration.Milliseconds(),
	}
	pageURL, err := url.Parse(out.url)
	if err != nil {
		page.Issues = []string{HTTPErrorIssue(res.StatusCode)}
		return page, nil
	}

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		analysis, err := Analyze(res.Body)
		if err != nil {
			a.logger.Debug("html parse failed", zap.String("url", out.url), zap.Error(err))
		}
		page.Title = optional(analysis.Title)
		page.MetaDescription = optional(analysis.MetaDescription)
		page.H1 = optional(analysis.H1)
		page.Issues = analysis.Issues()
		links := make([]string, 0, len(analysis.Links))
		for _, href := range analysis.Links {
			if link, ok := resolveLink(pageURL, seedOrigin, href); ok {
				links = append(links, link)
			}
		}
		return page, links
	case res.StatusCode >= 300 && res.StatusCode < 400:
		page.Issues = []string{HTTPErrorIssue(res.StatusCode)}
		loc := res.Location()
		if loc == "" {
			return page, nil
		}
		s.redirects = append(s.redirects, RedirectEdge{From: out.url, To: loc})
		if link, ok := resolveLink(pageURL, seedOrigin, loc); ok {
			return page, []string{link}
		}
		return page, nil
	default:
		page.Issues = []string{HTTPErrorIssue(res.StatusCode)}
		return page, nil
	}
}

type completionMessage struct {
	AuditID    string    `json:"audit_id"`
	URL        string    `json:"url"`
	CreatedAt  time.Time `json:"created_at"`
	TotalPages int       `json:"total_pages"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	ArchiveURI string    `json:"archive_uri,omitempty"`
}

// persist hands the finished record to the optional sinks. Failures are
// logged and counted; they never change the audit result.
func (a *Auditor) persist(ctx context.Context, rec Record, logger *zap.Logger) {
	if a.store == nil && a.archive == nil && a.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.PersistTimeout)
	defer cancel()

	if a.store != nil {
		if err := a.store.SaveReport(ctx, rec); err != nil {
			logger.Warn("save report failed", zap.Error(err))
			metrics.ObservePersistFailure("store")
		}
	}

	var archiveURI string
	if a.archive != nil {
		payload, err := json.Marshal(rec)
		if err != nil {
			logger.Warn("marshal report failed", zap.Error(err))
		} else {
			objectPath := path.Join(a.cfg.ArchivePrefix, rec.ID+".json")
			archiveURI, err = a.archive.PutObject(ctx, objectPath, archiveContentType, bytes.NewReader(payload))
			if err != nil {
				logger.Warn("archive report failed", zap.String("path", objectPath), zap.Error(err))
				metrics.ObservePersistFailure("archive")
			}
		}
	}

	if a.publisher != nil && a.cfg.Topic != "" {
		msg := completionMessage{
			AuditID:    rec.ID,
			URL:        rec.SeedURL,
			CreatedAt:  rec.CreatedAt,
			TotalPages: rec.Report.Stats.TotalPages,
			Successful: rec.Report.Stats.Successful,
			Failed:     rec.Report.Stats.Failed,
			ArchiveURI: archiveURI,
		}
		msgID, err := a.publisher.Publish(ctx, a.cfg.Topic, msg)
		if err != nil {
			logger.Warn("publish audit completion failed", zap.String("topic", a.cfg.Topic), zap.Error(err))
			metrics.ObservePersistFailure("publish")
			return
		}
		logger.Debug("audit completion published", zap.String("message_id", msgID))
	}
}

func (a *Auditor) emit(evt progress.Event) {
	if a.progress == nil {
		return
	}
	a.progress.Emit(evt)
}

func siteOf(seed string) string {
	u, err := url.Parse(seed)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}

// eventID maps an audit ID onto the 16-byte progress form. Non-UUID IDs are
// hashed so every audit still gets a stable, non-zero identifier.
func eventID(id string) [16]byte {
	parsed, err := uuid.Parse(id)
	if err != nil {
		parsed = uuid.NewSHA1(uuid.NameSpaceURL, []byte(id))
	}
	return progress.UUIDToBytes(parsed)
}
