package api

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/q3log/internal/archive"
	"github.com/victornm/q3log/internal/domain"
	"github.com/victornm/q3log/internal/errors"
	"github.com/victornm/q3log/internal/event"
	"github.com/victornm/q3log/internal/ingest"
	"github.com/victornm/q3log/internal/leaderboard"
	"github.com/victornm/q3log/internal/parser"
	"github.com/victornm/q3log/internal/report"
)

// maxUploadSize bounds the body of POST /api/runs.
const maxUploadSize = 64 << 20

type Config struct {
	Router   gin.IRouter
	EventBus *event.Bus
	Ingest   *ingest.Service
	// Leaderboard, Archive and Redis are optional. Their routes answer 503 when unset.
	Leaderboard  *leaderboard.Service
	Archive      *archive.Service
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	is *ingest.Service
	ls *leaderboard.Service
	as *archive.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		is:     c.Ingest,
		ls:     c.Leaderboard,
		as:     c.Archive,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	// HTTP APIs
	g := c.Router.Group("/api")
	g.POST("/runs", a.CreateRun)
	g.GET("/runs/current", a.GetCurrentRun)
	g.GET("/runs/:run_id/games", a.ListArchivedGames)
	g.GET("/games", a.ListGames)
	g.GET("/games/:number", a.GetGame)
	g.GET("/games/:number/leaderboard", a.GetLeaderboard)
	c.Router.GET("/report", a.GetReport)

	// Register event handlers
	if a.redis != nil {
		c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
			return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
		})
	}

	return a
}

type (
	Run struct {
		RunID      string    `json:"run_id"`
		Source     string    `json:"source"`
		ScannedAt  time.Time `json:"scanned_at"`
		Games      int       `json:"games"`
		TotalKills uint64    `json:"total_kills"`
	}

	Game struct {
		Number       int                  `json:"number"`
		TotalKills   uint32               `json:"total_kills"`
		Players      []domain.PlayerEntry `json:"players"`
		KillsByCause []Cause              `json:"kills_by_cause"`
	}

	Cause struct {
		Cause string `json:"cause"`
		Count uint32 `json:"count"`
		Share string `json:"share"`
	}

	// ScanError is the body of a rejected upload.
	ScanError struct {
		Code    errors.Code `json:"code"`
		Message string      `json:"message"`
		Line    int         `json:"line"`
		Event   string      `json:"event,omitempty"`
	}
)

func toRun(r *domain.Run) Run {
	res := Run{
		RunID:     r.RunID,
		Source:    r.Source,
		ScannedAt: r.ScannedAt,
		Games:     len(r.Games),
	}

	for _, g := range r.Games {
		res.TotalKills += uint64(g.TotalKills)
	}

	return res
}

func toGame(number int, g domain.Game) Game {
	return Game{
		Number:       number,
		TotalKills:   g.TotalKills,
		Players:      g.Ranking(),
		KillsByCause: toCauses(g.CauseRanking(), g.TotalKills),
	}
}

func toScanError(le *parser.LineError) ScanError {
	e := errors.Convert(le.Err)
	return ScanError{
		Code:    e.Code,
		Message: fmt.Sprintf("line %d: %s", le.Line, e.Message),
		Line:    le.Line,
		Event:   strings.TrimSuffix(le.Keyword, ":"),
	}
}

func toCauses(counts []domain.CauseCount, total uint32) []Cause {
	res := make([]Cause, 0, len(counts))
	for _, c := range counts {
		res = append(res, Cause{
			Cause: c.Cause.String(),
			Count: c.Count,
			Share: report.Share(c.Count, total),
		})
	}

	return res
}

// CreateRun ingests the log sent as the request body and makes it the current run.
func (a *API) CreateRun(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(body); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("read request body"),
			errors.WithCause(err)))
		return
	}

	run, err := a.is.IngestReader(c.Request.Context(), c.DefaultQuery("source", "upload"), &buf)
	if err != nil {
		var le *parser.LineError
		if stderrors.As(err, &le) {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, toScanError(le))
			return
		}

		renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toRun(run))
}

func (a *API) GetCurrentRun(c *gin.Context) {
	run, err := a.is.Current()
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRun(run))
}

func (a *API) ListGames(c *gin.Context) {
	run, err := a.is.Current()
	if err != nil {
		renderError(c, err)
		return
	}

	games := make([]Game, 0, len(run.Games))
	for i, g := range run.Games {
		games = append(games, toGame(i+1, g))
	}

	c.JSON(http.StatusOK, games)
}

func (a *API) GetGame(c *gin.Context) {
	n, err := gameNumber(c)
	if err != nil {
		renderError(c, err)
		return
	}

	g, err := a.is.GetGame(c.Request.Context(), ingest.GetGameRequest{Number: n})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toGame(n, *g))
}

func (a *API) GetLeaderboard(c *gin.Context) {
	if a.ls == nil {
		renderError(c, unavailable("leaderboard"))
		return
	}

	n, err := gameNumber(c)
	if err != nil {
		renderError(c, err)
		return
	}

	run, err := a.is.Current()
	if err != nil {
		renderError(c, err)
		return
	}

	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		RunID: run.RunID,
		Game:  n,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toLeaderboard(*l))
}

func (a *API) ListArchivedGames(c *gin.Context) {
	if a.as == nil {
		renderError(c, unavailable("archive"))
		return
	}

	games, err := a.as.ListGames(c.Request.Context(), archive.ListGamesRequest{RunID: c.Param("run_id")})
	if err != nil {
		renderError(c, err)
		return
	}

	res := make([]Game, 0, len(games))
	for _, g := range games {
		res = append(res, toGame(g.Number, g.Game))
	}

	c.JSON(http.StatusOK, res)
}

// GetReport renders the report of the current run.
func (a *API) GetReport(c *gin.Context) {
	opts := report.Options{
		Type:   report.Type(c.Query("type")),
		Format: report.Format(c.Query("format")),
	}

	run, err := a.is.Current()
	if err != nil {
		renderError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, run.Games, opts); err != nil {
		renderError(c, err)
		return
	}

	contentType := "text/plain; charset=utf-8"
	if f, _ := report.ParseFormat(string(opts.Format)); f == report.FormatHTML {
		contentType = "text/html; charset=utf-8"
	}

	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func gameNumber(c *gin.Context) (int, error) {
	p := c.Param("number")

	n, err := strconv.Atoi(p)
	if err != nil {
		return 0, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid game number: %q", p),
			errors.WithCause(err))
	}

	return n, nil
}

func unavailable(component string) error {
	return errors.New(errors.CodeUnavailable, errors.WithMessagef("%s is not configured", component))
}

func renderError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		_ = c.Error(err)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}
