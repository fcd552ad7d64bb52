package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/robertmeta/swipe-news/feed"
	"github.com/robertmeta/swipe-news/model"
	"github.com/robertmeta/swipe-news/reader"
	"github.com/robertmeta/swipe-news/selection"
	"github.com/robertmeta/swipe-news/store"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// env is everything a command needs, opened from the global flags.
type env struct {
	log     *logrus.Logger
	state   *store.State
	cfg     *model.FeedConfig
	cfgErr  error
	fetcher *feed.Fetcher
	sel     *selection.Selection
	source  selection.Source
	session *reader.Session
	notices *reader.Recorder
}

func newLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.Out = os.Stderr
	l.Formatter = &logrus.TextFormatter{}
	l.Level = lvl
	return l, nil
}

// selectionQuery accepts either a share link query or bare comma separated ids.
func selectionQuery(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "?")
	if s == "" || strings.Contains(s, "=") {
		return s
	}
	return selection.QueryParam + "=" + s
}

func openEnv(c *cli.Context) (*env, error) {
	log, err := newLogger(c.String("log-level"))
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Invalid log level: %v", err), ExitUsageError)
	}

	dbPath := c.String("db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, cli.Exit(fmt.Sprintf("failed to create database directory: %v", err), ExitDataError)
	}
	st, err := store.Open(dbPath, log)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("failed to open database: %v", err), ExitDataError)
	}

	e := &env{
		log:     log,
		state:   st,
		notices: &reader.Recorder{},
		fetcher: feed.NewFetcher(
			feed.WithClient(&http.Client{Timeout: c.Duration("timeout")}),
			feed.WithLogger(log),
		),
	}

	cfg, err := e.fetcher.LoadConfig(c.Context, c.String("config"))
	if err != nil {
		log.WithError(err).Warn("no feed configuration loaded")
		e.cfgErr = err
		cfg = &model.FeedConfig{}
	}
	e.cfg = cfg

	e.sel, e.source = selection.New(selectionQuery(c.String("feeds")), st, cfg)
	log.WithFields(logrus.Fields{"feeds": e.sel.IDs(), "source": e.source}).Debug("resolved feed selection")

	logged := reader.LogNotifier{Log: log}
	e.session = reader.NewSession(st, e.fetcher, reader.Options{
		FallbackDelay: c.Duration("fallback-delay"),
		Notifier: reader.NotifierFunc(func(n reader.Notice) {
			e.notices.Notify(n)
			logged.Notify(n)
		}),
		Log: log,
	})
	e.session.UseSelection(e.sel)
	return e, nil
}

func (e *env) Close() {
	if err := e.state.Close(); err != nil {
		e.log.WithError(err).Warn("failed to close database")
	}
}

// refresh fetches the selected feeds and resolves the current filter.
func (e *env) refresh(c *cli.Context) (reader.Resolution, error) {
	if err := e.requireConfig(); err != nil {
		return reader.Resolution{}, err
	}
	res, err := e.session.Refresh(c.Context, e.sel.Feeds())
	if err != nil {
		return res, cli.Exit(fmt.Sprintf("Failed to load articles: %v", err), ExitDataError)
	}
	return res, nil
}

func (e *env) requireConfig() error {
	if e.cfgErr != nil {
		return cli.Exit(e.cfgErr.Error(), ExitDataError)
	}
	return nil
}

// find refreshes and looks up one article by id.
func (e *env) find(c *cli.Context, id string) (model.Article, error) {
	if _, err := e.refresh(c); err != nil {
		return model.Article{}, err
	}
	a, err := e.session.Find(id)
	if err != nil {
		return model.Article{}, cli.Exit(err.Error(), ExitDataError)
	}
	return a, nil
}

// userNotices returns the notices worth showing, skipping progress messages.
func (e *env) userNotices() []reader.Notice {
	out := []reader.Notice{}
	for _, n := range e.notices.Notices {
		if n.Level != reader.LevelProgress {
			out = append(out, n)
		}
	}
	return out
}

// missingConfig reports whether err is a local configuration file that does
// not exist yet.
func missingConfig(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
