package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"

	"github.com/robertmeta/swipe-news/feed"
	"github.com/robertmeta/swipe-news/model"
	"github.com/robertmeta/swipe-news/opml"
	"github.com/robertmeta/swipe-news/reader"
	"github.com/robertmeta/swipe-news/server"
	"github.com/urfave/cli/v2"
)

func listFeeds(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	out := map[string]interface{}{
		"feeds":    e.cfg.Feeds,
		"selected": e.sel.IDs(),
		"source":   e.source,
		"query":    e.sel.Query(),
	}
	if e.cfgErr != nil {
		out["error"] = e.cfgErr.Error()
	}
	return outputJSON(out)
}

func selectFeeds(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireConfig(); err != nil {
		return err
	}

	requested := c.Args().Slice()
	query := e.sel.Change(requested)
	selected := e.sel.IDs()

	var unknown []string
	for _, id := range requested {
		if !slices.Contains(selected, id) {
			unknown = append(unknown, id)
		}
	}

	return outputJSON(map[string]interface{}{
		"success":  true,
		"selected": selected,
		"query":    query,
		"unknown":  unknown,
	})
}

func shareLink(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	return outputJSON(map[string]interface{}{
		"selected": e.sel.IDs(),
		"query":    e.sel.Query(),
		"link":     e.sel.Link(),
	})
}

func listArticles(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.refresh(c)
	if err != nil {
		return err
	}

	var articles []model.Article
	switch view := c.String("view"); view {
	case "unread":
		articles = e.session.Unread()
	case "visible":
		articles = e.session.Articles()
	case "read":
		articles = e.session.Read()
	case "saved":
		articles = e.session.SavedForLater()
	case "liked":
		articles = e.session.Liked()
	case "all":
		articles = e.session.All()
	default:
		return cli.Exit(fmt.Sprintf("Unknown view: %s", view), ExitUsageError)
	}

	total := len(articles)
	if limit := c.Int("limit"); limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}

	return outputJSON(map[string]interface{}{
		"filter":   e.session.Filter(),
		"count":    len(articles),
		"total":    total,
		"articles": articles,
		"feeds":    e.session.FeedStatuses(),
		"tried":    res.Tried,
		"notices":  e.userNotices(),
	})
}

func nextArticle(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	if _, err := e.refresh(c); err != nil {
		return err
	}

	out := map[string]interface{}{
		"status":  e.session.Status(),
		"filter":  e.session.Filter(),
		"unread":  len(e.session.Unread()),
		"stats":   e.session.DailyStats(),
		"notices": e.userNotices(),
	}
	if a, ok := e.session.Current(); ok {
		out["article"] = a
		out["readingTime"] = reader.ReadingTime(a).Seconds()
		out["autoPlayDelay"] = reader.AutoPlayDelay(a).Seconds()
	} else {
		out["message"] = "All caught up!"
	}
	return outputJSON(out)
}

func swipeAction(dir model.Direction) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() < 1 {
			return cli.Exit(fmt.Sprintf("Usage: swipe-news %s <article-id>", c.Command.Name), ExitUsageError)
		}

		e, err := openEnv(c)
		if err != nil {
			return err
		}
		defer e.Close()

		a, err := e.find(c, c.Args().Get(0))
		if err != nil {
			return err
		}
		action := e.session.Swipe(dir, a)

		return outputJSON(map[string]interface{}{
			"success": true,
			"action":  action,
			"stats":   e.session.DailyStats(),
			"notices": e.userNotices(),
		})
	}
}

func bookmarkArticle(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: swipe-news bookmark <article-id>", ExitUsageError)
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	a, err := e.find(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	action := e.session.Bookmark(a)

	return outputJSON(map[string]interface{}{
		"success": true,
		"action":  action,
		"notices": e.userNotices(),
	})
}

func setAction(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.Exit("Usage: swipe-news set-action <article-id> <action>", ExitUsageError)
	}
	act, err := model.ParseAction(c.Args().Get(1))
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	action, err := e.session.UpdateAction(c.Args().Get(0), act)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	return outputJSON(map[string]interface{}{
		"success": true,
		"action":  action,
		"notices": e.userNotices(),
	})
}

func undoAction(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	var last *model.SwipeAction
	if ledger := e.session.Ledger(); len(ledger) > 0 {
		last = &ledger[len(ledger)-1]
	}
	undone := e.session.Undo()

	out := map[string]interface{}{
		"undone":  undone,
		"notices": e.userNotices(),
	}
	if undone {
		out["action"] = last
	}
	return outputJSON(out)
}

func markUnread(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: swipe-news unread <article-id>...", ExitUsageError)
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	ids := c.Args().Slice()
	e.session.MarkManyUnread(ids)

	return outputJSON(map[string]interface{}{
		"marked_unread": len(ids),
		"notices":       e.userNotices(),
	})
}

func saveArticle(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: swipe-news save <article-id>", ExitUsageError)
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	a, err := e.find(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	e.session.SaveForLater(a)

	return outputJSON(map[string]interface{}{
		"success": true,
		"saved":   len(e.session.SavedForLater()),
		"notices": e.userNotices(),
	})
}

func unsaveArticle(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: swipe-news unsave <article-id>", ExitUsageError)
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	e.session.Unsave(c.Args().Get(0))

	return outputJSON(map[string]interface{}{
		"success": true,
		"saved":   e.state.SavedIDs(),
		"notices": e.userNotices(),
	})
}

func changeFilter(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	if c.NArg() < 1 {
		return outputJSON(map[string]interface{}{
			"filter":      e.session.Filter(),
			"description": e.session.Filter().Description(),
		})
	}

	f, err := model.ParseTimeFilter(c.Args().Get(0))
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}
	if err := e.requireConfig(); err != nil {
		return err
	}
	if err := e.session.Fetch(c.Context, e.sel.Feeds()); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to load articles: %v", err), ExitDataError)
	}

	res, err := e.session.ChangeFilter(c.Context, f)
	if err != nil {
		return cli.Exit(err.Error(), ExitGeneralError)
	}

	return outputJSON(map[string]interface{}{
		"filter":     e.session.Filter(),
		"resolution": res,
		"notices":    e.userNotices(),
	})
}

func changeGoal(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	if c.NArg() > 0 {
		n, err := strconv.Atoi(c.Args().Get(0))
		if err != nil {
			return cli.Exit("Invalid goal: must be a whole number", ExitUsageError)
		}
		if err := e.session.ChangeDailyGoal(n); err != nil {
			return cli.Exit(err.Error(), ExitUsageError)
		}
	}

	return outputJSON(map[string]interface{}{
		"dailyGoal": e.session.DailyGoal(),
	})
}

func showStats(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	return outputJSON(e.session.Stats())
}

func showHistory(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	history := e.session.Ledger()
	slices.Reverse(history)
	total := len(history)
	if limit := c.Int("limit"); limit > 0 && len(history) > limit {
		history = history[:limit]
	}

	return outputJSON(map[string]interface{}{
		"count":   len(history),
		"total":   total,
		"history": history,
	})
}

func changePrefs(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	p := &e.state.Prefs
	changed := false
	if c.IsSet("auto-play") {
		p.AutoPlay = c.Bool("auto-play")
		changed = true
	}
	if c.IsSet("auto-read") {
		p.AutoRead = c.Bool("auto-read")
		changed = true
	}
	if c.IsSet("voice") {
		p.SelectedVoice = c.String("voice")
		changed = true
	}
	if c.IsSet("frequency") {
		p.ReadingFrequency = c.String("frequency")
		changed = true
	}
	if changed {
		if err := e.state.SavePrefs(); err != nil {
			return cli.Exit(fmt.Sprintf("Failed to save preferences: %v", err), ExitDataError)
		}
	}

	return outputJSON(e.state.Prefs)
}

func onboard(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	if c.NArg() > 0 {
		if err := e.requireConfig(); err != nil {
			return err
		}
		if len(e.sel.Change(c.Args().Slice())) == 0 {
			return cli.Exit("None of the given feeds are configured", ExitUsageError)
		}
	}
	if c.IsSet("goal") {
		if err := e.session.ChangeDailyGoal(c.Int("goal")); err != nil {
			return cli.Exit(err.Error(), ExitUsageError)
		}
	}

	e.state.Prefs.ReadingFrequency = c.String("frequency")
	e.state.Prefs.OnboardingCompleted = true
	if err := e.state.SavePrefs(); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to save preferences: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"success":   true,
		"selected":  e.sel.IDs(),
		"query":     e.sel.Query(),
		"dailyGoal": e.session.DailyGoal(),
		"prefs":     e.state.Prefs,
	})
}

func importOPML(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: swipe-news import <opml-file>", ExitUsageError)
	}

	opmlPath := c.Args().Get(0)

	file, err := os.Open(opmlPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to open OPML file: %v", err), ExitDataError)
	}
	defer file.Close()

	feeds, err := opml.Parse(file)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to parse OPML: %v", err), ExitDataError)
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	// A missing configuration file is created by the import.
	if e.cfgErr != nil && !missingConfig(e.cfgErr) {
		return cli.Exit(e.cfgErr.Error(), ExitDataError)
	}

	added, replaced := feed.Merge(e.cfg, feeds)
	if err := feed.SaveConfig(c.String("config"), e.cfg); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to save feed configuration: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"success":  true,
		"imported": added,
		"replaced": replaced,
		"total":    len(e.cfg.Feeds),
	})
}

// output opens the -o destination, or stdout when unset.
func output(c *cli.Context) (io.Writer, func(), error) {
	path := c.String("output")
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, cli.Exit(fmt.Sprintf("Failed to create output file: %v", err), ExitDataError)
	}
	return file, func() { file.Close() }, nil
}

func exportOPML(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireConfig(); err != nil {
		return err
	}

	writer, done, err := output(c)
	if err != nil {
		return err
	}
	defer done()

	if err := opml.Generate(writer, e.cfg.Feeds); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to generate OPML: %v", err), ExitDataError)
	}

	if path := c.String("output"); path != "" {
		return outputJSON(map[string]interface{}{
			"success": true,
			"file":    path,
			"count":   len(e.cfg.Feeds),
		})
	}
	return nil
}

func exportLiked(c *cli.Context) error {
	format := c.String("format")
	switch format {
	case feed.FormatAtom, feed.FormatRSS, feed.FormatJSON:
	default:
		return cli.Exit(fmt.Sprintf("Unknown format: %s (expected atom, rss or json)", format), ExitUsageError)
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	if _, err := e.refresh(c); err != nil {
		return err
	}
	liked := e.session.Liked()

	writer, done, err := output(c)
	if err != nil {
		return err
	}
	defer done()

	if err := feed.Export(writer, format, "Liked articles", liked); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to export: %v", err), ExitDataError)
	}

	if path := c.String("output"); path != "" {
		return outputJSON(map[string]interface{}{
			"success": true,
			"file":    path,
			"count":   len(liked),
		})
	}
	return nil
}

func serve(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	if _, err := e.refresh(c); err != nil {
		e.log.WithError(err).Warn("initial refresh failed")
	}

	srv := server.New(server.Config{
		Session:        e.session,
		Selection:      e.sel,
		Feeds:          e.cfg,
		Cache:          e.fetcher,
		Notices:        e.notices,
		AllowedOrigins: c.StringSlice("allow-origin"),
		Log:            e.log,
	})

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx, c.String("addr")); err != nil {
		return cli.Exit(err.Error(), ExitGeneralError)
	}
	return nil
}
