package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/robertmeta/swipe-news/feed"
	"github.com/robertmeta/swipe-news/model"
	"github.com/robertmeta/swipe-news/reader"
	"github.com/urfave/cli/v2"
)

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitDataError    = 3
)

func main() {
	app := &cli.App{
		Name:    "swipe-news",
		Usage:   "A swipe-style news reader for RSS-derived feeds",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Value:   configPath("swipe-news.db"),
				Usage:   "Database file path",
				EnvVars: []string{"SWIPE_NEWS_DB"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   configPath("feeds.json"),
				Usage:   "Feed configuration file path or URL",
				EnvVars: []string{"SWIPE_NEWS_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "feeds",
				Aliases: []string{"f"},
				Usage:   "Feed selection for this run, as a share link query (feeds=a,b) or comma separated ids",
				EnvVars: []string{"SWIPE_NEWS_FEEDS"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"SWIPE_NEWS_LOG_LEVEL"},
			},
			&cli.DurationFlag{
				Name:    "fallback-delay",
				Value:   reader.DefaultFallbackDelay,
				Usage:   "Pause between time filter attempts when widening an empty filter",
				EnvVars: []string{"SWIPE_NEWS_FALLBACK_DELAY"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Value:   feed.DefaultTimeout,
				Usage:   "HTTP request timeout",
				EnvVars: []string{"SWIPE_NEWS_TIMEOUT"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "feeds",
				Usage:  "List configured feeds and the current selection",
				Action: listFeeds,
			},
			{
				Name:      "select",
				Usage:     "Replace the selected feeds",
				ArgsUsage: "<feed-id>...",
				Action:    selectFeeds,
			},
			{
				Name:   "link",
				Usage:  "Print the share link query for the current selection",
				Action: shareLink,
			},
			{
				Name:  "articles",
				Usage: "List articles",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "view",
						Aliases: []string{"v"},
						Value:   "unread",
						Usage:   "Which articles to list (unread, visible, read, saved, liked, all)",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Value:   50,
						Usage:   "Maximum number of articles to return (0 for no limit)",
					},
				},
				Action: listArticles,
			},
			{
				Name:   "next",
				Usage:  "Show the next unread article",
				Action: nextArticle,
			},
			{
				Name:      "like",
				Usage:     "Swipe right on an article",
				ArgsUsage: "<article-id>",
				Action:    swipeAction(model.DirectionRight),
			},
			{
				Name:      "skip",
				Aliases:   []string{"dismiss"},
				Usage:     "Swipe left on an article",
				ArgsUsage: "<article-id>",
				Action:    swipeAction(model.DirectionLeft),
			},
			{
				Name:      "bookmark",
				Usage:     "Bookmark an article",
				ArgsUsage: "<article-id>",
				Action:    bookmarkArticle,
			},
			{
				Name:      "set-action",
				Usage:     "Change the recorded action for an article (like, skip, bookmark)",
				ArgsUsage: "<article-id> <action>",
				Action:    setAction,
			},
			{
				Name:   "undo",
				Usage:  "Undo the latest action",
				Action: undoAction,
			},
			{
				Name:      "unread",
				Usage:     "Mark articles as unread",
				ArgsUsage: "<article-id>...",
				Action:    markUnread,
			},
			{
				Name:      "save",
				Usage:     "Save an article for later",
				ArgsUsage: "<article-id>",
				Action:    saveArticle,
			},
			{
				Name:      "unsave",
				Usage:     "Remove an article from saved for later",
				ArgsUsage: "<article-id>",
				Action:    unsaveArticle,
			},
			{
				Name:      "filter",
				Usage:     "Show or change the time filter (day, week, month, before, all, demo)",
				ArgsUsage: "[filter]",
				Action:    changeFilter,
			},
			{
				Name:      "goal",
				Usage:     "Show or change the daily reading goal",
				ArgsUsage: "[count]",
				Action:    changeGoal,
			},
			{
				Name:   "stats",
				Usage:  "Show today's reading stats and top feeds",
				Action: showStats,
			},
			{
				Name:  "history",
				Usage: "Show the action history, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Value:   50,
						Usage:   "Maximum number of entries to return (0 for no limit)",
					},
				},
				Action: showHistory,
			},
			{
				Name:  "prefs",
				Usage: "Show or change preferences",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "auto-play", Usage: "Advance automatically after the reading time"},
					&cli.BoolFlag{Name: "auto-read", Usage: "Read articles aloud"},
					&cli.StringFlag{Name: "voice", Usage: "Voice used for reading aloud"},
					&cli.StringFlag{Name: "frequency", Usage: "How often you plan to read (daily, weekly, ...)"},
				},
				Action: changePrefs,
			},
			{
				Name:      "onboard",
				Usage:     "Complete onboarding with a feed selection and reading frequency",
				ArgsUsage: "<feed-id>...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "frequency", Value: "daily", Usage: "How often you plan to read"},
					&cli.IntFlag{Name: "goal", Usage: "Daily reading goal"},
				},
				Action: onboard,
			},
			{
				Name:      "import",
				Usage:     "Import feeds from an OPML file into the feed configuration",
				ArgsUsage: "<opml-file>",
				Action:    importOPML,
			},
			{
				Name:  "export",
				Usage: "Export feeds to OPML",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default: stdout)",
					},
				},
				Action: exportOPML,
			},
			{
				Name:  "export-liked",
				Usage: "Export liked articles as a feed",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Value: feed.FormatAtom,
						Usage: "Feed format (atom, rss, json)",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default: stdout)",
					},
				},
				Action: exportLiked,
			},
			{
				Name:  "serve",
				Usage: "Serve the local JSON API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Value:   "127.0.0.1:8080",
						Usage:   "Listen address",
						EnvVars: []string{"SWIPE_NEWS_ADDR"},
					},
					&cli.StringSliceFlag{
						Name:    "allow-origin",
						Usage:   "Browser origin allowed to call the API (repeatable)",
						EnvVars: []string{"SWIPE_NEWS_ALLOW_ORIGIN"},
					},
				},
				Action: serve,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneralError)
	}
}

func configPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".config", "swipe-news", name)
}
