package reader

import "github.com/sirupsen/logrus"

// Level classifies a Notice.
type Level string

const (
	LevelProgress Level = "progress"
	LevelInfo     Level = "info"
	LevelError    Level = "error"
)

// Notice is a short user-facing message emitted by a Session.
type Notice struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Level       Level  `json:"level"`
}

// Notifier receives notices.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier writes notices to a logger.
type LogNotifier struct {
	Log logrus.FieldLogger
}

func (l LogNotifier) Notify(n Notice) {
	entry := l.Log.WithField("description", n.Description)
	switch n.Level {
	case LevelError:
		entry.Error(n.Title)
	case LevelProgress:
		entry.Debug(n.Title)
	default:
		entry.Info(n.Title)
	}
}

// Recorder keeps every notice it receives.
type Recorder struct {
	Notices []Notice
}

func (r *Recorder) Notify(n Notice) { r.Notices = append(r.Notices, n) }

// Titles returns the recorded titles, for quick assertions.
func (r *Recorder) Titles() []string {
	titles := make([]string, len(r.Notices))
	for i, n := range r.Notices {
		titles[i] = n.Title
	}
	return titles
}

// Reset drops the recorded notices.
func (r *Recorder) Reset() { r.Notices = nil }
