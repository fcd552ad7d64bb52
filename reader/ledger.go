package reader

import (
	"fmt"

	"github.com/robertmeta/swipe-news/model"
)

// Swipe records a like (right) or dismiss (left) for a, marks it read and
// moves to the next article when one follows.
func (s *Session) Swipe(dir model.Direction, a model.Article) model.SwipeAction {
	action := s.record(a.ID, dir.Action(), true)
	s.notify(Notice{Title: "Article " + action.Action.Past(), Description: a.Title, Level: LevelInfo})
	return action
}

// Bookmark records a bookmark for a. The read flag and index are unchanged.
func (s *Session) Bookmark(a model.Article) model.SwipeAction {
	action := s.record(a.ID, model.ActionBookmark, false)
	s.notify(Notice{Title: "Article bookmarked", Description: a.Title, Level: LevelInfo})
	return action
}

func (s *Session) record(id string, act model.Action, read bool) model.SwipeAction {
	feedID, feedName := s.feedContext(id)
	action := model.SwipeAction{
		ItemID:    id,
		Action:    act,
		Timestamp: s.now().UnixMilli(),
		FeedID:    feedID,
		FeedName:  feedName,
	}

	prev := s.st.Mark(id)
	s.st.Ledger = append(s.st.Ledger, action)
	step := undoStep{pos: len(s.st.Ledger) - 1, itemID: id, prevRead: prev.Read}

	if read {
		m := prev
		m.Read = true
		s.st.SetMark(id, m)
		if s.index < len(s.visible)-1 && len(s.Unread()) > 0 {
			s.index++
			step.moved = true
		}
	}
	s.journal = append(s.journal, step)

	_ = s.st.SaveLedger()
	if read {
		_ = s.st.SaveReadItems()
	}
	return action
}

// Undo removes the latest ledger entry and restores the article's read flag
// and the index. It reports false when there is nothing to undo.
func (s *Session) Undo() bool {
	n := len(s.st.Ledger)
	if n == 0 {
		return false
	}
	last := s.st.Ledger[n-1]
	s.st.Ledger = s.st.Ledger[:n-1]

	m := s.st.Mark(last.ItemID)
	if step, ok := s.popJournal(n-1, last.ItemID); ok {
		m.Read = step.prevRead
		if step.moved && s.index > 0 {
			s.index--
		}
	} else {
		// Entries loaded from storage carry no journal.
		m.Read = false
		if s.index > 0 {
			s.index--
		}
	}
	s.st.SetMark(last.ItemID, m)

	_ = s.st.SaveLedger()
	_ = s.st.SaveReadItems()
	s.notify(Notice{Title: "Action undone", Description: "Previous swipe action has been reversed", Level: LevelInfo})
	return true
}

func (s *Session) popJournal(pos int, id string) (undoStep, bool) {
	for len(s.journal) > 0 {
		step := s.journal[len(s.journal)-1]
		if step.pos < pos {
			return undoStep{}, false
		}
		s.journal = s.journal[:len(s.journal)-1]
		if step.pos == pos && step.itemID == id {
			return step, true
		}
	}
	return undoStep{}, false
}

// CanUndo reports whether the undo control is offered: there is history
// and the reader has moved past the first article.
func (s *Session) CanUndo() bool {
	return len(s.st.Ledger) > 0 && s.index > 0
}

// UpdateAction replaces the action of the latest ledger entry for id, or
// appends a new entry when there is none. Read flags and the index are
// unchanged.
func (s *Session) UpdateAction(id string, act model.Action) (model.SwipeAction, error) {
	if !act.Valid() {
		return model.SwipeAction{}, fmt.Errorf("%w: %q", model.ErrInvalidAction, act)
	}

	feedID, feedName := s.feedContext(id)
	entry := model.SwipeAction{
		ItemID:    id,
		Action:    act,
		Timestamp: s.now().UnixMilli(),
		FeedID:    feedID,
		FeedName:  feedName,
	}

	replaced := false
	for i := len(s.st.Ledger) - 1; i >= 0; i-- {
		if s.st.Ledger[i].ItemID == id {
			s.st.Ledger[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		s.st.Ledger = append(s.st.Ledger, entry)
		s.journal = append(s.journal, undoStep{pos: len(s.st.Ledger) - 1, itemID: id, prevRead: s.st.Mark(id).Read})
	}

	_ = s.st.SaveLedger()
	s.notify(Notice{Title: "Article " + act.Past() + "!", Description: "Status updated successfully", Level: LevelInfo})
	return entry, nil
}

// MarkUnread clears the read flag of id. The ledger is untouched.
func (s *Session) MarkUnread(id string) {
	s.MarkManyUnread([]string{id})
}

// MarkManyUnread clears the read flag of every id.
func (s *Session) MarkManyUnread(ids []string) {
	for _, id := range ids {
		m := s.st.Mark(id)
		m.Read = false
		s.st.SetMark(id, m)
	}
	_ = s.st.SaveReadItems()
	if len(ids) > 1 {
		s.notify(Notice{Title: fmt.Sprintf("%d articles marked as unread", len(ids)), Level: LevelInfo})
	} else {
		s.notify(Notice{Title: "Marked as unread", Level: LevelInfo})
	}
}

// MarkRead sets the read flag of id without recording an action.
func (s *Session) MarkRead(id string) {
	m := s.st.Mark(id)
	m.Read = true
	s.st.SetMark(id, m)
	_ = s.st.SaveReadItems()
}

// SaveForLater adds a to the saved set. Saving twice is a no-op.
func (s *Session) SaveForLater(a model.Article) {
	m := s.st.Mark(a.ID)
	if m.Saved {
		return
	}
	m.Saved = true
	s.st.SetMark(a.ID, m)
	_ = s.st.SaveSavedForLater()
	s.notify(Notice{Title: "Saved for later", Description: a.Title, Level: LevelInfo})
}

// Unsave removes id from the saved set.
func (s *Session) Unsave(id string) {
	m := s.st.Mark(id)
	if !m.Saved {
		return
	}
	m.Saved = false
	s.st.SetMark(id, m)
	_ = s.st.SaveSavedForLater()
	s.notify(Notice{Title: "Removed from saved", Level: LevelInfo})
}

// ChangeDailyGoal sets and persists the daily goal.
func (s *Session) ChangeDailyGoal(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: %d", model.ErrInvalidGoal, n)
	}
	s.st.DailyGoal = n
	_ = s.st.SaveDailyGoal()
	return nil
}
