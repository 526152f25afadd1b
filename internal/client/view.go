package client

import (
	"strconv"
	"sync"
	"time"

	"github.com/suPer8Hu/creator-scout/internal/chat"
)

const (
	PlaceholderText = "Processing your request. This can take several minutes."
	StoppingText    = "Stopping..."
	StopFailedText  = "Could not stop the task. Please try again."
)

// Ticket is captured when an async operation starts. Its result is applied
// only while the ticket is still current.
type Ticket struct {
	SessionID  int64
	Generation uint64
}

// Item is one rendered chat line. Local items exist only in this view: the
// optimistic user message and the task placeholder.
type Item struct {
	ID       uint64
	Role     string
	Content  string
	TaskID   string
	Local    bool
	Endpoint string
	// numbers local items without a task; assigned by Append
	Seq uint64
}

// Key identifies an item for de-duplication: the server id, the task id for
// local task items, or the send sequence for other local items.
func (it Item) Key() string {
	if !it.Local {
		return "msg:" + strconv.FormatUint(it.ID, 10)
	}
	if it.TaskID != "" {
		return "task:" + it.TaskID
	}
	return "local:" + strconv.FormatUint(it.Seq, 10)
}

type SessionEntry struct {
	ID        int64
	Title     string
	UpdatedAt time.Time
}

// View is the client state shared by the poller, history loads and sends.
type View struct {
	mu         sync.Mutex
	sessions   []SessionEntry
	active     int64
	generation uint64
	items      map[int64][]Item
	// temporary id -> server id
	aliases        map[int64]int64
	suppressReload map[int64]bool
	activeTask     map[int64]string
	nextTemp       int64
	nextSeq        uint64
}

func NewView() *View {
	return &View{
		items:          make(map[int64][]Item),
		aliases:        make(map[int64]int64),
		suppressReload: make(map[int64]bool),
		activeTask:     make(map[int64]string),
	}
}

func (v *View) resolve(id int64) int64 {
	for i := 0; i < 4; i++ {
		to, ok := v.aliases[id]
		if !ok {
			break
		}
		id = to
	}
	return id
}

// NewLocalSession adds a session with a temporary negative id and activates it.
func (v *View) NewLocalSession(title string) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nextTemp--
	id := v.nextTemp
	v.sessions = append([]SessionEntry{{ID: id, Title: title}}, v.sessions...)
	v.active = id
	v.generation++
	return id
}

// SetSessions replaces the session list, keeping local sessions not yet confirmed.
func (v *View) SetSessions(list []chat.Session) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []SessionEntry
	for _, s := range v.sessions {
		if s.ID < 0 {
			out = append(out, s)
		}
	}
	for _, s := range list {
		e := SessionEntry{ID: int64(s.ID), UpdatedAt: s.UpdatedAt}
		if s.Title != nil {
			e.Title = *s.Title
		}
		out = append(out, e)
	}
	v.sessions = out
}

func (v *View) Sessions() []SessionEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]SessionEntry(nil), v.sessions...)
}

// Activate switches the active session and invalidates every ticket taken before.
func (v *View) Activate(sessionID int64) Ticket {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.active = v.resolve(sessionID)
	v.generation++
	return Ticket{SessionID: v.active, Generation: v.generation}
}

func (v *View) Active() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active
}

func (v *View) Ticket() Ticket {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Ticket{SessionID: v.active, Generation: v.generation}
}

// TicketFor returns the current ticket if sessionID is the active session.
func (v *View) TicketFor(sessionID int64) (Ticket, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.resolve(sessionID) != v.active {
		return Ticket{}, false
	}
	return Ticket{SessionID: v.active, Generation: v.generation}, true
}

func (v *View) validLocked(t Ticket) bool {
	return t.Generation == v.generation && v.resolve(t.SessionID) == v.active
}

// Valid reports whether t still names the live session. A ticket taken for a
// temporary id stays valid after that id is swapped for the server's.
func (v *View) Valid(t Ticket) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.validLocked(t)
}

// SwapSession retargets everything held under tempID to realID and arms a
// one-shot suppression of the next history reload for realID.
func (v *View) SwapSession(tempID, realID int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if tempID == realID {
		return
	}
	v.aliases[tempID] = realID

	out := v.sessions[:0]
	seen := false
	for _, s := range v.sessions {
		if s.ID == tempID {
			s.ID = realID
		}
		if s.ID == realID {
			if seen {
				continue
			}
			seen = true
		}
		out = append(out, s)
	}
	v.sessions = out

	if v.active == tempID {
		v.active = realID
	}
	if items, ok := v.items[tempID]; ok {
		v.items[realID] = append(v.items[realID], items...)
		delete(v.items, tempID)
	}
	if tid, ok := v.activeTask[tempID]; ok {
		v.activeTask[realID] = tid
		delete(v.activeTask, tempID)
	}
	v.suppressReload[realID] = true
}

// ConsumeSuppressReload reports and clears the one-shot flag set by SwapSession.
func (v *View) ConsumeSuppressReload(sessionID int64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.resolve(sessionID)
	if v.suppressReload[id] {
		delete(v.suppressReload, id)
		return true
	}
	return false
}

// Items returns a copy of the session's items, oldest first.
func (v *View) Items(sessionID int64) []Item {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Item(nil), v.items[v.resolve(sessionID)]...)
}

// Append adds it unless an item with the same key is already shown.
func (v *View) Append(t Ticket, it Item) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.validLocked(t) {
		return false
	}
	id := v.resolve(t.SessionID)
	if it.Local && it.TaskID == "" && it.Seq == 0 {
		v.nextSeq++
		it.Seq = v.nextSeq
	}
	for _, cur := range v.items[id] {
		if cur.Key() == it.Key() {
			return false
		}
	}
	v.items[id] = append(v.items[id], it)
	return true
}

// ReplaceHistory swaps the session's items for msgs. The placeholder of a task
// that is still active survives the swap.
func (v *View) ReplaceHistory(t Ticket, msgs []chat.Message) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.validLocked(t) {
		return false
	}
	id := v.resolve(t.SessionID)

	out := make([]Item, 0, len(msgs)+1)
	seen := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		it := Item{ID: m.ID, Role: m.Role, Content: m.Content}
		if m.DetectedEndpoint != nil {
			it.Endpoint = *m.DetectedEndpoint
		}
		if m.TaskID != nil {
			it.TaskID = *m.TaskID
		}
		if seen[it.Key()] {
			continue
		}
		seen[it.Key()] = true
		out = append(out, it)
	}
	if tid := v.activeTask[id]; tid != "" {
		for _, cur := range v.items[id] {
			if cur.Local && cur.TaskID == tid {
				out = append(out, cur)
				break
			}
		}
	}
	v.items[id] = out
	return true
}

// SetTaskText rewrites the local item of taskID in whichever session holds it.
func (v *View) SetTaskText(taskID, text string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for sid, items := range v.items {
		for i := range items {
			if items[i].Local && items[i].TaskID == taskID {
				v.items[sid][i].Content = text
				return true
			}
		}
	}
	return false
}

// RemoveTaskItem drops the local item of taskID.
func (v *View) RemoveTaskItem(taskID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for sid, items := range v.items {
		out := items[:0]
		for _, it := range items {
			if it.Local && it.TaskID == taskID {
				continue
			}
			out = append(out, it)
		}
		v.items[sid] = out
	}
}

func (v *View) SetActiveTask(sessionID int64, taskID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.activeTask[v.resolve(sessionID)] = taskID
}

// ClearActiveTask clears the indicator only if it still shows taskID.
func (v *View) ClearActiveTask(sessionID int64, taskID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.resolve(sessionID)
	if v.activeTask[id] == taskID {
		delete(v.activeTask, id)
	}
}

func (v *View) ActiveTask(sessionID int64) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.activeTask[v.resolve(sessionID)]
}
