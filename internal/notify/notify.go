package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/EllysonAlves/follower/internal/api"
	"github.com/EllysonAlves/follower/internal/logger"
)

type Severity string

const (
	Success Severity = "success"
	Info    Severity = "info"
	Warning Severity = "warning"
	Error   Severity = "error"
)

// Notice is one transient message shown to the user.
type Notice struct {
	Severity Severity
	Title    string
	Message  string
	Visible  time.Duration
}

// Notifier shows notices. Implementations must not coalesce them.
type Notifier interface {
	Notify(n Notice)
}

const (
	msgServer  = "The service is having a temporary problem. Please try again later."
	msgNetwork = "Could not reach the service. Check your connection."
	msgUnknown = "Something went wrong. Please try again."
)

// New builds a notice with the default title and visibility for its severity.
func New(sev Severity, msg string) Notice {
	n := Notice{Severity: sev, Message: msg, Visible: 4 * time.Second}
	switch sev {
	case Success:
		n.Title = "Success"
	case Info:
		n.Title = "Information"
	case Warning:
		n.Title = "Warning"
	case Error:
		n.Title = "Error"
		n.Visible = 5 * time.Second
	}
	return n
}

// ForError builds the single notice for a failed action. conflictMsg is used
// for the "already applied" case, fallback for failures without a better text.
func ForError(err error, conflictMsg, fallback string) Notice {
	switch api.Classify(err) {
	case api.KindConflict:
		return New(Info, conflictMsg)
	case api.KindValidation:
		return New(Warning, err.Error())
	case api.KindClient:
		if msg := api.ServerMessage(err); msg != "" {
			return New(Error, msg)
		}
		if fallback != "" {
			return New(Error, fmt.Sprintf("%s (status %d)", fallback, api.StatusOf(err)))
		}
		return New(Error, fmt.Sprintf("Request failed (status %d)", api.StatusOf(err)))
	case api.KindServer:
		return New(Error, msgServer)
	case api.KindNetwork:
		return New(Error, msgNetwork)
	default:
		if fallback != "" {
			return New(Error, fallback)
		}
		return New(Error, msgUnknown)
	}
}

// LogNotifier writes notices through the structured logger.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(l *logger.Logger) *LogNotifier {
	if l == nil {
		l = logger.New()
	}
	return &LogNotifier{log: l}
}

func (n *LogNotifier) Notify(nt Notice) {
	msg := nt.Title + ": " + nt.Message
	switch nt.Severity {
	case Error:
		n.log.Error("notify", msg, nil)
	case Warning:
		n.log.Warn("notify", msg, nil)
	default:
		n.log.Info("notify", msg)
	}
}

// Recorder keeps every notice; tests inspect it.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = nil
}

// Discard drops every notice.
type Discard struct{}

func (Discard) Notify(Notice) {}
