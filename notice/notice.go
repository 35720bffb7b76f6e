// Package notice carries user-facing, non-blocking session notices (the
// toasts of the web client) from the session layer to whatever renders them.
package notice

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Kind identifies the condition that raised a notice.
type Kind int

const (
	// SessionExpired is raised on local expiry, a malformed token or a 401/403 from the profile lookup.
	SessionExpired Kind = iota
	// LoginRequired is raised when a gate turns away an anonymous request.
	LoginRequired
	// Forbidden is raised when a gate turns away a user without the required role.
	Forbidden
	// ExpiringSoon is raised once per token when the warning window opens.
	ExpiringSoon
	// ServiceDegraded is raised when the profile lookup keeps failing transiently.
	ServiceDegraded
	// LoginFailed is raised when the REST API rejects a sign-in attempt.
	LoginFailed
)

func (k Kind) String() string {
	switch k {
	case SessionExpired:
		return "session_expired"
	case LoginRequired:
		return "login_required"
	case Forbidden:
		return "forbidden"
	case ExpiringSoon:
		return "expiring_soon"
	case ServiceDegraded:
		return "service_degraded"
	case LoginFailed:
		return "login_failed"
	default:
		return "unknown"
	}
}

// Notice is a single user-facing message.
type Notice struct {
	ID        string
	Kind      Kind
	Remaining time.Duration // set for ExpiringSoon
	At        time.Time
}

// New returns a notice of kind stamped with a fresh id.
func New(kind Kind, at time.Time) Notice {
	return Notice{ID: uuid.NewString(), Kind: kind, At: at}
}

// Expiring returns an ExpiringSoon notice for the given remaining lifetime.
func Expiring(remaining time.Duration, at time.Time) Notice {
	n := New(ExpiringSoon, at)
	n.Remaining = remaining
	return n
}

// Notifier receives notices. Implementations must not block the caller.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Notifier = NotifierFunc(func(Notice) {})

// Multi fans a notice out to several notifiers in order.
func Multi(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(n Notice) {
		for _, nt := range notifiers {
			nt.Notify(n)
		}
	})
}

const (
	sessionExpiredMsg  = "Your session has expired, please log in again."
	loginRequiredMsg   = "Please log in first."
	forbiddenMsg       = "You do not have permission to view this page."
	expiringSoonMsg    = "Your session expires in %d minutes."
	serviceDegradedMsg = "The campus service is not responding; your session is kept for now."
	loginFailedMsg     = "Login failed, check your ID and password."
)

func init() {
	zh := language.SimplifiedChinese
	_ = message.SetString(zh, sessionExpiredMsg, "登录已过期，请重新登录")
	_ = message.SetString(zh, loginRequiredMsg, "请先登录")
	_ = message.SetString(zh, forbiddenMsg, "您没有访问该页面的权限")
	_ = message.SetString(zh, expiringSoonMsg, "登录将在%d分钟后过期")
	_ = message.SetString(zh, serviceDegradedMsg, "服务暂时不可用，已保留当前登录状态")
	_ = message.SetString(zh, loginFailedMsg, "登录失败，请检查学号和密码")
}

// Message renders the notice in the given language.
func (n Notice) Message(tag language.Tag) string {
	p := message.NewPrinter(tag)
	switch n.Kind {
	case SessionExpired:
		return p.Sprintf(sessionExpiredMsg)
	case LoginRequired:
		return p.Sprintf(loginRequiredMsg)
	case Forbidden:
		return p.Sprintf(forbiddenMsg)
	case ExpiringSoon:
		minutes := int64((n.Remaining + time.Minute - 1) / time.Minute)
		return p.Sprintf(expiringSoonMsg, minutes)
	case ServiceDegraded:
		return p.Sprintf(serviceDegradedMsg)
	case LoginFailed:
		return p.Sprintf(loginFailedMsg)
	default:
		return ""
	}
}
