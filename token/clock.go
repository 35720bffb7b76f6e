package token

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// IsExpired reports whether the token can no longer be used at now. A missing
// payload or a missing exp claim counts as expired, and exp == now is expired.
func IsExpired(p *Payload, now time.Time) bool {
	exp, ok := p.Expiry()
	if !ok {
		return true
	}
	return exp <= now.Unix()
}

// IsExpiringSoon reports whether now has reached the warning window that
// opens window before exp. It does not check hard expiry; callers do that
// separately. A payload without exp is always inside the window.
func IsExpiringSoon(p *Payload, now time.Time, window time.Duration) bool {
	exp, ok := p.Expiry()
	if !ok {
		return true
	}
	return now.Unix() >= exp-int64(window/time.Second)
}

// RemainingSeconds returns max(0, exp-now).
func RemainingSeconds(p *Payload, now time.Time) int64 {
	exp, ok := p.Expiry()
	if !ok {
		return 0
	}
	remaining := exp - now.Unix()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Format keys double as the English rendering.
const (
	expiredKey       = "expired"
	hoursMinutesKey  = "%dh %dm"
	minutesSecondKey = "%dm %ds"
	secondsKey       = "%ds"
)

func init() {
	zh := language.SimplifiedChinese
	_ = message.SetString(zh, expiredKey, "已过期")
	_ = message.SetString(zh, hoursMinutesKey, "%d小时%d分钟")
	_ = message.SetString(zh, minutesSecondKey, "%d分钟%d秒")
	_ = message.SetString(zh, secondsKey, "%d秒")
}

// FormatRemaining renders a remaining lifetime in English.
func FormatRemaining(seconds int64) string {
	return FormatRemainingIn(language.English, seconds)
}

// FormatRemainingIn renders a remaining lifetime for the given language:
// hours and minutes above an hour, minutes and seconds above a minute,
// otherwise seconds. Zero or less renders as the expired label.
func FormatRemainingIn(tag language.Tag, seconds int64) string {
	p := message.NewPrinter(tag)
	if seconds <= 0 {
		return p.Sprintf(expiredKey)
	}

	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	switch {
	case hours > 0:
		return p.Sprintf(hoursMinutesKey, hours, minutes)
	case minutes > 0:
		return p.Sprintf(minutesSecondKey, minutes, secs)
	default:
		return p.Sprintf(secondsKey, secs)
	}
}
