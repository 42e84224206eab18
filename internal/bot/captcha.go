package bot

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	captchaTokenLen   = 5
	captchaDecoyCount = 5
	captchaWarnBefore = time.Minute
	captchaTokenChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type captchaKey struct {
	userID int64
	chatID int64
}

type captchaChallenge struct {
	id      string
	correct string
	cancel  context.CancelFunc
}

// captchaGate tracks users who joined a gated group and have not yet
// pressed the right button. Every challenge has a unique ID, and both the
// solve path and the expiry path re-check that ID under the lock before
// acting, so exactly one of them removes the pending record.
type captchaGate struct {
	bot     *Bot
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[captchaKey]*captchaChallenge
}

func newCaptchaGate(b *Bot, timeout time.Duration, logger *zap.Logger) *captchaGate {
	return &captchaGate{
		bot:     b,
		timeout: timeout,
		logger:  logger,
		pending: make(map[captchaKey]*captchaChallenge),
	}
}

func randomToken() string {
	buf := make([]byte, captchaTokenLen)
	for i := range buf {
		buf[i] = captchaTokenChars[rand.IntN(len(captchaTokenChars))]
	}
	return string(buf)
}

// Issue challenges a newly joined user: one correct token among decoys,
// a countdown, and a kick if nothing correct is pressed in time. A second
// Issue for the same user and chat replaces the first challenge.
func (g *captchaGate) Issue(ctx context.Context, user *tgbotapi.User, chatID int64) error {
	correct := randomToken()
	tokens := []string{correct}
	for len(tokens) < 1+captchaDecoyCount {
		t := randomToken()
		if t == correct {
			continue
		}
		tokens = append(tokens, t)
	}
	rand.Shuffle(len(tokens), func(i, j int) {
		tokens[i], tokens[j] = tokens[j], tokens[i]
	})

	ch := &captchaChallenge{id: uuid.NewString(), correct: correct}
	timerCtx, cancel := context.WithCancel(ctx)
	ch.cancel = cancel

	key := captchaKey{userID: user.ID, chatID: chatID}
	g.mu.Lock()
	if prev, ok := g.pending[key]; ok {
		prev.cancel()
	}
	g.pending[key] = ch
	g.mu.Unlock()

	if err := g.bot.db.AddPendingCaptcha(ctx, user.ID, chatID); err != nil {
		g.take(key, ch.id)
		cancel()
		return fmt.Errorf("failed to record pending captcha: %w", err)
	}
	g.setMuted(user.ID, chatID, true)

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(tokens))
	for _, t := range tokens {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(t, encodeCaptcha(ch.id, t)),
		))
	}
	text := fmt.Sprintf("%s, to chat here press the button with the code %s within %d minutes.",
		displayName(user), correct, int(g.timeout.Minutes()))
	g.bot.sendWithKeyboard(chatID, text, tgbotapi.NewInlineKeyboardMarkup(rows...))

	go g.watch(timerCtx, key, ch.id, user)
	return nil
}

// setMuted restricts or restores the user's posting rights. Restriction is
// best-effort: message deletion in the group handler backs it up while the
// restriction propagates or when the bot lacks the right.
func (g *captchaGate) setMuted(userID, chatID int64, muted bool) {
	allowed := !muted
	restrict := tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		Permissions: &tgbotapi.ChatPermissions{
			CanSendMessages:       allowed,
			CanSendMediaMessages:  allowed,
			CanSendOtherMessages:  allowed,
			CanAddWebPagePreviews: allowed,
		},
	}
	if _, err := g.bot.api.Request(restrict); err != nil {
		g.logger.Warn("Failed to change member restrictions",
			zap.Int64("user_id", userID), zap.Int64("chat_id", chatID),
			zap.Bool("muted", muted), zap.Error(err))
	}
}

// watch waits out the captcha timeout, warning one minute before the end,
// and kicks the user if the challenge is still the live one when it fires.
func (g *captchaGate) watch(ctx context.Context, key captchaKey, challengeID string, user *tgbotapi.User) {
	wait := g.timeout
	if g.timeout > captchaWarnBefore {
		select {
		case <-ctx.Done():
			return
		case <-time.After(g.timeout - captchaWarnBefore):
		}
		if g.isLive(key, challengeID) {
			g.bot.sendText(key.chatID, fmt.Sprintf("%s, one minute left to press the code button.", displayName(user)))
		}
		wait = captchaWarnBefore
	}
	select {
	case <-ctx.Done():
		return
	case <-time.After(wait):
	}
	g.expire(ctx, key, challengeID, user)
}

func (g *captchaGate) isLive(key captchaKey, challengeID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.pending[key]
	return ok && ch.id == challengeID
}

// take removes and returns the challenge iff challengeID is still the live
// one for key. Expiry goes through here; Solve does the same check-and-delete
// inline while it also verifies the token.
func (g *captchaGate) take(key captchaKey, challengeID string) (*captchaChallenge, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.pending[key]
	if !ok || ch.id != challengeID {
		return nil, false
	}
	delete(g.pending, key)
	return ch, true
}

func (g *captchaGate) expire(ctx context.Context, key captchaKey, challengeID string, user *tgbotapi.User) {
	ch, ok := g.take(key, challengeID)
	if !ok {
		return // solved or superseded in the meantime
	}
	ch.cancel()
	// ctx is the timer context cancelled just above; the kick and the
	// pending-row cleanup must not die with it.
	ctx = context.WithoutCancel(ctx)

	kick := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: key.chatID, UserID: key.userID},
	}
	if _, err := g.bot.api.Request(kick); err != nil {
		g.logger.Error("Failed to kick unverified user",
			zap.Int64("user_id", key.userID), zap.Int64("chat_id", key.chatID), zap.Error(err))
	} else {
		// Unban so the user can rejoin later and try again.
		unban := tgbotapi.UnbanChatMemberConfig{
			ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: key.chatID, UserID: key.userID},
			OnlyIfBanned:     true,
		}
		if _, err := g.bot.api.Request(unban); err != nil {
			g.logger.Warn("Failed to unban kicked user", zap.Int64("user_id", key.userID), zap.Error(err))
		}
		g.bot.sendText(key.chatID, fmt.Sprintf("%s was removed: captcha not solved in time.", displayName(user)))
	}

	// Clear the pending record even when the kick failed, otherwise the
	// user's messages stay suppressed forever.
	if err := g.bot.db.RemovePendingCaptcha(ctx, key.userID, key.chatID); err != nil {
		g.logger.Error("Failed to clear pending captcha",
			zap.Int64("user_id", key.userID), zap.Int64("chat_id", key.chatID), zap.Error(err))
	}
}

// Solve handles a captcha button press. It returns whether the press
// belonged to a live challenge and, if so, whether the token was correct.
// A wrong token does not consume the challenge; the user may keep trying
// until the timer fires.
func (g *captchaGate) Solve(ctx context.Context, userID, chatID int64, challengeID, token string) (passed, live bool) {
	key := captchaKey{userID: userID, chatID: chatID}

	g.mu.Lock()
	ch, ok := g.pending[key]
	if !ok || ch.id != challengeID {
		g.mu.Unlock()
		return false, false
	}
	if ch.correct != token {
		g.mu.Unlock()
		return false, true
	}
	delete(g.pending, key)
	g.mu.Unlock()

	ch.cancel()
	g.setMuted(userID, chatID, false)
	if err := g.bot.db.RemovePendingCaptcha(ctx, userID, chatID); err != nil {
		g.logger.Error("Failed to clear pending captcha",
			zap.Int64("user_id", userID), zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return true, true
}

// Shutdown cancels all outstanding timers. Pending DB records stay, so a
// restart can re-issue challenges.
func (g *captchaGate) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ch := range g.pending {
		ch.cancel()
	}
	g.pending = make(map[captchaKey]*captchaChallenge)
}
