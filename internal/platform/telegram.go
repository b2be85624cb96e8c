// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

package platform

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram implements Client against the Telegram Bot API. Quarantine
// maps to a full member restriction, verification lifts it, ban kicks
// the member from the chat.
type Telegram struct {
	bot       *tgbotapi.BotAPI
	chatID    int64
	modChatID int64
}

// NewTelegram connects the bot and validates the token.
func NewTelegram(botToken string, chatID, modChatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("connecting telegram bot: %w", err)
	}
	if modChatID == 0 {
		modChatID = chatID
	}
	return &Telegram{bot: bot, chatID: chatID, modChatID: modChatID}, nil
}

// ResolveMember implements Client.
func (t *Telegram) ResolveMember(_ context.Context, subjectID string) (*Member, error) {
	userID, err := strconv.ParseInt(subjectID, 10, 64)
	if err != nil {
		return nil, ErrMemberNotFound
	}
	member, err := t.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: t.chatID, UserID: userID},
	})
	if err != nil {
		return nil, ErrMemberNotFound
	}
	if member.Status == "left" || member.Status == "kicked" {
		return nil, ErrMemberNotFound
	}
	name := ""
	if member.User != nil {
		name = member.User.FirstName
	}
	return &Member{
		SubjectID:      subjectID,
		DisplayName:    name,
		AccountAgeDays: estimateAccountAgeDays(userID, time.Now()),
	}, nil
}

// AssignQuarantine implements Client.
func (t *Telegram) AssignQuarantine(_ context.Context, subjectID string) error {
	return t.restrict(subjectID, false)
}

// AssignVerified implements Client.
func (t *Telegram) AssignVerified(_ context.Context, subjectID string) error {
	return t.restrict(subjectID, true)
}

// RemoveQuarantine implements Client.
func (t *Telegram) RemoveQuarantine(_ context.Context, subjectID string) error {
	return t.restrict(subjectID, true)
}

// Ban implements Client.
func (t *Telegram) Ban(_ context.Context, subjectID, reason string) error {
	userID, err := strconv.ParseInt(subjectID, 10, 64)
	if err != nil {
		return ErrMemberNotFound
	}
	_, err = t.bot.Request(tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: t.chatID, UserID: userID},
	})
	if err != nil {
		return fmt.Errorf("banning member %s (%s): %w", subjectID, reason, err)
	}
	return nil
}

// ModLog implements Client.
func (t *Telegram) ModLog(_ context.Context, text string) error {
	msg := tgbotapi.NewMessage(t.modChatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("posting mod-log message: %w", err)
	}
	return nil
}

// SendDM delivers a message to the subject directly (verification links).
func (t *Telegram) SendDM(_ context.Context, subjectID, text string) error {
	userID, err := strconv.ParseInt(subjectID, 10, 64)
	if err != nil {
		return ErrMemberNotFound
	}
	msg := tgbotapi.NewMessage(userID, text)
	msg.DisableWebPagePreview = true
	_, err = t.bot.Send(msg)
	return err
}

// Listen consumes platform updates and invokes onJoin for every new
// member until the context is canceled.
func (t *Telegram) Listen(ctx context.Context, onJoin JoinHandler) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := t.bot.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Chat == nil || update.Message.Chat.ID != t.chatID {
				continue
			}
			for _, user := range update.Message.NewChatMembers {
				if user.IsBot {
					continue
				}
				onJoin(ctx, strconv.FormatInt(user.ID, 10))
			}
		}
	}
}

func (t *Telegram) restrict(subjectID string, allow bool) error {
	userID, err := strconv.ParseInt(subjectID, 10, 64)
	if err != nil {
		return ErrMemberNotFound
	}
	perms := &tgbotapi.ChatPermissions{
		CanSendMessages:       allow,
		CanSendMediaMessages:  allow,
		CanSendPolls:          allow,
		CanSendOtherMessages:  allow,
		CanAddWebPagePreviews: allow,
		CanInviteUsers:        allow,
	}
	_, err = t.bot.Request(tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: t.chatID, UserID: userID},
		Permissions:      perms,
	})
	if err != nil {
		slog.Warn("restrict call failed", "subject", subjectID, "allow", allow, "error", err)
		return err
	}
	return nil
}

// idAnchor pairs a Telegram user ID with the approximate registration
// date of accounts created around it. IDs are assigned roughly
// monotonically, which lets us interpolate an account age the API does
// not expose.
type idAnchor struct {
	id int64
	at time.Time
}

var idAnchors = []idAnchor{
	{100_000_000, time.Date(2016, 4, 1, 0, 0, 0, 0, time.UTC)},
	{400_000_000, time.Date(2017, 9, 1, 0, 0, 0, 0, time.UTC)},
	{700_000_000, time.Date(2018, 12, 1, 0, 0, 0, 0, time.UTC)},
	{1_000_000_000, time.Date(2019, 11, 1, 0, 0, 0, 0, time.UTC)},
	{1_500_000_000, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
	{2_000_000_000, time.Date(2021, 9, 1, 0, 0, 0, 0, time.UTC)},
	{5_000_000_000, time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)},
	{6_000_000_000, time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)},
	{7_000_000_000, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)},
}

// estimateAccountAgeDays interpolates a creation date from the user ID.
// IDs below the first anchor count as old accounts; IDs above the last
// anchor count as brand new.
func estimateAccountAgeDays(userID int64, now time.Time) int {
	if userID <= 0 {
		return UnknownAccountAge
	}
	if userID <= idAnchors[0].id {
		return UnknownAccountAge
	}
	last := idAnchors[len(idAnchors)-1]
	if userID >= last.id {
		return 0
	}
	for i := 1; i < len(idAnchors); i++ {
		if userID < idAnchors[i].id {
			lo, hi := idAnchors[i-1], idAnchors[i]
			frac := float64(userID-lo.id) / float64(hi.id-lo.id)
			created := lo.at.Add(time.Duration(frac * float64(hi.at.Sub(lo.at))))
			days := int(now.Sub(created).Hours() / 24)
			if days < 0 {
				return 0
			}
			return days
		}
	}
	return 0
}
