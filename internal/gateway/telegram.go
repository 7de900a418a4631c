package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rahul/digibiz/internal/governance"
	"github.com/rahul/digibiz/internal/mission"
	"github.com/rahul/digibiz/internal/store"
)

type TelegramGateway struct {
	Bot       *tgbotapi.BotAPI
	Missions  Missions
	Policy    governance.PolicyEngine
	sanitizer *bluemonday.Policy
}

var _ Messenger = (*TelegramGateway)(nil)

func NewTelegramGateway(token string, missions Missions, policy governance.PolicyEngine) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &TelegramGateway{
		Bot:       bot,
		Missions:  missions,
		Policy:    policy,
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)

		reply := tg.handle(context.Background(), update.Message.Chat.ID, update.Message.Text)
		msg := tgbotapi.NewMessage(update.Message.Chat.ID, reply)
		if _, err := tg.Bot.Send(msg); err != nil {
			log.Printf("telegram send: %v", err)
		}
	}
	return nil
}

// BusinessID is the business a chat acts for.
func BusinessID(chatID int64) string {
	return fmt.Sprintf("tg-%d", chatID)
}

const telegramHelp = `Commands:
/mission <describe your business and its problems>
/progress
/evidence <missionId> <type> <description>`

func (tg *TelegramGateway) handle(ctx context.Context, chatID int64, text string) string {
	businessID := BusinessID(chatID)
	cmd, args, _ := strings.Cut(strings.TrimSpace(text), " ")
	args = plainText(tg.sanitizer, args)

	switch cmd {
	case "/mission":
		if args == "" {
			return "Tell me about your business: /mission <description>"
		}
		if reason, ok := tg.allowed(ctx, "start", businessID, args); !ok {
			return reason
		}
		res, err := tg.Missions.StartMission(ctx, mission.StartRequest{BusinessID: businessID, Description: args})
		if err != nil {
			return failureText(err)
		}
		return formatStart(res)

	case "/progress":
		p, err := tg.Missions.Progress(ctx, businessID)
		if errors.Is(err, mission.ErrProcessNotFound) {
			return "No mission yet. Start one with /mission <description>."
		}
		if err != nil {
			return failureText(err)
		}
		return formatProgress(p)

	case "/evidence":
		fields := strings.SplitN(args, " ", 3)
		if len(fields) < 3 {
			return "Usage: /evidence <missionId> <type> <description>"
		}
		if reason, ok := tg.allowed(ctx, "validate", businessID, fields[2]); !ok {
			return reason
		}
		res, err := tg.Missions.ValidateEvidence(ctx, businessID, map[string]any{
			"type":        fields[1],
			"description": fields[2],
		}, fields[0])
		if errors.Is(err, mission.ErrProcessNotFound) {
			return "No mission yet. Start one with /mission <description>."
		}
		if err != nil {
			return failureText(err)
		}
		verdict := "Not approved yet."
		if res.Approved {
			verdict = "Approved!"
		}
		return fmt.Sprintf("%s %s\nProgress: %d%%", verdict, res.Feedback, mission.Project(res.Process).Progress)

	default:
		return telegramHelp
	}
}

func (tg *TelegramGateway) allowed(ctx context.Context, op, businessID, text string) (string, bool) {
	if tg.Policy == nil {
		return "", true
	}
	res, err := tg.Policy.Evaluate(ctx, governance.Request{Operation: op, BusinessID: businessID, Text: text})
	if err != nil {
		return failureText(err), false
	}
	if res.Denied() {
		return res.Reason, false
	}
	return "", true
}

func failureText(err error) string {
	if errors.Is(err, store.ErrVersionConflict) {
		return "Something else updated your mission at the same time, please try again."
	}
	log.Printf("telegram: %v", err)
	return "I'm having trouble with that right now..."
}

func formatStart(res *mission.StartResult) string {
	var b strings.Builder
	name, _ := res.Mission["mission_name"].(string)
	if name == "" && res.Process.ActiveMission != nil {
		name = *res.Process.ActiveMission
	}
	fmt.Fprintf(&b, "Your mission: %s\n", name)
	if steps, ok := res.Execution["steps"].([]any); ok {
		for i, s := range steps {
			fmt.Fprintf(&b, "%d. %v\n", i+1, s)
		}
	}
	if res.Process.ActiveMission != nil {
		fmt.Fprintf(&b, "When done, send /evidence %s <type> <description>", *res.Process.ActiveMission)
	}
	return b.String()
}

func formatProgress(p mission.Progress) string {
	active := "none"
	if p.ActiveMission != nil {
		active = *p.ActiveMission
	}
	return fmt.Sprintf("Level: %s\nActive mission: %s\nCompleted: %d\nProgress: %d%%",
		p.CurrentLevel, active, len(p.CompletedMissions), p.Progress)
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(strings.TrimPrefix(chatID, "tg-"), 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = "Markdown"
	_, err = tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
