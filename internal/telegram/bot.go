package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/code4md/ajubot/internal/conversation"
	"github.com/code4md/ajubot/internal/models"
)

// StateReader is the read-only slice of the volunteer directory the adapter
// needs for the /status debug command and for routing free-text messages.
type StateReader interface {
	Get(chatID int64) (*models.Volunteer, error)
}

// Bot adapts Telegram traffic to and from the coordination core: inbound
// updates become normalised events for the conversation machine, and outbound
// message kinds are rendered into localized text and keyboards.
type Bot struct {
	log     zerolog.Logger
	api     *tgbotapi.BotAPI
	machine *conversation.Machine
	states  StateReader
	http    *http.Client
}

func New(token string, states StateReader, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	log.Info().Str("account", api.Self.UserName).Msg("authorized on Telegram")

	return &Bot{
		log:    log.With().Str("component", "telegram").Logger(),
		api:    api,
		states: states,
		http:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// AttachMachine wires in the conversation machine. The bot is constructed
// before the machine (the machine wants the bot as its notifier), so this
// runs once during startup, before Run.
func (b *Bot) AttachMachine(m *conversation.Machine) {
	b.machine = m
}

// Run consumes updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(update)
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(update.Message)
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	if msg.Contact != nil {
		b.dispatch(chatID, models.EventContact, conversation.Payload{
			Username: msg.From.UserName,
			FullName: strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName),
			Phone:    msg.Contact.PhoneNumber,
		})
		return
	}

	if len(msg.Photo) > 0 {
		b.handlePhoto(msg)
		return
	}

	if msg.Text != "" {
		b.handleText(chatID, msg.Text)
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.dispatch(chatID, models.EventStart, conversation.Payload{
			Username: msg.From.UserName,
			FullName: strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName),
		})
	case "help":
		b.send(chatID, msgHelp, nil)
	case "about":
		b.send(chatID, msgAbout, nil)
	case "vreausaajut":
		b.send(chatID, msgStandby, nil)
	case "status":
		b.sendStatus(chatID)
	case "Da":
		b.dispatch(chatID, models.EventAccept, conversation.Payload{})
	case "Nu":
		b.dispatch(chatID, models.EventReject, conversation.Payload{})
	default:
		b.send(chatID, msgUnknownOrder, nil)
	}
}

// sendStatus dumps the volunteer's state. Debugging aid, mirrors /introspect
// but scoped to the asking volunteer.
func (b *Bot) sendStatus(chatID int64) {
	vol, err := b.states.Get(chatID)
	if err != nil {
		b.send(chatID, "State: unregistered", nil)
		return
	}
	b.send(chatID, fmt.Sprintf("State: %s\nRequest: %s", vol.State, vol.CurrentRequestID), nil)
}

// handleText routes free text by the volunteer's current state: it is either
// the amount they spent or their closing comments.
func (b *Bot) handleText(chatID int64, text string) {
	vol, err := b.states.Get(chatID)
	if err != nil {
		b.log.Debug().Int64("chat_id", chatID).Msg("text from unknown volunteer")
		return
	}

	switch vol.State {
	case models.StateExpectingAmount:
		b.dispatch(chatID, models.EventAmountText, conversation.Payload{Text: text})
	case models.StateExpectingFurtherComments:
		b.dispatch(chatID, models.EventFurtherComments, conversation.Payload{Text: text})
	default:
		b.log.Debug().Int64("chat_id", chatID).Str("state", string(vol.State)).
			Msg("unexpected text message")
	}
}

func (b *Bot) handlePhoto(msg *tgbotapi.Message) {
	// Telegram sends several sizes of the same photo; take the largest.
	largest := msg.Photo[len(msg.Photo)-1]
	data, err := b.downloadFile(largest.FileID)
	if err != nil {
		b.log.Warn().Err(err).Int64("chat_id", msg.Chat.ID).Msg("photo download failed")
		return
	}

	b.dispatch(msg.Chat.ID, models.EventReceiptPhoto, conversation.Payload{
		Photos: [][]byte{data},
	})
}

func (b *Bot) downloadFile(fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, err
	}

	resp, err := b.http.Get(file.Link(b.api.Token))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (b *Bot) handleCallback(q *tgbotapi.CallbackQuery) {
	// Telegram omits Message for callbacks on messages older than 48 hours.
	if q.Message == nil {
		b.log.Warn().Str("data", q.Data).Msg("callback without message, ignoring")
		return
	}

	chatID := q.Message.Chat.ID
	data := q.Data

	// Dismiss the spinner on the button.
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.log.Debug().Err(err).Msg("callback ack failed")
	}

	switch {
	case data == cbEta+"never":
		b.dispatch(chatID, models.EventEtaCancel, conversation.Payload{})
	case data == cbEta+"later":
		b.dispatch(chatID, models.EventEtaLater, conversation.Payload{})
	case strings.HasPrefix(data, cbEta):
		b.dispatch(chatID, models.EventEtaChoice, conversation.Payload{
			Code: strings.TrimPrefix(data, cbEta),
		})
	case data == cbCaution+"ok":
		b.dispatch(chatID, models.EventHealthOK, conversation.Payload{})
	case data == cbCaution+"cancel":
		b.dispatch(chatID, models.EventHealthCancel, conversation.Payload{})
	case data == cbHandle+"onmyway":
		b.dispatch(chatID, models.EventOnMyWay, conversation.Payload{})
	case data == cbHandle+"done":
		b.dispatch(chatID, models.EventDone, conversation.Payload{})
	case data == cbHandle+"no_expenses":
		b.dispatch(chatID, models.EventNoExpenses, conversation.Payload{})
	case data == cbHandle+"cancel":
		b.dispatch(chatID, models.EventCancelInProgress, conversation.Payload{})
	case strings.HasPrefix(data, cbState):
		score, err := strconv.Atoi(strings.TrimPrefix(data, cbState))
		if err != nil {
			b.log.Warn().Str("data", data).Msg("malformed wellbeing callback")
			return
		}
		b.dispatch(chatID, models.EventWellbeingChoice, conversation.Payload{Wellbeing: score})
	case strings.HasPrefix(data, cbSymptom):
		b.dispatch(chatID, models.EventSymptomToggle, conversation.Payload{
			Code:      strings.TrimPrefix(data, cbSymptom),
			MessageID: q.Message.MessageID,
		})
	case strings.HasPrefix(data, cbWouldYou):
		b.dispatch(chatID, models.EventWouldReturnChoice, conversation.Payload{
			WouldReturn: data == cbWouldYou+"yes",
		})
	case data == cbFurther+"no":
		b.dispatch(chatID, models.EventFurtherCommentsNone, conversation.Payload{})
	default:
		b.log.Warn().Str("data", data).Msg("unknown callback data")
	}
}

func (b *Bot) dispatch(chatID int64, ev models.Event, p conversation.Payload) {
	if err := b.machine.HandleEvent(chatID, ev, p); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Str("event", string(ev)).
			Msg("event handling failed")
	}
}

// Notify renders and delivers a message kind. This is the outbound half of
// the adapter, used by the engine, the conversation machine and the reporter.
func (b *Bot) Notify(chatID int64, kind models.MessageKind, ctx models.MessageContext) error {
	switch kind {
	case models.MsgPhoneQuery:
		return b.send(chatID, msgPhoneQuery, contactKeyboard())
	case models.MsgStandby:
		return b.send(chatID, msgStandby, nil)
	case models.MsgBroadcast:
		return b.send(chatID, broadcastText(ctx.Request), initialResponsesKeyboard())
	case models.MsgEtaOptions:
		return b.send(chatID, msgChooseTime, etaQuickKeyboard(time.Now().UTC()))
	case models.MsgEtaFullDay:
		return b.send(chatID, msgChooseTime, etaFullDayKeyboard(time.Now().UTC()))
	case models.MsgOfferAck:
		return b.send(chatID, fmt.Sprintf(msgAckTime, ctx.OfferTime)+msgCoordinating, nil)
	case models.MsgThanksNoThanks:
		return b.send(chatID, msgThanksNoThx, nil)
	case models.MsgAnotherAssignee:
		return b.send(chatID, msgAnotherVol, nil)
	case models.MsgHealthCaution:
		return b.send(chatID, msgCaution, cautionKeyboard())
	case models.MsgFullDetails:
		return b.sendFullDetails(chatID, ctx.Request)
	case models.MsgInProgressPrompt:
		text := fmt.Sprintf("%s\n\n%s\n\np.s. %s", msgSafety, msgLetMeArrive, msgSafetyPS)
		return b.send(chatID, text, inProgressKeyboard())
	case models.MsgExpensesPrompt:
		return b.send(chatID, msgThanksFeed+"\n\n"+msgExpenses, expensesKeyboard())
	case models.MsgReceiptPrompt:
		return b.send(chatID, msgReceipt, nil)
	case models.MsgWellbeingQuery:
		return b.send(chatID, fmt.Sprintf(msgMood, ctx.Request.Beneficiary), wellbeingKeyboard())
	case models.MsgSymptomQuery:
		return b.send(chatID, fmt.Sprintf(msgSymptoms, ctx.Request.Beneficiary), symptomKeyboard(nil))
	case models.MsgSymptomUpdate:
		return b.editKeyboard(chatID, ctx.MessageID, symptomKeyboard(ctx.Symptoms))
	case models.MsgWouldReturnQuery:
		return b.send(chatID, fmt.Sprintf(msgWouldYou, ctx.Request.Beneficiary), wouldYouKeyboard())
	case models.MsgFurtherComments:
		return b.send(chatID, fmt.Sprintf(msgFurther, ctx.Request.Beneficiary), furtherCommentsKeyboard())
	case models.MsgThanksFinal:
		return b.send(chatID, msgThanksFinal, nil)
	case models.MsgNoWorriesLater:
		return b.send(chatID, msgNoWorries, nil)
	case models.MsgRequestCancelled:
		return b.send(chatID, msgReqCancelled, nil)
	case models.MsgHelp:
		return b.send(chatID, msgHelp, nil)
	case models.MsgAbout:
		return b.send(chatID, msgAbout, nil)
	default:
		return b.send(chatID, msgUnknownOrder, nil)
	}
}

// sendFullDetails reveals the address and details, preceded by a location pin
// when the request carries coordinates.
func (b *Bot) sendFullDetails(chatID int64, req *models.Request) error {
	if req.HasLocation {
		loc := tgbotapi.NewLocation(chatID, req.Latitude, req.Longitude)
		if _, err := b.api.Send(loc); err != nil {
			b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("location send failed")
		}
	}
	return b.send(chatID, fullDetailsText(req), handlingKeyboard())
}

func (b *Bot) send(chatID int64, text string, keyboard any) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("error sending message")
		return err
	}
	return nil
}

func (b *Bot) editKeyboard(chatID int64, messageID int, kb tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, kb)
	if _, err := b.api.Request(edit); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("error updating keyboard")
		return err
	}
	return nil
}
