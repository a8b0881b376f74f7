package telegram

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data prefixes. The suffix after the underscore carries the value
// (a time, a symptom code, a score).
const (
	cbEta      = "eta_"
	cbCaution  = "caution_"
	cbHandle   = "handle_"
	cbState    = "state_"
	cbSymptom  = "symptom_"
	cbWouldYou = "wouldyou_"
	cbFurther  = "furthercomments_"
)

// contactKeyboard asks for the volunteer's phone number during onboarding.
func contactKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewOneTimeReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact("Trimite numărul de telefon"),
		),
	)
	return kb
}

// initialResponsesKeyboard is attached to each broadcast: a plain yes/no.
func initialResponsesKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewOneTimeReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton("/Da")),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton("/Nu")),
	)
}

// etaQuickKeyboard offers +30min/+1h/+2h from now, plus "another time" and
// "never mind". The callback data carries the concrete HH:MM so the offer
// survives however long the volunteer stares at the keyboard.
func etaQuickKeyboard(now time.Time) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("În 30min", cbEta+now.Add(30*time.Minute).Format("15:04")),
			tgbotapi.NewInlineKeyboardButtonData("Într-o oră", cbEta+now.Add(time.Hour).Format("15:04")),
			tgbotapi.NewInlineKeyboardButtonData("În 2 ore", cbEta+now.Add(2*time.Hour).Format("15:04")),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Altă oră", cbEta+"later"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Anulează", cbEta+"never"),
		),
	)
}

// etaSlots lists half-hour marks from now until the end of today.
func etaSlots(now time.Time) []string {
	var slots []string
	step := 30 * time.Minute
	for t := now.Add(step); ; t = t.Add(step) {
		slots = append(slots, t.Format("15:04"))
		if t.Day() != now.Day() {
			break
		}
	}
	return slots
}

// etaFullDayKeyboard shows every half-hour slot until the end of the day,
// four options per row.
func etaFullDayKeyboard(now time.Time) tgbotapi.InlineKeyboardMarkup {
	slots := etaSlots(now)

	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(slots); i += 4 {
		end := i + 4
		if end > len(slots) {
			end = len(slots)
		}
		var row []tgbotapi.InlineKeyboardButton
		for _, slot := range slots[i:end] {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(slot, cbEta+slot))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// cautionKeyboard is the health self-check shown to the assignee.
func cautionKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Sunt sănătos și fără simptome", cbCaution+"ok"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Hmm... Mai bine anulez", cbCaution+"cancel"),
		),
	)
}

// handlingKeyboard is shown with the full details: start out, or bail.
func handlingKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("M-am pornit", cbHandle+"onmyway"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Anulează", cbHandle+"cancel"),
		),
	)
}

// inProgressKeyboard is shown after "on my way".
func inProgressKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Misiune îndeplinită", cbHandle+"done"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Anulează", cbHandle+"cancel"),
		),
	)
}

// expensesKeyboard offers the shortcut for volunteers who spent nothing.
func expensesKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Nu am avut cheltuieli sau mi s-au întors banii", cbHandle+"no_expenses"),
		),
	)
}

// wellbeingKeyboard is the 0..4 mood scale for the exit survey.
func wellbeingKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🥵 Foarte rea", cbState+"0"),
			tgbotapi.NewInlineKeyboardButtonData("😟 Rea", cbState+"1"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("😐 Neutră", cbState+"2"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("😃 Bună", cbState+"3"),
			tgbotapi.NewInlineKeyboardButtonData("😁 Foarte bună", cbState+"4"),
		),
	)
}

var symptomLabels = []struct {
	code  string
	label string
}{
	{"fever", "Febră"},
	{"cough", "Tuse"},
	{"heavybreathing", "Respiră greu"},
}

// symptomKeyboard renders the checkbox row from the set of selected symptom
// codes, so the keyboard always reflects the stored survey state rather than
// whatever the last rendered message happened to show.
func symptomKeyboard(selected []string) tgbotapi.InlineKeyboardMarkup {
	isSelected := make(map[string]bool, len(selected))
	for _, code := range selected {
		isSelected[code] = true
	}

	var row []tgbotapi.InlineKeyboardButton
	for _, s := range symptomLabels {
		box := "☐ "
		if isSelected[s.code] {
			box = "☑ "
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(box+s.label, cbSymptom+s.code))
	}

	return tgbotapi.NewInlineKeyboardMarkup(
		row,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👍 Nu are simptome", cbSymptom+"none"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Nu știu", cbSymptom+"noidea"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Mai departe", cbSymptom+"next"),
		),
	)
}

// wouldYouKeyboard is the yes/no for "would you help them again".
func wouldYouKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Da", cbWouldYou+"yes"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Nu", cbWouldYou+"no"),
		),
	)
}

// furtherCommentsKeyboard offers the "nothing to add" shortcut; free text is
// also accepted.
func furtherCommentsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Nu am comentarii", cbFurther+"no"),
		),
	)
}
