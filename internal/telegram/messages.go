package telegram

import (
	"fmt"
	"strings"

	"github.com/code4md/ajubot/internal/models"
)

// User-facing copy, in Romanian like the audience it serves.
const (
	msgHelp          = "Încearcă comanda /vreausaajut"
	msgAbout         = "Ajubot, code4md.com"
	msgStandby       = "Mulțumesc! Te vom alerta când apar cereri noi."
	msgPhoneQuery    = "Te rog să ne transmiți numărul de telefon, pentru a finaliza înregistrarea."
	msgChooseTime    = "Alege timpul"
	msgThanksNoThx   = "Mulțumim oricum! Te vom contacta când apar cereri noi."
	msgCoordinating  = " Coordonăm răspunsurile și revenim cu o confirmare."
	msgAnotherVol    = "Un alt voluntar a preluat cererea. Mulțumim pentru disponibilitate!"
	msgCaution       = "Ți-a fost repartizată această cerere. Înainte de a porni, confirmă că ești sănătos și nu ai simptome."
	msgLetMeKnow     = "Anunță-mă când te pornești."
	msgLetMeArrive   = "Anunță-mă când ai ajuns și ai terminat."
	msgSafety        = "Poartă mască și mănuși, păstrează distanța de cel puțin un metru."
	msgSafetyPS      = "Dezinfectează-ți mâinile după fiecare interacțiune."
	msgThanksFeed    = "Mulțumim pentru ajutor!"
	msgExpenses      = "Ai avut cheltuieli? Scrie suma în MDL, de exemplu: 250"
	msgReceipt       = "Te rog să trimiți o poză a bonului de cumpărături."
	msgMood          = "Cum ți s-a părut starea persoanei pe care ai ajutat-o (%s)?"
	msgSymptoms      = "Ai observat careva din aceste simptome la %s?"
	msgWouldYou      = "Ai mai ajuta persoana aceasta (%s) și în viitor?"
	msgFurther       = "Ai careva comentarii despre %s, utile pentru alți voluntari?"
	msgThanksFinal   = "Mulțumim mult! Ne-ai fost de mare ajutor."
	msgNoWorries     = "Nicio problemă, poate data viitoare."
	msgReqCancelled  = "Cererea a fost anulată de către beneficiar."
	msgOtherRemarks  = "Alte remarci de la voluntarii anteriori:"
	msgUnknownOrder  = "Nu am înțeles comanda. Încearcă /help."
	msgAnnouncement  = "O persoană din %s are nevoie de:\n%s\nPoți ajuta?"
	msgAckTime       = "Am notat ora %s."
)

// broadcastText renders the initial announcement sent to each candidate. The
// address is shown, but not the beneficiary's full details; those come only
// after assignment and the health check.
func broadcastText(req *models.Request) string {
	var needs strings.Builder
	for _, item := range req.Needs {
		needs.WriteString("- " + item + "\n")
	}
	return fmt.Sprintf(msgAnnouncement, req.Address, needs.String())
}

// fullDetailsText renders everything the assignee needs to execute the
// request, including remarks accumulated from previous volunteers.
func fullDetailsText(req *models.Request) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Beneficiar: %s\nAdresa: %s\n", req.Beneficiary, req.Address))
	if req.ScheduledTime != "" {
		sb.WriteString(fmt.Sprintf("Ora stabilită: %s\n", req.ScheduledTime))
	}
	sb.WriteString("Are nevoie de:\n")
	for _, item := range req.Needs {
		sb.WriteString("- " + item + "\n")
	}
	if len(req.Remarks) > 0 {
		sb.WriteString("\n" + msgOtherRemarks + "\n")
		for _, remark := range req.Remarks {
			sb.WriteString("- " + remark + "\n")
		}
	}
	sb.WriteString("\n" + msgLetMeKnow)
	return sb.String()
}
