package i18n

import (
	"golang.org/x/text/language"
)

// Message keys for payment processor errors.
const (
	MsgCardDeclined        = "payment.card_declined"
	MsgInsufficientFunds   = "payment.insufficient_funds"
	MsgExpiredCard         = "payment.expired_card"
	MsgIncorrectCVC        = "payment.incorrect_cvc"
	MsgProcessingError     = "payment.processing_error"
	MsgInvalidRequest      = "payment.invalid_request"
	MsgGatewayUnavailable  = "payment.gateway_unavailable"
	MsgRefundExceedsAmount = "payment.refund_exceeds_amount"
)

// Message keys for transactional email.
const (
	MsgInvitationSubject = "email.invitation_subject"
	MsgInvitationBody    = "email.invitation_body"
	MsgInvitationAction  = "email.invitation_action"
)

var supported = []language.Tag{
	language.English,
	language.BrazilianPortuguese,
	language.Spanish,
}

var catalog = map[language.Tag]map[string]string{
	language.English: {
		MsgCardDeclined:        "Your card was declined.",
		MsgInsufficientFunds:   "Your card has insufficient funds.",
		MsgExpiredCard:         "Your card has expired.",
		MsgIncorrectCVC:        "Your card's security code is incorrect.",
		MsgProcessingError:     "An error occurred while processing the payment. Please try again.",
		MsgInvalidRequest:      "The payment request was invalid.",
		MsgGatewayUnavailable:  "The payment service is temporarily unavailable.",
		MsgRefundExceedsAmount: "The refund amount exceeds the refundable balance.",
		MsgInvitationSubject:   "You have been invited to join %s",
		MsgInvitationBody:      "%s invited you to join %s as %s. The invitation expires on %s.",
		MsgInvitationAction:    "Accept invitation",
	},
	language.BrazilianPortuguese: {
		MsgCardDeclined:        "Seu cartão foi recusado.",
		MsgInsufficientFunds:   "Seu cartão não possui saldo suficiente.",
		MsgExpiredCard:         "Seu cartão está vencido.",
		MsgIncorrectCVC:        "O código de segurança do cartão está incorreto.",
		MsgProcessingError:     "Ocorreu um erro ao processar o pagamento. Tente novamente.",
		MsgInvalidRequest:      "A solicitação de pagamento é inválida.",
		MsgGatewayUnavailable:  "O serviço de pagamento está temporariamente indisponível.",
		MsgRefundExceedsAmount: "O valor do reembolso excede o saldo reembolsável.",
		MsgInvitationSubject:   "Você foi convidado para %s",
		MsgInvitationBody:      "%s convidou você para participar de %s como %s. O convite expira em %s.",
		MsgInvitationAction:    "Aceitar convite",
	},
	language.Spanish: {
		MsgCardDeclined:        "Su tarjeta fue rechazada.",
		MsgInsufficientFunds:   "Su tarjeta no tiene fondos suficientes.",
		MsgExpiredCard:         "Su tarjeta está vencida.",
		MsgIncorrectCVC:        "El código de seguridad de la tarjeta es incorrecto.",
		MsgProcessingError:     "Ocurrió un error al procesar el pago. Inténtelo de nuevo.",
		MsgInvalidRequest:      "La solicitud de pago no es válida.",
		MsgGatewayUnavailable:  "El servicio de pagos no está disponible temporalmente.",
		MsgRefundExceedsAmount: "El monto del reembolso excede el saldo reembolsable.",
		MsgInvitationSubject:   "Ha sido invitado a %s",
		MsgInvitationBody:      "%s le invitó a unirse a %s como %s. La invitación vence el %s.",
		MsgInvitationAction:    "Aceptar invitación",
	},
}

var matcher = language.NewMatcher(supported)

// Match picks the best supported language for the given preferences, in
// order, each of which may be an Accept-Language header or a single tag.
func Match(preferences ...string) language.Tag {
	var tags []language.Tag
	for _, p := range preferences {
		if p == "" {
			continue
		}
		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return language.English
	}
	_, idx, _ := matcher.Match(tags...)
	return supported[idx]
}

// Translate returns the message for key in lang, falling back to English and
// then to the key itself.
func Translate(lang language.Tag, key string) string {
	if msgs, ok := catalog[lang]; ok {
		if msg, ok := msgs[key]; ok {
			return msg
		}
	}
	if msg, ok := catalog[language.English][key]; ok {
		return msg
	}
	return key
}

// T matches the preferences and translates key in one step.
func T(key string, preferences ...string) string {
	return Translate(Match(preferences...), key)
}
