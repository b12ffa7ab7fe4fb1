package provider

import (
	"errors"
	"fmt"
	"net/url"

	"triquery/internal/domain"
)

// Caller-facing messages. Detail stays in the logs.
const (
	msgUnknownError = "Error desconocido"
	msgUnexpected   = "Respuesta inesperada de la API"
	msgBlocked      = "Solicitud bloqueada: "
	msgConnection   = "Error de conexión con "
)

// statusFailure formats a non-2xx response. An empty message means the error
// payload was absent or undecodable.
func statusFailure(status int, message string) domain.ProviderResult {
	if message == "" {
		message = msgUnknownError
	}
	return domain.Failed(fmt.Sprintf("Error %d: %s", status, message))
}

func connectionFailure(label string) domain.ProviderResult {
	return domain.Failed(msgConnection + label)
}

func unexpectedFailure() domain.ProviderResult {
	return domain.Failed(msgUnexpected)
}

// redact strips the request URL from transport errors; Gemini carries its key
// in the query string.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
