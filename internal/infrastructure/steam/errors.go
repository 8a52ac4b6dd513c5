package steam

import (
	"fmt"
	"net/http"
	"strings"

	"items_seller/internal/domain"
	"items_seller/pkg/errcodes"
)

// classifyStatus раскладывает ответ площадки по кодам доменных ошибок.
// Тело проверяется раньше статуса: площадка возвращает маркерные
// сообщения и с кодом 200, и с 500.
func classifyStatus(statusCode int, body []byte) error {
	message := strings.ToLower(string(body))

	switch {
	case strings.Contains(message, "no longer in your inventory"):
		return domain.NewError(errcodes.ItemNotInInventory, "item is no longer in the inventory")
	case strings.Contains(message, "pending confirmation"):
		return domain.NewError(errcodes.ListingPendingConfirmation, "listing requires confirmation")
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return domain.NewError(errcodes.SessionExpired, fmt.Sprintf("session rejected with status %d", statusCode))
	case statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError:
		return domain.NewError(errcodes.TransientRemoteError, fmt.Sprintf("remote replied with status %d", statusCode))
	case statusCode >= http.StatusBadRequest:
		return domain.NewError(errcodes.InternalServerError, fmt.Sprintf("remote replied with status %d", statusCode))
	}

	return nil
}

// classifyTransport — сетевые сбои всегда считаются временными.
func classifyTransport(err error) error {
	return domain.WrapError(err, errcodes.TransientRemoteError, "transport failure")
}
